package control

import (
	"context"
	"fmt"
	"time"

	"github.com/openarm/openarm-go/pkg/openarm"
)

// Lerp returns the linear interpolation between a and b at t in [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// GripperMove describes a slow gripper motion: the aperture is
// interpolated from From to To over Duration, issuing commands at Hz.
// More steps make the motion slower and smoother.
type GripperMove struct {
	From     float64
	To       float64
	Duration time.Duration
	Hz       int
	Kp       float64
	Kd       float64
}

func (mv GripperMove) steps() int {
	n := int(mv.Duration.Seconds() * float64(mv.Hz))
	if n < 1 {
		n = 1
	}
	return n
}

// MoveGripper runs a stepwise gripper trajectory. After each command it
// drains feedback so the motor state stays current, then waits out the
// step period.
func MoveGripper(ctx context.Context, arm *openarm.Arm, mv GripperMove) error {
	g := arm.Gripper()
	if g == nil {
		return fmt.Errorf("control: no gripper initialized")
	}
	if mv.Hz <= 0 {
		mv.Hz = 50
	}
	steps := mv.steps()
	period := time.Second / time.Duration(mv.Hz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		if err := g.SetAperture(ctx, Lerp(mv.From, mv.To, t), mv.Kp, mv.Kd); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if _, err := arm.RecvAll(ctx, period/4); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// HoldGripper resends an open or close command at a fixed rate for the
// hold duration. MIT targets are single frames; periodic resends keep the
// target in force against bus drops and controller timeouts.
func HoldGripper(ctx context.Context, arm *openarm.Arm, open bool, kp, kd float64, hold time.Duration, hz int) error {
	g := arm.Gripper()
	if g == nil {
		return fmt.Errorf("control: no gripper initialized")
	}
	if hz <= 0 {
		hz = 50
	}
	steps := int(hold.Seconds() * float64(hz))
	if steps < 1 {
		steps = 1
	}
	period := time.Second / time.Duration(hz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for i := 0; i < steps; i++ {
		var err error
		if open {
			err = g.Open(ctx, kp, kd)
		} else {
			err = g.Close(ctx, kp, kd)
		}
		if err != nil {
			return err
		}
		if _, err := arm.RecvAll(ctx, period/4); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
