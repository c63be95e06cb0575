package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/openarm/openarm-go/pkg/control"
	"github.com/openarm/openarm-go/pkg/openarm"
)

type GripperCommand struct {
	Kp       float64       `long:"kp" default:"4" description:"Position gain for the gripper motor"`
	Kd       float64       `long:"kd" default:"1" description:"Damping gain for the gripper motor"`
	Hold     time.Duration `long:"hold" default:"2s" description:"How long to keep resending the open/close target"`
	Hz       int           `long:"hz" default:"50" description:"Command rate"`
	Aperture float64       `long:"aperture" default:"1" description:"Target aperture for 'move', 0 (closed) to 1 (open)"`
	Duration time.Duration `long:"duration" default:"1s" description:"Trajectory duration for 'move'"`

	Args struct {
		Action string `positional-arg-name:"action" choice:"open" choice:"close" choice:"move" required:"true" description:"open, close or move"`
	} `positional-args:"true"`
}

func (c *GripperCommand) Execute(args []string) error {
	cfg, err := openarm.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'openarm setup' first.")
		os.Exit(1)
	}
	if !cfg.HasGripper() {
		fmt.Fprintln(os.Stderr, "No gripper configured. Run 'openarm setup' first.")
		os.Exit(1)
	}
	if !cfg.IsCalibrated() {
		fmt.Fprintln(os.Stderr, "Gripper not calibrated. Run 'openarm setup' first.")
		os.Exit(1)
	}

	arm, err := cfg.OpenArm()
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Interface, err)
	}
	defer arm.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := powerSequence(ctx, arm, arm.EnableAll); err != nil {
		return fmt.Errorf("enable: %w", err)
	}
	defer func() {
		// Leave the arm compliant.
		dctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		powerSequence(dctx, arm, arm.DisableAll)
	}()

	switch c.Args.Action {
	case "open":
		fmt.Printf("Opening gripper (kp=%.1f kd=%.1f, hold %s)\n", c.Kp, c.Kd, c.Hold)
		err = control.HoldGripper(ctx, arm, true, c.Kp, c.Kd, c.Hold, c.Hz)
	case "close":
		fmt.Printf("Closing gripper (kp=%.1f kd=%.1f, hold %s)\n", c.Kp, c.Kd, c.Hold)
		err = control.HoldGripper(ctx, arm, false, c.Kp, c.Kd, c.Hold, c.Hz)
	case "move":
		from, rerr := currentAperture(ctx, arm)
		if rerr != nil {
			return rerr
		}
		fmt.Printf("Moving gripper %.2f -> %.2f over %s\n", from, c.Aperture, c.Duration)
		err = control.MoveGripper(ctx, arm, control.GripperMove{
			From:     from,
			To:       c.Aperture,
			Duration: c.Duration,
			Hz:       c.Hz,
			Kp:       c.Kp,
			Kd:       c.Kd,
		})
	}
	if err != nil && err != context.Canceled {
		return err
	}
	fmt.Println("Done.")
	return nil
}

// currentAperture polls the gripper once so a move can start from the
// real position instead of a stale cache.
func currentAperture(ctx context.Context, arm *openarm.Arm) (float64, error) {
	if err := arm.RefreshAll(ctx); err != nil {
		return 0, err
	}
	if _, err := arm.RecvAll(ctx, 50*time.Millisecond); err != nil {
		return 0, err
	}
	return arm.Gripper().Aperture(), nil
}
