package openarm

import (
	"context"

	"github.com/openarm/openarm-go/pkg/damiao"
)

// Default PD gains for gripper open/close. Soft enough to be safe on an
// unloaded gripper; callers with a known payload should pass their own.
const (
	DefaultGripperKp = 4.0
	DefaultGripperKd = 1.0
)

// GripperComponent drives the gripper motor in normalized aperture terms:
// 0 is fully closed, 1 is fully open. The mapping to motor radians comes
// from the gripper calibration.
type GripperComponent struct {
	arm *Arm
	dev *damiao.Device
	cal GripperCalibration
}

// Device returns the gripper device.
func (g *GripperComponent) Device() *damiao.Device { return g.dev }

// Motor returns the gripper motor.
func (g *GripperComponent) Motor() *damiao.Motor { return g.dev.Motor() }

// Calibration returns the aperture calibration in use.
func (g *GripperComponent) Calibration() GripperCalibration { return g.cal }

// Open commands the fully open position with the given PD gains.
// Like all MIT commands this is a single frame; resend it periodically to
// hold the target against disturbance.
func (g *GripperComponent) Open(ctx context.Context, kp, kd float64) error {
	return g.SetAperture(ctx, 1, kp, kd)
}

// Close commands the fully closed position with the given PD gains.
func (g *GripperComponent) Close(ctx context.Context, kp, kd float64) error {
	return g.SetAperture(ctx, 0, kp, kd)
}

// SetAperture commands a normalized aperture in [0, 1]. Out-of-range
// values are clamped to the calibrated travel.
func (g *GripperComponent) SetAperture(ctx context.Context, aperture, kp, kd float64) error {
	m := g.dev.Motor()
	f := damiao.EncodeMIT(m.SendID(), m.Limits(), damiao.MITParam{
		Kp:       kp,
		Kd:       kd,
		Position: g.cal.Denormalize(clamp01(aperture)),
	})
	return g.arm.send(ctx, f)
}

// Aperture returns the last reported gripper position as a normalized
// aperture.
func (g *GripperComponent) Aperture() float64 {
	return g.cal.Normalize(g.dev.Motor().Position())
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
