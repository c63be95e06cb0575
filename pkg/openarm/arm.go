package openarm

import (
	"context"
	"fmt"

	"github.com/openarm/openarm-go/pkg/damiao"
)

// JointState is a snapshot of one joint motor.
type JointState struct {
	Position  float64 // rad
	Velocity  float64 // rad/s
	Torque    float64 // Nm
	TempMOS   uint8
	TempRotor uint8
	Status    damiao.StatusCode
}

// ArmComponent groups the joint motors and issues MIT control commands to
// them as a unit.
type ArmComponent struct {
	arm     *Arm
	devices []*damiao.Device
}

// Devices returns the joint devices in registration order.
func (c *ArmComponent) Devices() []*damiao.Device {
	out := make([]*damiao.Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// Motors returns the joint motors in registration order.
func (c *ArmComponent) Motors() []*damiao.Motor {
	out := make([]*damiao.Motor, len(c.devices))
	for i, d := range c.devices {
		out[i] = d.Motor()
	}
	return out
}

// MITControlAll sends one MIT control command per joint, paired by index.
func (c *ArmComponent) MITControlAll(ctx context.Context, params []damiao.MITParam) error {
	if len(params) != len(c.devices) {
		return fmt.Errorf("openarm: %d params for %d joints", len(params), len(c.devices))
	}
	for i, d := range c.devices {
		m := d.Motor()
		f := damiao.EncodeMIT(m.SendID(), m.Limits(), params[i])
		if err := c.arm.send(ctx, f); err != nil {
			return fmt.Errorf("joint %d: %w", i, err)
		}
	}
	return nil
}

// Positions returns the last reported joint positions in radians.
func (c *ArmComponent) Positions() []float64 {
	out := make([]float64, len(c.devices))
	for i, d := range c.devices {
		out[i] = d.Motor().Position()
	}
	return out
}

// States returns a snapshot of every joint.
func (c *ArmComponent) States() []JointState {
	out := make([]JointState, len(c.devices))
	for i, d := range c.devices {
		m := d.Motor()
		mos, rotor := m.Temperatures()
		out[i] = JointState{
			Position:  m.Position(),
			Velocity:  m.Velocity(),
			Torque:    m.Torque(),
			TempMOS:   mos,
			TempRotor: rotor,
			Status:    m.Status(),
		}
	}
	return out
}

// Err returns the first joint fault encountered, or nil when all joints
// are healthy.
func (c *ArmComponent) Err() error {
	for i, d := range c.devices {
		if err := d.Motor().Err(); err != nil {
			return fmt.Errorf("joint %d: %w", i, err)
		}
	}
	return nil
}
