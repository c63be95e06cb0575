// Package openarm coordinates the arm joints and gripper of an OpenArm
// robot over a CAN bus.
package openarm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/openarm/openarm-go/pkg/canbus"
	"github.com/openarm/openarm-go/pkg/damiao"
)

// Arm is the top-level coordinator. It owns the bus connection and the
// device collection, and exposes the arm and gripper components.
type Arm struct {
	bus     canbus.Bus
	fd      bool
	devices *damiao.Collection
	arm     *ArmComponent
	gripper *GripperComponent

	unknownFrames atomic.Uint64
}

// Open connects to a SocketCAN interface and returns an arm coordinator.
// With useFD set, frames are sent as CAN-FD and the interface must be
// configured accordingly.
func Open(iface string, useFD bool) (*Arm, error) {
	bus, err := canbus.DialSocketCAN(iface, useFD)
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	return New(bus, useFD), nil
}

// New builds an arm coordinator on an existing bus connection. The bus is
// owned by the returned Arm and closed with it.
func New(bus canbus.Bus, useFD bool) *Arm {
	a := &Arm{
		bus:     bus,
		fd:      useFD,
		devices: damiao.NewCollection(),
	}
	a.arm = &ArmComponent{arm: a}
	return a
}

// Close closes the bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Arm returns the joint component.
func (a *Arm) Arm() *ArmComponent { return a.arm }

// Gripper returns the gripper component, or nil before InitGripperMotor.
func (a *Arm) Gripper() *GripperComponent { return a.gripper }

// Devices returns all registered devices in registration order.
func (a *Arm) Devices() []*damiao.Device { return a.devices.Devices() }

// InitArmMotors registers the joint motors. The three slices pair up by
// index: motor type, command id, feedback id.
func (a *Arm) InitArmMotors(types []damiao.MotorType, sendIDs, recvIDs []uint32) error {
	if len(types) != len(sendIDs) || len(types) != len(recvIDs) {
		return fmt.Errorf("openarm: motor init lengths differ: %d types, %d send ids, %d recv ids",
			len(types), len(sendIDs), len(recvIDs))
	}
	for i := range types {
		motor, err := damiao.NewMotor(types[i], sendIDs[i], recvIDs[i])
		if err != nil {
			return fmt.Errorf("joint %d: %w", i, err)
		}
		dev := damiao.NewDevice(motor)
		if err := a.devices.Add(dev); err != nil {
			return fmt.Errorf("joint %d: %w", i, err)
		}
		a.arm.devices = append(a.arm.devices, dev)
	}
	return nil
}

// InitGripperMotor registers the gripper motor with its aperture
// calibration.
func (a *Arm) InitGripperMotor(typ damiao.MotorType, sendID, recvID uint32, cal GripperCalibration) error {
	if a.gripper != nil {
		return fmt.Errorf("openarm: gripper already initialized")
	}
	motor, err := damiao.NewMotor(typ, sendID, recvID)
	if err != nil {
		return fmt.Errorf("gripper: %w", err)
	}
	dev := damiao.NewDevice(motor)
	if err := a.devices.Add(dev); err != nil {
		return fmt.Errorf("gripper: %w", err)
	}
	a.gripper = &GripperComponent{arm: a, dev: dev, cal: cal}
	return nil
}

// SetCallbackModeAll switches the callback mode of every device.
func (a *Arm) SetCallbackModeAll(m damiao.CallbackMode) {
	for _, d := range a.devices.Devices() {
		d.SetCallbackMode(m)
	}
}

// EnableAll powers on every registered motor.
func (a *Arm) EnableAll(ctx context.Context) error {
	return a.commandAll(ctx, damiao.EncodeEnable)
}

// DisableAll powers off every registered motor.
func (a *Arm) DisableAll(ctx context.Context) error {
	return a.commandAll(ctx, damiao.EncodeDisable)
}

// ClearErrorAll clears fault latches on every registered motor.
func (a *Arm) ClearErrorAll(ctx context.Context) error {
	return a.commandAll(ctx, damiao.EncodeClearError)
}

// RefreshAll asks every motor to report its state without changing control
// targets. Follow with RecvAll to pick up the replies.
func (a *Arm) RefreshAll(ctx context.Context) error {
	for _, d := range a.devices.Devices() {
		if err := a.send(ctx, damiao.EncodeRefresh(d.Motor().SendID())); err != nil {
			return fmt.Errorf("refresh 0x%X: %w", d.Motor().SendID(), err)
		}
	}
	return nil
}

// EnableMotor powers on a single motor by its command id.
func (a *Arm) EnableMotor(ctx context.Context, sendID uint32) error {
	return a.commandMotor(ctx, sendID, damiao.EncodeEnable)
}

// DisableMotor powers off a single motor by its command id.
func (a *Arm) DisableMotor(ctx context.Context, sendID uint32) error {
	return a.commandMotor(ctx, sendID, damiao.EncodeDisable)
}

// SetZeroMotor stores the motor's current position as its new zero.
func (a *Arm) SetZeroMotor(ctx context.Context, sendID uint32) error {
	return a.commandMotor(ctx, sendID, damiao.EncodeSetZero)
}

// ClearErrorMotor clears the fault latch on a single motor.
func (a *Arm) ClearErrorMotor(ctx context.Context, sendID uint32) error {
	return a.commandMotor(ctx, sendID, damiao.EncodeClearError)
}

func (a *Arm) commandMotor(ctx context.Context, sendID uint32, encode func(uint32) canbus.Frame) error {
	if _, ok := a.devices.BySendID(sendID); !ok {
		return fmt.Errorf("openarm: no motor with send id 0x%X", sendID)
	}
	if err := a.send(ctx, encode(sendID)); err != nil {
		return fmt.Errorf("motor 0x%X: %w", sendID, err)
	}
	return nil
}

func (a *Arm) commandAll(ctx context.Context, encode func(uint32) canbus.Frame) error {
	for _, d := range a.devices.Devices() {
		if err := a.send(ctx, encode(d.Motor().SendID())); err != nil {
			return fmt.Errorf("motor 0x%X: %w", d.Motor().SendID(), err)
		}
	}
	return nil
}

// RecvAll drains incoming frames, dispatching each to its device, until no
// frame arrives for the quiet duration or ctx is done. It returns the
// number of frames dispatched to registered devices.
func (a *Arm) RecvAll(ctx context.Context, quiet time.Duration) (int, error) {
	if quiet <= 0 {
		quiet = time.Millisecond
	}
	n := 0
	for {
		rctx, cancel := context.WithTimeout(ctx, quiet)
		f, err := a.bus.Receive(rctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// Quiet window elapsed with no traffic.
				return n, nil
			}
			// Transport failure, not a drained bus.
			return n, err
		}
		handled, err := a.devices.Dispatch(f)
		if err != nil {
			return n, err
		}
		if handled {
			n++
		} else {
			a.unknownFrames.Add(1)
		}
	}
}

// UnknownFrames returns how many received frames were not addressed to any
// registered device.
func (a *Arm) UnknownFrames() uint64 {
	return a.unknownFrames.Load()
}

// send transmits a frame, promoting it to CAN-FD when the bus was opened
// in FD mode.
func (a *Arm) send(ctx context.Context, f canbus.Frame) error {
	f.FD = a.fd
	f.BRS = a.fd
	return a.bus.Send(ctx, f)
}
