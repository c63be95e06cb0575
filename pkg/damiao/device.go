package damiao

import (
	"fmt"
	"sync"

	"github.com/openarm/openarm-go/pkg/canbus"
)

// CallbackMode selects how incoming frames for a device are handled.
//
// State parses feedback frames into the motor's state cache. Param parses
// register acknowledgments on the broadcast id. Ignore drains frames
// without touching motor state, which the power-up/down sequences use to
// bracket enable and disable commands.
type CallbackMode int

const (
	CallbackState CallbackMode = iota
	CallbackParam
	CallbackIgnore
)

func (m CallbackMode) String() string {
	switch m {
	case CallbackState:
		return "state"
	case CallbackParam:
		return "param"
	case CallbackIgnore:
		return "ignore"
	}
	return fmt.Sprintf("CallbackMode(%d)", int(m))
}

// Device pairs a Motor with its callback mode.
type Device struct {
	motor *Motor

	mu   sync.RWMutex
	mode CallbackMode
}

// NewDevice wraps a motor; the initial callback mode is State.
func NewDevice(m *Motor) *Device {
	return &Device{motor: m, mode: CallbackState}
}

// Motor returns the wrapped motor.
func (d *Device) Motor() *Motor { return d.motor }

// CallbackMode returns the current mode.
func (d *Device) CallbackMode() CallbackMode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// SetCallbackMode switches how incoming frames are parsed.
func (d *Device) SetCallbackMode(m CallbackMode) {
	d.mu.Lock()
	d.mode = m
	d.mu.Unlock()
}

func (d *Device) handleState(f canbus.Frame) error {
	if d.CallbackMode() != CallbackState {
		return nil
	}
	s, err := DecodeState(f, d.motor.limits)
	if err != nil {
		return err
	}
	d.motor.applyState(s)
	return nil
}

func (d *Device) handleRegister(r RegisterReply) {
	if d.CallbackMode() != CallbackParam {
		return
	}
	d.motor.applyRegister(r)
}

// Collection routes incoming frames to registered devices: feedback frames
// by receive id, register acknowledgments by the motor id embedded in the
// broadcast payload.
type Collection struct {
	mu       sync.RWMutex
	ordered  []*Device
	byRecvID map[uint32]*Device
	bySendID map[uint32]*Device
}

// NewCollection creates an empty device collection.
func NewCollection() *Collection {
	return &Collection{
		byRecvID: make(map[uint32]*Device),
		bySendID: make(map[uint32]*Device),
	}
}

// Add registers a device. Receive and send ids must be unique within the
// collection.
func (c *Collection) Add(d *Device) error {
	m := d.Motor()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byRecvID[m.RecvID()]; dup {
		return fmt.Errorf("damiao: recv id 0x%X already registered", m.RecvID())
	}
	if _, dup := c.bySendID[m.SendID()]; dup {
		return fmt.Errorf("damiao: send id 0x%X already registered", m.SendID())
	}
	c.ordered = append(c.ordered, d)
	c.byRecvID[m.RecvID()] = d
	c.bySendID[m.SendID()] = d
	return nil
}

// Devices returns the registered devices in insertion order.
func (c *Collection) Devices() []*Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Device, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// ByRecvID looks up a device by its feedback id.
func (c *Collection) ByRecvID(id uint32) (*Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byRecvID[id]
	return d, ok
}

// BySendID looks up a device by its command id.
func (c *Collection) BySendID(id uint32) (*Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.bySendID[id]
	return d, ok
}

// Dispatch routes one frame. It returns true if the frame was addressed to
// a registered device, false for frames from unrelated bus traffic.
func (c *Collection) Dispatch(f canbus.Frame) (bool, error) {
	if IsRegisterReply(f) {
		r, err := DecodeRegisterReply(f)
		if err != nil {
			return false, err
		}
		c.mu.RLock()
		d, ok := c.bySendID[uint32(r.MotorID)]
		c.mu.RUnlock()
		if !ok {
			return false, nil
		}
		d.handleRegister(r)
		return true, nil
	}
	c.mu.RLock()
	d, ok := c.byRecvID[f.ID]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, d.handleState(f)
}
