// Package damiao implements the Damiao DM-series motor controller protocol
// as spoken over CAN: MIT control frames, power commands, state feedback
// parsing and register access.
package damiao

import "fmt"

// MotorType identifies a DM-series motor model. The model determines the
// value ranges used to scale MIT control and state feedback fields.
type MotorType int

const (
	DM4310 MotorType = iota
	DM4310_48V
	DM4340
	DM4340_48V
	DM6006
	DM8006
	DM8009
	DMG6220
)

var motorTypeNames = map[MotorType]string{
	DM4310:     "DM4310",
	DM4310_48V: "DM4310-48V",
	DM4340:     "DM4340",
	DM4340_48V: "DM4340-48V",
	DM6006:     "DM6006",
	DM8006:     "DM8006",
	DM8009:     "DM8009",
	DMG6220:    "DMG6220",
}

func (t MotorType) String() string {
	if s, ok := motorTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("MotorType(%d)", int(t))
}

// ParseMotorType returns the motor type for a model name as stored in
// configuration files.
func ParseMotorType(s string) (MotorType, error) {
	for t, name := range motorTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("damiao: unknown motor type %q", s)
}

// Limits holds the symmetric value ranges of a motor model. Position is
// scaled over [-P, P] rad, velocity over [-V, V] rad/s and torque over
// [-T, T] Nm.
type Limits struct {
	P float64
	V float64
	T float64
}

var motorLimits = map[MotorType]Limits{
	DM4310:     {P: 12.5, V: 30, T: 10},
	DM4310_48V: {P: 12.5, V: 50, T: 5},
	DM4340:     {P: 12.5, V: 8, T: 28},
	DM4340_48V: {P: 12.5, V: 10, T: 28},
	DM6006:     {P: 12.5, V: 45, T: 20},
	DM8006:     {P: 12.5, V: 45, T: 40},
	DM8009:     {P: 12.5, V: 45, T: 54},
	DMG6220:    {P: 12.5, V: 45, T: 10},
}

// Limits returns the value ranges for the motor type.
func (t MotorType) Limits() (Limits, error) {
	l, ok := motorLimits[t]
	if !ok {
		return Limits{}, fmt.Errorf("damiao: no limit table for motor type %d", int(t))
	}
	return l, nil
}

// PD gain ranges shared by all DM-series motors.
const (
	KpMax = 500.0
	KdMax = 5.0
)

// Power command opcodes. A command frame is seven 0xFF bytes followed by
// the opcode.
const (
	cmdClearError = 0xFB
	cmdEnable     = 0xFC
	cmdDisable    = 0xFD
	cmdSetZero    = 0xFE
)

// BroadcastID is the arbitration id used for register access and state
// refresh requests. Replies arrive on the same id with the motor id in the
// first two payload bytes.
const BroadcastID = 0x7FF

// Register access function codes carried in byte 2 of broadcast frames.
const (
	regRead    = 0x33
	regWrite   = 0x55
	regSave    = 0xAA
	regRefresh = 0xCC
)

// StatusCode is the status/error nibble of a state feedback frame.
// Values below 8 report a state; values 8 and up report a fault.
type StatusCode uint8

const (
	StatusDisabled StatusCode = 0x0
	StatusEnabled  StatusCode = 0x1

	FaultOvervoltage   StatusCode = 0x8
	FaultUndervoltage  StatusCode = 0x9
	FaultOvercurrent   StatusCode = 0xA
	FaultMOSOvertemp   StatusCode = 0xB
	FaultRotorOvertemp StatusCode = 0xC
	FaultLostComm      StatusCode = 0xD
	FaultOverload      StatusCode = 0xE
)

var faultMessages = map[StatusCode]string{
	FaultOvervoltage:   "overvoltage",
	FaultUndervoltage:  "undervoltage",
	FaultOvercurrent:   "overcurrent",
	FaultMOSOvertemp:   "MOS overtemperature",
	FaultRotorOvertemp: "rotor overtemperature",
	FaultLostComm:      "communication lost",
	FaultOverload:      "overload",
}

// Fault reports whether the code indicates a fault condition.
func (c StatusCode) Fault() bool {
	return c >= 0x8
}

// Err converts the status nibble into a go error object, or nil when the
// motor is healthy.
func (c StatusCode) Err() error {
	if !c.Fault() {
		return nil
	}
	msg, ok := faultMessages[c]
	if !ok {
		msg = fmt.Sprintf("unknown fault 0x%X", uint8(c))
	}
	return fmt.Errorf("damiao: motor fault: %s", msg)
}

func (c StatusCode) String() string {
	switch {
	case c == StatusDisabled:
		return "disabled"
	case c == StatusEnabled:
		return "enabled"
	case c.Fault():
		if msg, ok := faultMessages[c]; ok {
			return msg
		}
	}
	return fmt.Sprintf("status 0x%X", uint8(c))
}
