package damiao

import (
	"encoding/binary"
	"fmt"

	"github.com/openarm/openarm-go/pkg/canbus"
)

// MITParam is one MIT control command: a target position and velocity with
// PD gains and a feed-forward torque. Zero gains leave the motor compliant.
type MITParam struct {
	Kp       float64 // position gain, [0, KpMax]
	Kd       float64 // damping gain, [0, KdMax]
	Position float64 // target position, rad
	Velocity float64 // target velocity, rad/s
	Torque   float64 // feed-forward torque, Nm
}

// floatToUint maps x from [min,max] onto an unsigned integer of the given
// bit width, clamping out-of-range inputs.
func floatToUint(x, min, max float64, bits uint) uint32 {
	if x < min {
		x = min
	}
	if x > max {
		x = max
	}
	span := max - min
	return uint32((x - min) / span * float64(uint32(1)<<bits-1))
}

// uintToFloat is the inverse mapping of floatToUint.
func uintToFloat(v uint32, min, max float64, bits uint) float64 {
	span := max - min
	return float64(v)/float64(uint32(1)<<bits-1)*span + min
}

// EncodeMIT builds the 8-byte MIT control frame for the given send id.
//
// Packing (big-endian bit order within the payload):
//
//	position  16 bits
//	velocity  12 bits
//	kp        12 bits
//	kd        12 bits
//	torque    12 bits
func EncodeMIT(sendID uint32, lim Limits, p MITParam) canbus.Frame {
	q := floatToUint(p.Position, -lim.P, lim.P, 16)
	dq := floatToUint(p.Velocity, -lim.V, lim.V, 12)
	kp := floatToUint(p.Kp, 0, KpMax, 12)
	kd := floatToUint(p.Kd, 0, KdMax, 12)
	tau := floatToUint(p.Torque, -lim.T, lim.T, 12)

	var f canbus.Frame
	f.ID = sendID
	f.Len = 8
	f.Data[0] = byte(q >> 8)
	f.Data[1] = byte(q)
	f.Data[2] = byte(dq >> 4)
	f.Data[3] = byte(dq<<4) | byte(kp>>8)
	f.Data[4] = byte(kp)
	f.Data[5] = byte(kd >> 4)
	f.Data[6] = byte(kd<<4) | byte(tau>>8)
	f.Data[7] = byte(tau)
	return f
}

func command(sendID uint32, op byte) canbus.Frame {
	var f canbus.Frame
	f.ID = sendID
	f.Len = 8
	for i := 0; i < 7; i++ {
		f.Data[i] = 0xFF
	}
	f.Data[7] = op
	return f
}

// EncodeEnable builds the power-on command frame.
func EncodeEnable(sendID uint32) canbus.Frame { return command(sendID, cmdEnable) }

// EncodeDisable builds the power-off command frame.
func EncodeDisable(sendID uint32) canbus.Frame { return command(sendID, cmdDisable) }

// EncodeSetZero builds the set-zero-position command frame. The motor
// stores its current position as the new zero.
func EncodeSetZero(sendID uint32) canbus.Frame { return command(sendID, cmdSetZero) }

// EncodeClearError builds the fault-clear command frame.
func EncodeClearError(sendID uint32) canbus.Frame { return command(sendID, cmdClearError) }

// StateFeedback is a decoded state frame from a motor.
type StateFeedback struct {
	MotorID   uint8 // low nibble of byte 0, the controller's own id
	Status    StatusCode
	Position  float64 // rad
	Velocity  float64 // rad/s
	Torque    float64 // Nm
	TempMOS   uint8 // degrees C
	TempRotor uint8 // degrees C
}

// DecodeState parses a state feedback frame using the motor's limit ranges.
//
// Layout:
//
//	byte 0: id (low nibble) | status (high nibble)
//	bytes 1-2: position, 16 bits
//	byte 3 + high nibble of 4: velocity, 12 bits
//	low nibble of 4 + byte 5: torque, 12 bits
//	byte 6: MOS temperature
//	byte 7: rotor temperature
func DecodeState(f canbus.Frame, lim Limits) (StateFeedback, error) {
	if f.Len < 8 {
		return StateFeedback{}, fmt.Errorf("damiao: state frame len %d, want 8", f.Len)
	}
	d := f.Data
	q := uint32(d[1])<<8 | uint32(d[2])
	dq := uint32(d[3])<<4 | uint32(d[4])>>4
	tau := uint32(d[4]&0xF)<<8 | uint32(d[5])
	return StateFeedback{
		MotorID:   d[0] & 0x0F,
		Status:    StatusCode(d[0] >> 4),
		Position:  uintToFloat(q, -lim.P, lim.P, 16),
		Velocity:  uintToFloat(dq, -lim.V, lim.V, 12),
		Torque:    uintToFloat(tau, -lim.T, lim.T, 12),
		TempMOS:   d[6],
		TempRotor: d[7],
	}, nil
}

func broadcast(motorID uint32, fc byte) canbus.Frame {
	var f canbus.Frame
	f.ID = BroadcastID
	f.Len = 8
	binary.LittleEndian.PutUint16(f.Data[0:2], uint16(motorID))
	f.Data[2] = fc
	return f
}

// EncodeRefresh builds the broadcast frame asking the motor to report its
// current state without changing control targets.
func EncodeRefresh(motorID uint32) canbus.Frame {
	return broadcast(motorID, regRefresh)
}

// EncodeRegisterRead builds the broadcast frame reading register rid.
func EncodeRegisterRead(motorID uint32, rid uint8) canbus.Frame {
	f := broadcast(motorID, regRead)
	f.Data[3] = rid
	return f
}

// EncodeRegisterWrite builds the broadcast frame writing a register value.
// The change is volatile until EncodeRegisterSave is issued.
func EncodeRegisterWrite(motorID uint32, rid uint8, value uint32) canbus.Frame {
	f := broadcast(motorID, regWrite)
	f.Data[3] = rid
	binary.LittleEndian.PutUint32(f.Data[4:8], value)
	return f
}

// EncodeRegisterSave builds the broadcast frame persisting register changes
// to flash.
func EncodeRegisterSave(motorID uint32) canbus.Frame {
	return broadcast(motorID, regSave)
}

// RegisterReply is a decoded register read/write acknowledgment.
type RegisterReply struct {
	MotorID uint16
	RID     uint8
	Value   uint32
}

// IsRegisterReply reports whether the frame is a broadcast-id register
// acknowledgment (as opposed to a state feedback frame).
func IsRegisterReply(f canbus.Frame) bool {
	return f.ID == BroadcastID && f.Len >= 8 && (f.Data[2] == regRead || f.Data[2] == regWrite)
}

// DecodeRegisterReply parses a register acknowledgment frame.
func DecodeRegisterReply(f canbus.Frame) (RegisterReply, error) {
	if !IsRegisterReply(f) {
		return RegisterReply{}, fmt.Errorf("damiao: not a register reply (id=0x%X)", f.ID)
	}
	return RegisterReply{
		MotorID: binary.LittleEndian.Uint16(f.Data[0:2]),
		RID:     f.Data[3],
		Value:   binary.LittleEndian.Uint32(f.Data[4:8]),
	}, nil
}
