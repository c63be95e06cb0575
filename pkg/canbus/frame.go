package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Frame represents a CAN frame, classical (2.0A/2.0B) or CAN-FD.
//
// Supported features:
//   - Standard (11-bit) and Extended (29-bit) identifiers
//   - Data frames and Remote Transmission Request (RTR, classical only)
//   - Data length 0-8 bytes for classical CAN, 0-64 bytes for CAN-FD
type Frame struct {
	ID       uint32 // 11-bit (std) or 29-bit (ext)
	Extended bool   // true for 29-bit identifier
	RTR      bool   // remote transmission request (classical only)
	FD       bool   // CAN-FD frame with up to 64 data bytes
	BRS      bool   // bit-rate switch (CAN-FD only)
	Len      uint8  // 0..8 classical, 0..64 FD
	Data     [64]byte
}

// Validation limits and SocketCAN wire sizes.
const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF

	canFrameSize   = 16 // struct can_frame
	canfdFrameSize = 72 // struct canfd_frame
)

// SocketCAN id flags and canfd_frame flag bits.
const (
	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canEffMask = 0x1FFFFFFF
	canStdMask = 0x7FF

	canfdBRS = 0x01
)

var (
	ErrInvalidID  = errors.New("canbus: invalid identifier")
	ErrInvalidLen = errors.New("canbus: invalid data length")
	ErrFDRTR      = errors.New("canbus: RTR not valid on CAN-FD frame")
)

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if f.FD {
		if f.RTR {
			return ErrFDRTR
		}
		if f.Len > 64 {
			return ErrInvalidLen
		}
	} else if f.Len > 8 {
		return ErrInvalidLen
	}
	if f.Extended {
		if f.ID > maxExtID {
			return ErrInvalidID
		}
	} else if f.ID > maxStdID {
		return ErrInvalidID
	}
	return nil
}

// MustFrame constructs a classical data frame and panics if invalid.
// Convenience for examples and tests.
func MustFrame(id uint32, data []byte) Frame {
	var f Frame
	f.ID = id
	if id > maxStdID {
		f.Extended = true
	}
	if len(data) > 8 {
		panic(ErrInvalidLen)
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		panic(err)
	}
	return f
}

// MustFDFrame constructs a CAN-FD data frame and panics if invalid.
func MustFDFrame(id uint32, data []byte) Frame {
	var f Frame
	f.ID = id
	f.FD = true
	if id > maxStdID {
		f.Extended = true
	}
	if len(data) > 64 {
		panic(ErrInvalidLen)
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		panic(err)
	}
	return f
}

// Bytes returns the valid portion of the payload.
func (f Frame) Bytes() []byte {
	return f.Data[:f.Len]
}

// MarshalBinary encodes the frame to the Linux SocketCAN layout:
// struct can_frame (16 bytes) for classical frames, struct canfd_frame
// (72 bytes) for FD frames.
//
// can_frame layout (little-endian):
//
//	0..3  can_id (with flags: EFF/RTR)
//	4     len
//	5..7  padding / flags (canfd_frame only: byte 5 carries BRS)
//	8..   data bytes
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	id := f.ID
	if f.Extended {
		id |= canEffFlag
	}
	if f.RTR {
		id |= canRtrFlag
	}
	if f.FD {
		buf := make([]byte, canfdFrameSize)
		binary.LittleEndian.PutUint32(buf[0:4], id)
		buf[4] = f.Len
		if f.BRS {
			buf[5] = canfdBRS
		}
		copy(buf[8:], f.Data[:])
		return buf, nil
	}
	buf := make([]byte, canFrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.Len
	copy(buf[8:16], f.Data[:8])
	return buf, nil
}

// UnmarshalBinary decodes a frame from either SocketCAN layout, selected
// by input length.
func (f *Frame) UnmarshalBinary(data []byte) error {
	switch len(data) {
	case canFrameSize:
		f.FD = false
		f.BRS = false
	case canfdFrameSize:
		f.FD = true
		f.BRS = data[5]&canfdBRS != 0
	default:
		return fmt.Errorf("canbus: need %d or %d bytes, got %d", canFrameSize, canfdFrameSize, len(data))
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	f.Extended = id&canEffFlag != 0
	f.RTR = !f.FD && id&canRtrFlag != 0
	if f.Extended {
		f.ID = id & canEffMask
	} else {
		f.ID = id & canStdMask
	}
	f.Len = data[4]
	f.Data = [64]byte{}
	copy(f.Data[:], data[8:])
	return f.Validate()
}

// String renders the frame in a candump-like format.
func (f Frame) String() string {
	var sb strings.Builder
	if f.Extended {
		fmt.Fprintf(&sb, "%08X", f.ID)
	} else {
		fmt.Fprintf(&sb, "%03X", f.ID)
	}
	fmt.Fprintf(&sb, " [%d]", f.Len)
	if f.RTR {
		sb.WriteString(" RTR")
	}
	if f.FD {
		sb.WriteString(" FD")
	}
	for _, b := range f.Data[:f.Len] {
		fmt.Fprintf(&sb, " %02X", b)
	}
	return sb.String()
}
