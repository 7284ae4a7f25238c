package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Frame represents a classical CAN (2.0A/2.0B) or CAN FD frame.
//
// Supported features:
//   - Standard (11-bit) and Extended (29-bit) identifiers
//   - Data frames and Remote Transmission Request (RTR, classical only)
//   - Data length 0-8 bytes (classical) or any CAN FD DLC length up to 64
//   - CAN FD bit rate switch (BRS) and error state indicator (ESI) flags
type Frame struct {
	ID       uint32 // 11-bit (std) or 29-bit (ext)
	Extended bool   // true for 29-bit identifier
	RTR      bool   // remote transmission request
	FD       bool   // CAN FD format
	BRS      bool   // bit rate switch for the data phase (FD only)
	ESI      bool   // error state indicator (FD only)
	Len      uint8  // payload length in bytes
	Data     [MaxFDLen]byte
}

// Validation limits.
const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF

	// MaxLen is the classical CAN payload limit.
	MaxLen = 8
	// MaxFDLen is the CAN FD payload limit.
	MaxFDLen = 64
)

// Linux SocketCAN frame sizes.
const (
	classicMTU = 16 // struct can_frame
	fdMTU      = 72 // struct canfd_frame
)

// can_id flags and canfd_frame.flags bits.
const (
	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canErrFlag = 0x20000000
	canEffMask = 0x1FFFFFFF
	canStdMask = 0x7FF

	canfdBRS = 0x01
	canfdESI = 0x02
	canfdFDF = 0x04
)

var (
	ErrInvalidID    = errors.New("canbus: invalid identifier")
	ErrInvalidLen   = errors.New("canbus: invalid data length")
	ErrInvalidFlags = errors.New("canbus: invalid frame flags")
	ErrErrorFrame   = errors.New("canbus: error frame")
)

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if !ValidLen(f.Len, f.FD) {
		return ErrInvalidLen
	}
	if !f.FD && (f.BRS || f.ESI) {
		return ErrInvalidFlags
	}
	if f.FD && f.RTR {
		// CAN FD has no remote frames.
		return ErrInvalidFlags
	}
	if f.Extended {
		if f.ID > maxExtID {
			return ErrInvalidID
		}
	} else {
		if f.ID > maxStdID {
			return ErrInvalidID
		}
	}
	return nil
}

// Payload returns the data bytes carried by the frame.
func (f Frame) Payload() []byte {
	n := int(f.Len)
	if n > MaxFDLen {
		n = MaxFDLen
	}
	return f.Data[:n]
}

// DLC returns the data length code that encodes f.Len on the wire.
func (f Frame) DLC() uint8 {
	return LenToDLC(f.Len)
}

// MustFrame constructs a classical Frame and panics if invalid. Convenience for examples.
func MustFrame(id uint32, data []byte) Frame {
	var f Frame
	f.ID = id
	if id > maxStdID {
		f.Extended = true
	}
	if len(data) > MaxLen {
		panic(ErrInvalidLen)
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		panic(err)
	}
	return f
}

// NewFDFrame constructs a CAN FD frame. The data length must be a valid CAN
// FD DLC length (0-8, 12, 16, 20, 24, 32, 48 or 64).
func NewFDFrame(id uint32, data []byte, brs bool) (Frame, error) {
	if len(data) > MaxFDLen {
		return Frame{}, ErrInvalidLen
	}
	f := Frame{ID: id, FD: true, BRS: brs, Len: uint8(len(data))}
	if id > maxStdID {
		f.Extended = true
	}
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// String renders the frame in a candump-like form, e.g. "123 [2] DE AD".
func (f Frame) String() string {
	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	fmt.Fprintf(&b, " [%d]", f.Len)
	if f.FD {
		b.WriteString(" FD")
		if f.BRS {
			b.WriteString(" BRS")
		}
		if f.ESI {
			b.WriteString(" ESI")
		}
	}
	if f.RTR {
		b.WriteString(" RTR")
		return b.String()
	}
	for _, c := range f.Payload() {
		fmt.Fprintf(&b, " %02X", c)
	}
	return b.String()
}

// MarshalBinary encodes the frame to the Linux SocketCAN layout: "struct
// can_frame" (16 bytes) for classical frames and "struct canfd_frame"
// (72 bytes) for CAN FD frames. Timestamps are not included.
//
// Layout (host order, little-endian on supported targets):
//
//	0..3  can_id (with flags: EFF/RTR/ERR)
//	4     len (classical: can_dlc)
//	5     flags (FD only: BRS/ESI/FDF)
//	6..7  reserved, zero
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
	if !f.FD {
		buf := make([]byte, classicMTU)
		binary.LittleEndian.PutUint32(buf[0:4], id)
		buf[4] = f.Len
		copy(buf[8:], f.Data[:MaxLen])
		return buf, nil
	}
	buf := make([]byte, fdMTU)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.Len
	flags := byte(canfdFDF)
	if f.BRS {
		flags |= canfdBRS
	}
	if f.ESI {
		flags |= canfdESI
	}
	buf[5] = flags
	copy(buf[8:], f.Data[:f.Len])
	return buf, nil
}

// UnmarshalBinary decodes a frame from either SocketCAN layout, selected by
// the buffer length. Error frames reported by the kernel return ErrErrorFrame.
func (f *Frame) UnmarshalBinary(data []byte) error {
	var fd bool
	switch len(data) {
	case classicMTU:
	case fdMTU:
		fd = true
	default:
		return fmt.Errorf("canbus: need %d or %d bytes, got %d", classicMTU, fdMTU, len(data))
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	if id&canErrFlag != 0 {
		return ErrErrorFrame
	}
	*f = Frame{}
	f.Extended = id&canEffFlag != 0
	if f.Extended {
		f.ID = id & canEffMask
	} else {
		f.ID = id & canStdMask
	}
	f.Len = data[4]
	if fd {
		f.FD = true
		f.BRS = data[5]&canfdBRS != 0
		f.ESI = data[5]&canfdESI != 0
		if int(f.Len) > MaxFDLen {
			return ErrInvalidLen
		}
		copy(f.Data[:], data[8:8+int(f.Len)])
	} else {
		f.RTR = id&canRtrFlag != 0
		if f.Len > MaxLen {
			return ErrInvalidLen
		}
		copy(f.Data[:], data[8:8+MaxLen])
		// Bytes past Len are not part of the frame.
		for i := int(f.Len); i < MaxLen; i++ {
			f.Data[i] = 0
		}
	}
	return f.Validate()
}
