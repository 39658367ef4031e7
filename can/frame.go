// File: can/frame.go
// Author: momentics <momentics@gmail.com>
//
// Classical CAN frame in the Linux can_frame layout.

package can

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FrameSize is the size of struct can_frame.
const FrameSize = 16

// Identifier flags and masks of the can_id word.
const (
	EFFFlag uint32 = 0x80000000
	RTRFlag uint32 = 0x40000000
	ErrFlag uint32 = 0x20000000
	SFFMask uint32 = 0x000007FF
	EFFMask uint32 = 0x1FFFFFFF
)

var (
	ErrInvalidID     = errors.New("can: invalid identifier")
	ErrInvalidLen    = errors.New("can: invalid data length")
	ErrShortFrame    = errors.New("can: short frame")
	errNotClassicCAN = errors.New("can: not a classical CAN frame")
)

// Frame is a classical CAN 2.0A/2.0B frame.
type Frame struct {
	ID       uint32 // 11 bit, or 29 bit when Extended
	Extended bool
	RTR      bool
	Err      bool // error frame, ID carries the error class
	Len      uint8
	Data     [8]byte
}

// NewFrame builds a data frame, choosing the extended format when id does
// not fit in 11 bits.
func NewFrame(id uint32, data []byte) (Frame, error) {
	f := Frame{ID: id, Extended: id > SFFMask}
	if len(data) > len(f.Data) {
		return Frame{}, ErrInvalidLen
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	return f, f.Validate()
}

// Validate reports whether the frame can be put on the wire.
func (f Frame) Validate() error {
	if f.Len > 8 {
		return ErrInvalidLen
	}
	limit := SFFMask
	if f.Extended || f.Err {
		limit = EFFMask
	}
	if f.ID > limit {
		return ErrInvalidID
	}
	return nil
}

// Payload is the valid part of Data.
func (f Frame) Payload() []byte {
	n := f.Len
	if n > 8 {
		n = 8
	}
	return f.Data[:n]
}

// RawID is the can_id word including flags.
func (f Frame) RawID() uint32 {
	id := f.ID
	if f.Extended {
		id |= EFFFlag
	}
	if f.RTR {
		id |= RTRFlag
	}
	if f.Err {
		id |= ErrFlag
	}
	return id
}

// Matches applies kernel filter semantics to the raw identifier.
func (f Frame) Matches(id, mask uint32) bool {
	return matches(f.RawID(), id, mask)
}

func matches(raw, id, mask uint32) bool {
	return raw&mask == id&mask
}

// MarshalBinary encodes f as a can_frame. The kernel uses host byte order
// for can_id.
func (f Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, FrameSize)
	if err := f.put(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (f Frame) put(buf []byte) error {
	if err := f.Validate(); err != nil {
		return err
	}
	binary.NativeEndian.PutUint32(buf[0:4], f.RawID())
	buf[4] = f.Len
	buf[5], buf[6], buf[7] = 0, 0, 0
	copy(buf[8:16], f.Data[:])
	return nil
}

// UnmarshalBinary decodes a can_frame.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < FrameSize {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrShortFrame, FrameSize, len(data))
	}
	if len(data) > FrameSize {
		return errNotClassicCAN
	}
	raw := binary.NativeEndian.Uint32(data[0:4])
	f.Extended = raw&EFFFlag != 0
	f.RTR = raw&RTRFlag != 0
	f.Err = raw&ErrFlag != 0
	if f.Extended || f.Err {
		f.ID = raw & EFFMask
	} else {
		f.ID = raw & SFFMask
	}
	f.Len = data[4]
	copy(f.Data[:], data[8:16])
	return f.Validate()
}

// DecodeFrame decodes an EventDataReceived payload.
func DecodeFrame(payload []byte) (Frame, error) {
	var f Frame
	err := f.UnmarshalBinary(payload)
	return f, err
}

func (f Frame) String() string {
	kind := ""
	switch {
	case f.Err:
		kind = " err"
	case f.RTR:
		kind = " rtr"
	}
	if f.Extended {
		return fmt.Sprintf("%08X%s [%d] % X", f.ID, kind, f.Len, f.Payload())
	}
	return fmt.Sprintf("%03X%s [%d] % X", f.ID, kind, f.Len, f.Payload())
}

// nativeID reads the can_id word of an encoded frame.
func nativeID(b []byte) uint32 {
	return binary.NativeEndian.Uint32(b[0:4])
}
