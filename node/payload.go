package node

import (
	"encoding/binary"

	"github.com/notnil/canfdnode/canbus"
)

// PayloadSize is the size of the transmit payload in bytes.
const PayloadSize = 8

// payload is written once at startup and never changed. It holds the two
// words 0x04030201 and 0x08070605 as the controller's data area does,
// which yields the bytes 1..8 on the wire.
var payload = func() (p [PayloadSize]byte) {
	binary.LittleEndian.PutUint32(p[0:4], 0x04030201)
	binary.LittleEndian.PutUint32(p[4:8], 0x08070605)
	return p
}()

// Payload returns a copy of the transmit payload.
func Payload() [PayloadSize]byte { return payload }

// TxDescriptor describes the single frame the node sends. It is built once
// and reused for every transmission.
type TxDescriptor struct {
	ID      uint32
	Payload *[PayloadSize]byte
	Len     uint8
	Slot    uint8
	FD      bool
	BRS     bool
}

func newTxDescriptor(cfg Config) TxDescriptor {
	return TxDescriptor{
		ID:      cfg.Role.ID(),
		Payload: &payload,
		Len:     cfg.DataLength,
		Slot:    cfg.BufferIndex,
		FD:      cfg.Mode == FD,
		BRS:     cfg.Mode == FD && cfg.BitrateSwitch,
	}
}

// Frame renders the descriptor as a bus frame.
func (d TxDescriptor) Frame() canbus.Frame {
	f := canbus.Frame{ID: d.ID, FD: d.FD, BRS: d.BRS, Len: d.Len}
	copy(f.Data[:d.Len], d.Payload[:])
	return f
}
