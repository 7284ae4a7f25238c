package node

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/canfdnode/canbus"
)

var (
	ErrInvalidRole       = errors.New("node: invalid role")
	ErrInvalidMode       = errors.New("node: invalid CAN mode")
	ErrInvalidChannel    = errors.New("node: invalid channel")
	ErrInvalidDataLength = errors.New("node: invalid data length")
)

// Role selects which of the two demo nodes this process is. The role number
// is also the CAN identifier the node transmits with.
type Role uint8

const (
	Node1 Role = 1
	Node2 Role = 2
)

// ID returns the CAN identifier used by the role.
func (r Role) ID() uint32 { return uint32(r) }

func (r Role) String() string {
	switch r {
	case Node1:
		return "node1"
	case Node2:
		return "node2"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// ParseRole accepts "node1"/"node2" (or "1"/"2").
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "node1", "1":
		return Node1, nil
	case "node2", "2":
		return Node2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Mode selects classical CAN or CAN FD framing.
type Mode uint8

const (
	Classic Mode = iota
	FD
)

func (m Mode) String() string {
	switch m {
	case Classic:
		return "classic"
	case FD:
		return "fd"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode accepts "classic" or "fd".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classic", "can":
		return Classic, nil
	case "fd", "canfd":
		return FD, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// frameName is how transmitted frames are named on the console.
func (m Mode) frameName() string {
	if m == Classic {
		return "CAN standard"
	}
	return "CANFD"
}

// title is the console banner line for a node running in this mode.
func (m Mode) title(r Role) string {
	if m == Classic {
		return fmt.Sprintf("Classic CAN Node-%d", r)
	}
	return fmt.Sprintf("CAN FD Node-%d", r)
}

// Config is the node configuration, resolved once at process start.
type Config struct {
	Role Role
	Mode Mode
	// Channel is the controller channel index; the default SocketCAN
	// interface is "can<Channel>".
	Channel int
	// BufferIndex is the transmit buffer slot used for every send.
	BufferIndex uint8
	// DataLength is the fixed payload length of transmitted frames.
	DataLength uint8
	// BitrateSwitch requests the faster data phase for CAN FD frames.
	BitrateSwitch bool
	// Accept selects frames delivered through the receive FIFO. Frames not
	// accepted arrive as buffer messages, which the node ignores. Nil
	// accepts every frame.
	Accept canbus.FrameFilter
	// EventQueue bounds the receive events awaiting console output.
	EventQueue int
}

// DefaultConfig returns node 1 in CAN FD mode on channel 1, sending 8 bytes
// from buffer 0.
func DefaultConfig() Config {
	return Config{
		Role:          Node1,
		Mode:          FD,
		Channel:       1,
		BufferIndex:   0,
		DataLength:    PayloadSize,
		BitrateSwitch: true,
		EventQueue:    16,
	}
}

// Validate checks the enumerations and the data length.
func (c Config) Validate() error {
	if c.Role != Node1 && c.Role != Node2 {
		return fmt.Errorf("%w: %d", ErrInvalidRole, c.Role)
	}
	if c.Mode != Classic && c.Mode != FD {
		return fmt.Errorf("%w: %d", ErrInvalidMode, c.Mode)
	}
	if c.Channel < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, c.Channel)
	}
	if c.DataLength > PayloadSize {
		return fmt.Errorf("%w: %d exceeds payload size %d", ErrInvalidDataLength, c.DataLength, PayloadSize)
	}
	return nil
}
