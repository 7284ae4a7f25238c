// Package board exposes the digital I/O the demo node needs: a user button
// that raises an interrupt on its falling edge, and a user LED that can be
// toggled.
//
// Two backends are provided. The periph backend drives real GPIO lines via
// periph.io; the simulated backend is used by tests and by the simulation
// mode of the executable.
package board

import (
	"context"
	"errors"
)

// ButtonMask is the status bit reported for the button pin.
const ButtonMask uint32 = 1 << 0

// ErrPinNotFound is returned when a named GPIO line does not exist.
var ErrPinNotFound = errors.New("board: pin not found")

// Button is an edge-triggered input with a latched interrupt status, in the
// manner of a microcontroller GPIO port.
type Button interface {
	// InterruptStatus returns the masked interrupt status of the pin.
	InterruptStatus() uint32
	// ClearInterrupt clears the latched interrupt condition.
	ClearInterrupt()
	// Watch calls isr once per detected edge, after latching the status,
	// until ctx is done. Edges are dispatched one at a time.
	Watch(ctx context.Context, isr func()) error
	Close() error
}

// LED is an output that is only ever toggled.
type LED interface {
	Toggle() error
	// Level reports the current output level, true meaning high.
	Level() bool
	Close() error
}
