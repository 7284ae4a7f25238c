package board

import (
	"context"

	"go.uber.org/atomic"
)

// SimButton is an in-memory Button. Press emulates a falling edge.
type SimButton struct {
	status atomic.Uint32
	clears atomic.Uint64
	edges  chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewSimButton returns a simulated button able to queue up to 64 pending
// edges.
func NewSimButton() *SimButton {
	return &SimButton{
		edges: make(chan struct{}, 64),
		done:  make(chan struct{}),
	}
}

// Press queues one edge for Watch. It reports false when the edge was lost
// because the queue is full or the button is closed.
func (b *SimButton) Press() bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.edges <- struct{}{}:
		return true
	default:
		return false
	}
}

// Latch sets the interrupt status without queuing an edge. Tests use it to
// drive an interrupt handler directly.
func (b *SimButton) Latch() {
	b.status.Store(ButtonMask)
}

func (b *SimButton) InterruptStatus() uint32 { return b.status.Load() & ButtonMask }

func (b *SimButton) ClearInterrupt() {
	b.status.Store(0)
	b.clears.Inc()
}

// Clears returns how many times the interrupt was cleared.
func (b *SimButton) Clears() uint64 { return b.clears.Load() }

func (b *SimButton) Watch(ctx context.Context, isr func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case <-b.edges:
			b.Latch()
			isr()
		}
	}
}

func (b *SimButton) Close() error {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
	return nil
}

// SimLED is an in-memory LED that counts its toggles.
type SimLED struct {
	level   atomic.Bool
	toggles atomic.Uint64
}

// NewSimLED returns a simulated LED, initially low.
func NewSimLED() *SimLED { return &SimLED{} }

func (l *SimLED) Toggle() error {
	l.level.Toggle()
	l.toggles.Inc()
	return nil
}

func (l *SimLED) Level() bool { return l.level.Load() }

// Toggles returns how many times the LED was toggled.
func (l *SimLED) Toggles() uint64 { return l.toggles.Load() }

func (l *SimLED) Close() error { return nil }
