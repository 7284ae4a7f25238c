package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// edgePoll bounds each WaitForEdge so Watch notices cancellation.
const edgePoll = 100 * time.Millisecond

var (
	hostOnce sync.Once
	hostErr  error
)

// initHost loads the periph host drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

func lookupPin(name string) (gpio.PinIO, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("board: host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrPinNotFound, name)
	}
	return p, nil
}

// PeriphButton is a GPIO input with pull-up, interrupting on the falling
// edge (active low push button).
type PeriphButton struct {
	pin    gpio.PinIO
	status atomic.Uint32
}

// OpenPeriphButton configures the named GPIO line as the user button.
func OpenPeriphButton(name string) (*PeriphButton, error) {
	p, err := lookupPin(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("board: configure button %s: %w", name, err)
	}
	return &PeriphButton{pin: p}, nil
}

func (b *PeriphButton) InterruptStatus() uint32 { return b.status.Load() & ButtonMask }

func (b *PeriphButton) ClearInterrupt() { b.status.Store(0) }

func (b *PeriphButton) Watch(ctx context.Context, isr func()) error {
	for ctx.Err() == nil {
		if b.pin.WaitForEdge(edgePoll) {
			b.status.Store(ButtonMask)
			isr()
		}
	}
	return nil
}

// Close stops edge detection on the pin.
func (b *PeriphButton) Close() error {
	return b.pin.In(gpio.PullNoChange, gpio.NoEdge)
}

// PeriphLED is a GPIO output driving the user LED.
type PeriphLED struct {
	mu  sync.Mutex
	pin gpio.PinIO
}

// OpenPeriphLED configures the named GPIO line as the user LED, initially low.
func OpenPeriphLED(name string) (*PeriphLED, error) {
	p, err := lookupPin(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("board: configure led %s: %w", name, err)
	}
	return &PeriphLED{pin: p}, nil
}

func (l *PeriphLED) Toggle() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pin.Out(!l.pin.Read())
}

func (l *PeriphLED) Level() bool { return l.pin.Read() == gpio.High }

// Close drives the LED low and releases the line.
func (l *PeriphLED) Close() error {
	if err := l.pin.Out(gpio.Low); err != nil {
		return err
	}
	return l.pin.Halt()
}
