// Package node implements the demo CAN FD node: a button press transmits a
// fixed frame, and every received data frame toggles the LED and is reported
// on the console.
//
// Three activities run concurrently. The button watcher plays the part of
// the button interrupt and only sets a flag. The poll loop consumes the flag
// and transmits. Frames from the bus are handed to OnReceive, which toggles
// the LED and enqueues a compact event; the console reporter formats events
// off the receive path.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/notnil/canfdnode/board"
	"github.com/notnil/canfdnode/canbus"
	"github.com/notnil/canfdnode/console"
)

// rxQueue is the mux buffer for each receive subscription.
const rxQueue = 32

// Peripherals are the collaborators a Node drives.
type Peripherals struct {
	Bus     canbus.Bus
	Button  board.Button
	LED     board.LED
	Console *console.Console
	Logger  *slog.Logger
}

// Node is one demo node. Create it with New and start it with Run.
type Node struct {
	cfg Config
	bus canbus.Bus
	btn board.Button
	led board.LED
	con *console.Console
	log *slog.Logger

	tx TxDescriptor

	pressed atomic.Bool
	wake    chan struct{}

	rxMu    sync.Mutex
	events  chan rxEvent
	dropped atomic.Uint64
	sent    atomic.Uint64
}

// New validates cfg and builds a node. The transmit descriptor is built here
// and reused for the node's lifetime.
func New(cfg Config, p Peripherals) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p.Bus == nil || p.Button == nil || p.LED == nil || p.Console == nil {
		return nil, errors.New("node: missing peripheral")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	queue := cfg.EventQueue
	if queue <= 0 {
		queue = 1
	}
	return &Node{
		cfg:    cfg,
		bus:    p.Bus,
		btn:    p.Button,
		led:    p.LED,
		con:    p.Console,
		log:    logger.With("node", cfg.Role.String()),
		tx:     newTxDescriptor(cfg),
		wake:   make(chan struct{}, 1),
		events: make(chan rxEvent, queue),
	}, nil
}

// Config returns the node configuration.
func (n *Node) Config() Config { return n.cfg }

// Descriptor returns the transmit descriptor.
func (n *Node) Descriptor() TxDescriptor { return n.tx }

// Sent returns the number of frames transmitted so far.
func (n *Node) Sent() uint64 { return n.sent.Load() }

// Dropped returns the number of receive events lost to a full console queue.
func (n *Node) Dropped() uint64 { return n.dropped.Load() }

// Banner prints the start-up banner naming the node and its mode.
func (n *Node) Banner() error {
	return n.con.Banner("CANFD example", n.cfg.Mode.title(n.cfg.Role))
}

// HandleButton is the button interrupt handler. It sets the pending flag when
// the button's masked interrupt status is raised and clears the interrupt.
// It neither blocks nor allocates.
func (n *Node) HandleButton() {
	if n.btn.InterruptStatus() == 0 {
		return
	}
	n.pressed.Store(true)
	n.btn.ClearInterrupt()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether a button press is waiting to be handled.
func (n *Node) Pending() bool { return n.pressed.Load() }

// Poll runs one iteration of the event loop: if a press is pending it clears
// the flag and transmits exactly one frame. It reports whether a frame was
// sent. A transmit failure is returned and is meant to be fatal.
func (n *Node) Poll(ctx context.Context) (bool, error) {
	if !n.pressed.CompareAndSwap(true, false) {
		return false, nil
	}
	if err := n.transmit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (n *Node) transmit(ctx context.Context) error {
	if err := n.bus.Send(ctx, n.tx.Frame()); err != nil {
		return fmt.Errorf("node: transmit from buffer %d: %w", n.tx.Slot, err)
	}
	n.sent.Inc()
	n.log.Debug("frame sent", "id", n.tx.ID, "len", n.tx.Len, "buffer", n.tx.Slot)
	if err := n.con.Printf("%s frame sent from Node-%d\n\n", n.cfg.Mode.frameName(), n.cfg.Role); err != nil {
		n.log.Warn("console write failed", "error", err)
	}
	return nil
}

// Run starts the node and blocks until ctx is done or a fatal error occurs.
// Cancellation is a clean stop and returns nil. Run does not close the
// peripherals.
func (n *Node) Run(ctx context.Context) error {
	mux := canbus.NewMux(n.bus)
	defer mux.Close()

	// Blocking subscriptions: a burst slows the bus reader down instead of
	// losing frames before OnReceive has toggled the LED.
	fifo, cancelFIFO := mux.SubscribeBlocking(n.cfg.Accept, rxQueue)
	defer cancelFIFO()
	var buffered <-chan canbus.Frame
	if n.cfg.Accept != nil {
		var cancelBuf func()
		buffered, cancelBuf = mux.SubscribeBlocking(canbus.Not(n.cfg.Accept), rxQueue)
		defer cancelBuf()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.btn.Watch(gctx, n.HandleButton) })
	g.Go(func() error { return n.report(gctx) })
	g.Go(func() error { return n.dispatch(gctx, mux, fifo, true) })
	if buffered != nil {
		g.Go(func() error { return n.dispatch(gctx, mux, buffered, false) })
	}
	g.Go(func() error { return n.loop(gctx) })

	n.log.Info("node running", "mode", n.cfg.Mode.String(), "id", n.tx.ID, "buffer", n.tx.Slot)
	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// loop waits for presses and polls. Presses that arrived before Run are
// handled on the first iteration.
func (n *Node) loop(ctx context.Context) error {
	for {
		if _, err := n.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.log.Error("transmit failed", "error", err)
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-n.wake:
		}
	}
}

// dispatch feeds frames from one mux subscription to OnReceive.
func (n *Node) dispatch(ctx context.Context, mux *canbus.Mux, frames <-chan canbus.Frame, fifo bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				<-mux.Done()
				if err := mux.Err(); err != nil {
					return fmt.Errorf("node: receive: %w", err)
				}
				return fmt.Errorf("node: receive: %w", canbus.ErrClosed)
			}
			n.OnReceive(RxMessage{FromFIFO: fifo, Frame: f})
		}
	}
}
