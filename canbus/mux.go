package canbus

import (
	"context"
	"errors"
	"sync"
)

// FrameFilter decides whether a frame should be delivered to a subscriber.
type FrameFilter func(Frame) bool

// Mux multiplexes frames from a Bus to any number of subscribers via filters.
//
// It owns the provided Bus instance for receiving and runs a single background
// goroutine to read from Receive and fan-out frames to subscribers. This avoids
// having multiple goroutines competing to Receive. The reader starts with the
// first subscription, so frames queued on the bus before then are not lost.
//
// Send is not proxied; callers should keep using the original Bus to Send.
type Mux struct {
	bus    Bus
	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once
	done   chan struct{}
	err    error

	mu   sync.RWMutex
	subs map[uint64]*subscriber
	next uint64
}

type subscriber struct {
	filter FrameFilter
	ch     chan Frame
	block  bool
	// done is closed by the cancel function before it takes the lock, which
	// releases a reader blocked on a full blocking subscriber.
	done chan struct{}
	once sync.Once
}

// NewMux creates a multiplexer bound to the given Bus.
func NewMux(bus Bus) *Mux {
	ctx, cancel := context.WithCancel(context.Background())
	return &Mux{
		bus:    bus,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[uint64]*subscriber),
	}
}

func (m *Mux) startReader() {
	m.start.Do(func() { go m.run(m.ctx) })
}

// Close stops the background reader and closes all subscriber channels.
// It does not close the underlying Bus.
func (m *Mux) Close() error {
	m.cancel()
	m.startReader()
	<-m.done
	return nil
}

// Done is closed once the background reader has stopped.
func (m *Mux) Done() <-chan struct{} { return m.done }

// Err returns the receive error that stopped the mux, or nil when it was
// stopped by Close. Only meaningful after Done is closed.
func (m *Mux) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Subscribe registers a new subscriber with the provided filter and channel buffer.
// The returned channel will receive frames that match the filter. The cancel
// function should be called when no longer needed; it will close the channel.
// Frames are dropped for a subscriber whose buffer is full.
func (m *Mux) Subscribe(filter FrameFilter, buffer int) (<-chan Frame, func()) {
	return m.subscribe(filter, buffer, false)
}

// SubscribeBlocking is like Subscribe, but a full buffer makes the reader
// wait instead of dropping the frame. The wait holds up every other
// subscriber and pushes back on the bus, so the consumer must keep reading
// until it cancels.
func (m *Mux) SubscribeBlocking(filter FrameFilter, buffer int) (<-chan Frame, func()) {
	return m.subscribe(filter, buffer, true)
}

func (m *Mux) subscribe(filter FrameFilter, buffer int, block bool) (<-chan Frame, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{
		filter: filter,
		ch:     make(chan Frame, buffer),
		block:  block,
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	select {
	case <-m.done:
		m.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	default:
	}
	id := m.next
	m.next++
	m.subs[id] = s
	m.mu.Unlock()

	cancel := func() {
		s.once.Do(func() { close(s.done) })
		m.mu.Lock()
		if cur, ok := m.subs[id]; ok && cur == s {
			close(cur.ch)
			delete(m.subs, id)
		}
		m.mu.Unlock()
	}
	m.startReader()
	return s.ch, cancel
}

func (m *Mux) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		for id, s := range m.subs {
			close(s.ch)
			delete(m.subs, id)
		}
		close(m.done)
		m.mu.Unlock()
	}()
	for ctx.Err() == nil {
		f, err := m.bus.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				m.err = err
			}
			return
		}
		m.mu.RLock()
		for _, s := range m.subs {
			if s.filter != nil && !s.filter(f) {
				continue
			}
			if s.block {
				select {
				case s.ch <- f:
				case <-s.done:
				case <-ctx.Done():
				}
				continue
			}
			select {
			case s.ch <- f:
			default:
			}
		}
		m.mu.RUnlock()
	}
}
