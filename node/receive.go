package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/notnil/canfdnode/canbus"
)

// rxBufferSize is the capacity of the local copy of a received payload.
// Longer frames are truncated to it.
const rxBufferSize = PayloadSize

// RxMessage is one received message as delivered by the controller.
type RxMessage struct {
	// FromFIFO is true for messages delivered through the receive FIFO and
	// false for those placed in a dedicated receive buffer.
	FromFIFO bool
	// Index is the FIFO or buffer number. Unused by the node.
	Index uint8
	// Frame is only valid for the duration of the OnReceive call.
	Frame canbus.Frame
}

// rxEvent is the compact record handed from the receive path to the console
// reporter.
type rxEvent struct {
	id   uint32
	dlc  uint8
	n    uint8
	data [rxBufferSize]byte
}

// OnReceive handles one received message. FIFO data frames toggle the LED
// and are queued for the console; remote frames and buffer messages are
// ignored. It never blocks: when the console queue is full the event is
// dropped and counted.
func (n *Node) OnReceive(msg RxMessage) {
	if !msg.FromFIFO || msg.Frame.RTR {
		return
	}
	n.rxMu.Lock()
	defer n.rxMu.Unlock()

	if err := n.led.Toggle(); err != nil {
		n.log.Warn("led toggle failed", "error", err)
	}

	ev := rxEvent{id: msg.Frame.ID, dlc: msg.Frame.Len}
	ev.n = uint8(copy(ev.data[:], msg.Frame.Payload()))
	if int(msg.Frame.Len) > rxBufferSize {
		n.log.Warn("received payload truncated",
			"id", msg.Frame.ID,
			"len", int(msg.Frame.Len),
			"capacity", rxBufferSize,
		)
	}

	select {
	case n.events <- ev:
	default:
		n.log.Warn("console queue full, receive event dropped",
			"id", msg.Frame.ID,
			"dropped", n.dropped.Inc(),
		)
	}
}

// report writes queued receive events to the console until ctx is done,
// then flushes whatever is still queued.
func (n *Node) report(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n.flushEvents()
			return nil
		case ev := <-n.events:
			n.print(ev)
		}
	}
}

// flushEvents prints every queued event without waiting for more.
func (n *Node) flushEvents() {
	for {
		select {
		case ev := <-n.events:
			n.print(ev)
		default:
			return
		}
	}
}

func (n *Node) print(ev rxEvent) {
	if err := n.con.Printf("%s", formatEvent(ev)); err != nil {
		n.log.Warn("console write failed", "error", err)
	}
}

// formatEvent renders a receive event. The identifier is printed both as the
// sending node and as the identifier, matching the reference console output.
func formatEvent(ev rxEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d bytes received from Node-%d with identifier %d\n\n", ev.dlc, ev.id, ev.id)
	b.WriteString("Rx Data : ")
	for _, c := range ev.data[:ev.n] {
		fmt.Fprintf(&b, " %d ", c)
	}
	b.WriteString("\n\n")
	return b.String()
}
