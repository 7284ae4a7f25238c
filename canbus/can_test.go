package canbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLoopbackBus_SendReceive_MultiEndpoint(t *testing.T) {
	ctx := testContext(t)
	bus := NewLoopbackBus()
	defer bus.Close()

	a := bus.Open()
	b := bus.Open()
	c := bus.Open()
	defer a.Close()
	defer b.Close()
	defer c.Close()

	send := MustFrame(0x321, []byte("hello"))
	require.NoError(t, a.Send(ctx, send))

	gotB, err := b.Receive(ctx)
	require.NoError(t, err)
	gotC, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, send, gotB)
	assert.Equal(t, send, gotC)
	assert.Equal(t, "321 [5] 68 65 6C 6C 6F", gotB.String())

	// The sender never hears its own frame.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = a.Receive(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoopbackBus_FDFrames(t *testing.T) {
	ctx := testContext(t)
	bus := NewLoopbackBus()
	defer bus.Close()
	a, b := bus.Open(), bus.Open()

	f, err := NewFDFrame(0x2, make([]byte, 64), true)
	require.NoError(t, err)
	require.NoError(t, a.Send(ctx, f))
	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, got.FD)
	assert.True(t, got.BRS)
	assert.Equal(t, uint8(64), got.Len)

	assert.ErrorIs(t, a.Send(ctx, Frame{ID: 0x900}), ErrInvalidID)
}

func TestLoopbackBus_CloseBehavior(t *testing.T) {
	ctx := testContext(t)
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()

	require.NoError(t, a.Close())
	_, err := a.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.Send(ctx, MustFrame(0x1, nil)), ErrClosed)

	require.NoError(t, bus.Close())
	_, err = b.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Send(ctx, MustFrame(0x1, nil)), ErrClosed)

	late := bus.Open()
	assert.ErrorIs(t, late.Send(ctx, MustFrame(0x1, nil)), ErrClosed)
}

func TestLoopbackBus_SendHonoursContext(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	a, _ := bus.Open(), bus.Open()

	// Fill the receiver's queue so the next send has to wait.
	ctx := testContext(t)
	for i := 0; i < 64; i++ {
		require.NoError(t, a.Send(ctx, MustFrame(0x1, nil)))
	}
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Send(short, MustFrame(0x1, nil)), context.DeadlineExceeded)
}

func TestFilters_Basics(t *testing.T) {
	f1 := MustFrame(0x100, []byte{1})
	f2 := MustFrame(0x101, []byte{2})
	f3 := Frame{ID: 0x1ABCDEFF, Extended: true, Len: 0}
	fd, err := NewFDFrame(0x100, []byte{1}, false)
	require.NoError(t, err)

	assert.True(t, ByID(0x100)(f1))
	assert.False(t, ByID(0x100)(f2))
	assert.True(t, ByIDs(0x100, 0x102)(f1))
	assert.False(t, ByIDs(0x100, 0x102)(f2))
	assert.True(t, ByRange(0x1FF, 0x100)(f2), "bounds are swapped when reversed")
	assert.False(t, ByRange(0x200, 0x2FF)(f2))
	assert.True(t, ByMask(0x100, 0x7FF)(f1))
	assert.False(t, ByMask(0x100, 0x7FF)(f2))
	assert.True(t, ByMask(0x100, 0x7FE)(f2))
	assert.True(t, StandardOnly()(f1))
	assert.False(t, StandardOnly()(f3))
	assert.True(t, ExtendedOnly()(f3))
	assert.True(t, FDOnly()(fd))
	assert.False(t, FDOnly()(f1))
	assert.True(t, ClassicOnly()(f1))
	assert.True(t, LenAtMost(1)(f1))
	assert.False(t, LenAtMost(0)(f1))

	rtr := f1
	rtr.RTR = true
	assert.True(t, DataOnly()(f1))
	assert.True(t, RTROnly()(rtr))
	assert.True(t, And(ByID(0x100), DataOnly())(f1))
	assert.False(t, And(ByID(0x100), DataOnly())(rtr))
	assert.True(t, Or(ByID(0x100), ByID(0x999))(f1))
	assert.False(t, Or(ByID(0x999), ByID(0x998))(f1))
	assert.False(t, Not(ByID(0x100))(f1))
	assert.False(t, Not(nil)(f1))

	assert.Nil(t, Any())
	assert.True(t, Any(ByID(0x999), ByID(0x101))(f2))
	assert.False(t, Any(ByID(0x999), ByID(0x998))(f2))
}

func TestMux_Subscribe_Filtering_And_Close(t *testing.T) {
	ctx := testContext(t)
	bus := NewLoopbackBus()
	defer bus.Close()
	m := NewMux(bus.Open())
	defer m.Close()

	chA, cancelA := m.Subscribe(ByID(0x100), 1)
	chB, cancelB := m.Subscribe(ByRange(0x200, 0x2FF), 2)
	defer cancelB()

	producer := bus.Open()
	defer producer.Close()

	send := func(id uint32) { require.NoError(t, producer.Send(ctx, MustFrame(id, []byte{1, 2, 3}))) }

	send(0x100)
	send(0x210)
	send(0x105)

	select {
	case f := <-chA:
		assert.Equal(t, uint32(0x100), f.ID)
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for A")
	}
	select {
	case f := <-chB:
		assert.Equal(t, uint32(0x210), f.ID)
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for B")
	}
	select {
	case f := <-chA:
		t.Fatalf("A should be empty, got %03X", f.ID)
	case f := <-chB:
		t.Fatalf("B should be empty, got %03X", f.ID)
	case <-time.After(100 * time.Millisecond):
	}

	cancelA()
	_, ok := <-chA
	assert.False(t, ok, "A should be closed after cancel")
	cancelA()

	require.NoError(t, m.Close())
	_, ok = <-chB
	assert.False(t, ok, "B should be closed after mux close")
	assert.NoError(t, m.Err())

	late, _ := m.Subscribe(nil, 1)
	_, ok = <-late
	assert.False(t, ok, "subscribing to a stopped mux yields a closed channel")
}

func TestMux_KeepsFramesQueuedBeforeSubscribe(t *testing.T) {
	ctx := testContext(t)
	bus := NewLoopbackBus()
	defer bus.Close()
	m := NewMux(bus.Open())
	defer m.Close()

	require.NoError(t, bus.Open().Send(ctx, MustFrame(0x42, []byte{1})))
	ch, cancel := m.Subscribe(nil, 1)
	defer cancel()
	select {
	case f := <-ch:
		assert.Equal(t, uint32(0x42), f.ID)
	case <-time.After(time.Second):
		t.Fatalf("queued frame was not delivered")
	}
}

func TestMux_ReportsBusFailure(t *testing.T) {
	bus := NewLoopbackBus()
	ep := bus.Open()
	m := NewMux(ep)
	ch, _ := m.Subscribe(nil, 1)

	require.NoError(t, ep.Close())
	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatalf("mux did not stop after bus close")
	}
	assert.ErrorIs(t, m.Err(), ErrClosed)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestMux_SubscribeBlocking_DeliversBurst(t *testing.T) {
	ctx := testContext(t)
	bus := NewLoopbackBus()
	defer bus.Close()
	m := NewMux(bus.Open())
	defer m.Close()

	ch, cancel := m.SubscribeBlocking(nil, 2)
	defer cancel()

	const burst = 200
	producer := bus.Open()
	defer producer.Close()
	sendErr := make(chan error, 1)
	go func() {
		for i := 0; i < burst; i++ {
			if err := producer.Send(ctx, MustFrame(uint32(i), []byte{byte(i)})); err != nil {
				sendErr <- err
				return
			}
		}
		sendErr <- nil
	}()

	for i := 0; i < burst; i++ {
		select {
		case f := <-ch:
			require.Equal(t, uint32(i), f.ID, "frames arrive in order with none missing")
		case <-ctx.Done():
			t.Fatalf("only %d of %d frames delivered", i, burst)
		}
		if i%50 == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	require.NoError(t, <-sendErr)
}

func TestMux_SubscribeBlocking_CancelReleasesReader(t *testing.T) {
	ctx := testContext(t)
	bus := NewLoopbackBus()
	defer bus.Close()
	m := NewMux(bus.Open())
	defer m.Close()

	_, cancelStuck := m.SubscribeBlocking(nil, 0)
	other, cancelOther := m.Subscribe(nil, 4)
	defer cancelOther()

	producer := bus.Open()
	defer producer.Close()
	require.NoError(t, producer.Send(ctx, MustFrame(0x1, nil)))
	require.NoError(t, producer.Send(ctx, MustFrame(0x2, nil)))

	select {
	case f := <-other:
		assert.Equal(t, uint32(0x1), f.ID)
	case <-time.After(time.Second):
		t.Fatalf("first frame not delivered")
	}
	select {
	case f := <-other:
		t.Fatalf("reader should be held by the blocking subscriber, got %03X", f.ID)
	case <-time.After(50 * time.Millisecond):
	}

	cancelStuck()
	select {
	case f := <-other:
		assert.Equal(t, uint32(0x2), f.ID)
	case <-time.After(time.Second):
		t.Fatalf("reader not released by cancel")
	}
}

func TestMux_CloseReleasesBlockedReader(t *testing.T) {
	ctx := testContext(t)
	bus := NewLoopbackBus()
	defer bus.Close()
	m := NewMux(bus.Open())

	ch, _ := m.SubscribeBlocking(nil, 0)
	require.NoError(t, bus.Open().Send(ctx, MustFrame(0x1, nil)))
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = m.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("Close blocked behind a full subscriber")
	}
	for range ch {
	}
}

func ExampleLoopbackBus() {
	ctx := context.Background()
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()
	defer a.Close()
	defer b.Close()

	_ = a.Send(ctx, MustFrame(0x123, []byte("hi")))
	f, _ := b.Receive(ctx)
	fmt.Printf("ID=%03X LEN=%d DATA=%x\n", f.ID, f.Len, f.Payload())
	// Output: ID=123 LEN=2 DATA=6869
}
