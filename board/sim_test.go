package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimButton_WatchDispatchesEachEdge(t *testing.T) {
	b := NewSimButton()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan uint32, 4)
	done := make(chan error, 1)
	go func() {
		done <- b.Watch(ctx, func() {
			fired <- b.InterruptStatus()
			b.ClearInterrupt()
		})
	}()

	require.True(t, b.Press())
	require.True(t, b.Press())
	for i := 0; i < 2; i++ {
		select {
		case st := <-fired:
			assert.Equal(t, ButtonMask, st)
		case <-time.After(time.Second):
			t.Fatalf("edge %d not dispatched", i)
		}
	}
	assert.Equal(t, uint32(0), b.InterruptStatus())
	assert.Equal(t, uint64(2), b.Clears())

	cancel()
	assert.NoError(t, <-done)
}

func TestSimButton_Close(t *testing.T) {
	b := NewSimButton()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.False(t, b.Press())
	assert.NoError(t, b.Watch(context.Background(), func() { t.Fatalf("no edges after close") }))
}

func TestSimLED_Toggle(t *testing.T) {
	l := NewSimLED()
	assert.False(t, l.Level())
	require.NoError(t, l.Toggle())
	assert.True(t, l.Level())
	require.NoError(t, l.Toggle())
	assert.False(t, l.Level())
	assert.Equal(t, uint64(2), l.Toggles())
}
