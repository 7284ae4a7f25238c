package console

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestConsole_LineEndings(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	require.NoError(t, c.Printf("%d bytes\n\n", 8))
	require.NoError(t, c.Println("already\r\nterminated"))
	require.NoError(t, c.Printf("no newline"))

	assert.Equal(t, "8 bytes\r\n\r\nalready\r\nterminated\r\nno newline", buf.String())
}

func TestConsole_Banner(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	require.NoError(t, c.Banner("CANFD example", "CAN FD Node-1"))

	want := ClearScreen +
		ruler + "\r\nCANFD example\r\n" + ruler + "\r\n\r\n" +
		ruler + "\r\nCAN FD Node-1\r\n" + ruler + "\r\n\r\n"
	assert.Equal(t, want, buf.String())
}

func TestConsole_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Println("abcdefgh")
		}()
	}
	wg.Wait()
	assert.Equal(t, bytes.Repeat([]byte("abcdefgh\r\n"), 8), buf.Bytes())
}

func TestConsole_CloseClosesStream(t *testing.T) {
	rec := &closeRecorder{}
	c := New(rec)
	require.NoError(t, c.Println("bye"))
	require.NoError(t, c.Close())
	assert.True(t, rec.closed)
	assert.Equal(t, "bye\r\n", rec.String())
}

func TestOpenSerial_MissingDevice(t *testing.T) {
	_, err := OpenSerial("/dev/does-not-exist-canfd", 0)
	assert.Error(t, err)
}
