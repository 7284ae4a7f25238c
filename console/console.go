// Package console is the operator console of the node: plain, line-oriented
// text terminated by CRLF, written to a terminal or a UART.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tarm/serial"
)

// DefaultBaud is the console UART speed.
const DefaultBaud = 115200

// ClearScreen is the ANSI sequence that clears the terminal and homes the cursor.
const ClearScreen = "\x1b[2J\x1b[;H"

const ruler = "==============================================================="

// Console serialises writes from several goroutines onto one buffered stream.
// Every call flushes, so each call's text reaches the stream whole.
type Console struct {
	mu sync.Mutex
	w  *bufio.Writer
	c  io.Closer
}

// New returns a Console writing to w. If w is an io.Closer, Close closes it.
func New(w io.Writer) *Console {
	c, _ := w.(io.Closer)
	return &Console{w: bufio.NewWriter(w), c: c}
}

// OpenSerial opens the named serial device at baud and returns a Console on it.
func OpenSerial(name string, baud int) (*Console, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("console: open %s: %w", name, err)
	}
	return New(port), nil
}

// Printf formats according to format and writes the result. Bare "\n" line
// endings are expanded to "\r\n".
func (c *Console) Printf(format string, args ...interface{}) error {
	return c.write(fmt.Sprintf(format, args...))
}

// Println writes s followed by CRLF.
func (c *Console) Println(s string) error {
	return c.write(s + "\n")
}

// Banner clears the screen and prints the title block followed by the
// subtitle block, each between rulers.
func (c *Console) Banner(title, subtitle string) error {
	var b strings.Builder
	b.WriteString(ClearScreen)
	fmt.Fprintf(&b, "%s\n%s\n%s\n\n", ruler, title, ruler)
	fmt.Fprintf(&b, "%s\n%s\n%s\n\n", ruler, subtitle, ruler)
	return c.write(b.String())
}

func (c *Console) write(s string) error {
	s = crlf(s)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.WriteString(s); err != nil {
		return err
	}
	return c.w.Flush()
}

// Close flushes pending output and closes the underlying stream if it has one.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.w.Flush()
	if c.c != nil {
		if cerr := c.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// crlf rewrites bare LF line endings as CRLF.
func crlf(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
