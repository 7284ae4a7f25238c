//go:build linux

package canbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollSlice bounds a single poll(2) wait so Close and context cancellation
// are observed promptly.
const pollSlice = 50 * time.Millisecond

// socketCAN implements Bus over a Linux SocketCAN raw socket.
type socketCAN struct {
	fd        int
	fdEnabled bool

	// ioMu is held shared by Send and Receive and exclusively by Close, so the
	// descriptor is never closed under an in-flight read, write or poll.
	ioMu      sync.RWMutex
	closeOnce sync.Once
	closed    chan struct{}
}

// DialSocketCAN opens a raw CAN socket bound to the given interface name
// (e.g., "can0"). When fd is true the socket accepts and emits CAN FD frames
// (CAN_RAW_FD_FRAMES); classical frames are still delivered.
func DialSocketCAN(iface string, fd bool) (Bus, error) {
	sock, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: socket(AF_CAN): %w", err)
	}
	if fd {
		if err := unix.SetsockoptInt(sock, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
			_ = unix.Close(sock)
			return nil, fmt.Errorf("canbus: enable CAN FD frames: %w", err)
		}
	}
	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(sock)
		return nil, fmt.Errorf("canbus: interface %q: %w", iface, err)
	}
	if err := unix.Bind(sock, &unix.SockaddrCAN{Ifindex: netIf.Index}); err != nil {
		_ = unix.Close(sock)
		return nil, fmt.Errorf("canbus: bind %s: %w", iface, err)
	}
	// Non-blocking so reads and writes can honour the context.
	if err := unix.SetNonblock(sock, true); err != nil {
		_ = unix.Close(sock)
		return nil, err
	}
	return &socketCAN{fd: sock, fdEnabled: fd, closed: make(chan struct{})}, nil
}

func (s *socketCAN) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.ioMu.Lock()
		err = unix.Close(s.fd)
		s.ioMu.Unlock()
	})
	return err
}

// Send writes one frame using the Linux can_frame or canfd_frame layout.
func (s *socketCAN) Send(ctx context.Context, frame Frame) error {
	if frame.FD && !s.fdEnabled {
		return fmt.Errorf("canbus: CAN FD frame on classical socket: %w", ErrInvalidFlags)
	}
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()
	for {
		if s.isClosed() {
			return ErrClosed
		}
		n, werr := unix.Write(s.fd, buf)
		if werr == nil {
			if n != len(buf) {
				return errors.New("canbus: short write")
			}
			return nil
		}
		if werr == unix.EAGAIN || werr == unix.ENOBUFS {
			if err := s.wait(ctx, unix.POLLOUT); err != nil {
				return err
			}
			continue
		}
		return werr
	}
}

// Receive reads one frame, blocking until a frame arrives, the context is
// done or the socket is closed. Kernel error frames are skipped.
func (s *socketCAN) Receive(ctx context.Context) (Frame, error) {
	var buf [fdMTU]byte
	s.ioMu.RLock()
	defer s.ioMu.RUnlock()
	for {
		if s.isClosed() {
			return Frame{}, ErrClosed
		}
		n, rerr := unix.Read(s.fd, buf[:])
		if rerr == nil {
			if n != classicMTU && n != fdMTU {
				return Frame{}, fmt.Errorf("canbus: short read: %d", n)
			}
			var f Frame
			if err := f.UnmarshalBinary(buf[:n]); err != nil {
				if errors.Is(err, ErrErrorFrame) {
					continue
				}
				return Frame{}, err
			}
			return f, nil
		}
		if rerr == unix.EAGAIN {
			if err := s.wait(ctx, unix.POLLIN); err != nil {
				return Frame{}, err
			}
			continue
		}
		if s.isClosed() {
			return Frame{}, ErrClosed
		}
		return Frame{}, rerr
	}
}

func (s *socketCAN) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// wait polls the socket for events, in slices so that cancellation and Close
// are noticed.
func (s *socketCAN) wait(ctx context.Context, events int16) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.isClosed() {
			return ErrClosed
		}
		slice := pollSlice
		if deadline, ok := ctx.Deadline(); ok {
			d := time.Until(deadline)
			if d <= 0 {
				return context.DeadlineExceeded
			}
			if d < slice {
				slice = d
			}
		}
		fds := []unix.PollFd{{Fd: int32(s.fd), Events: events}}
		n, err := unix.Poll(fds, int(slice/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
}
