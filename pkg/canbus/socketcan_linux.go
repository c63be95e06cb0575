//go:build linux

package canbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// socketCAN implements Bus over Linux SocketCAN.
type socketCAN struct {
	file *os.File
	fd   bool
}

// DialSocketCAN opens a raw CAN socket bound to the given interface name
// (e.g. "can0"). When enableFD is true the socket accepts and emits CAN-FD
// frames in addition to classical ones; the interface itself must also be
// configured with `fd on`.
func DialSocketCAN(iface string, enableFD bool) (Bus, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_NONBLOCK, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: socket: %w", err)
	}

	if enableFD {
		if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("canbus: enable fd frames: %w", err)
		}
	}

	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: interface %q: %w", iface, err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: netIf.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %q: %w", iface, err)
	}

	// os.NewFile registers the non-blocking fd with the runtime poller, so
	// Read/Write block efficiently and honor Set{Read,Write}Deadline.
	f := os.NewFile(uintptr(fd), "socketcan:"+iface)
	return &socketCAN{file: f, fd: enableFD}, nil
}

func (s *socketCAN) Close() error {
	return s.file.Close()
}

// Send writes one frame using the Linux can_frame/canfd_frame layout.
func (s *socketCAN) Send(ctx context.Context, frame Frame) error {
	if frame.FD && !s.fd {
		return errors.New("canbus: fd frame on classical socket")
	}
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	stop := s.watchCtx(ctx, s.file.SetWriteDeadline)
	defer stop()
	n, err := s.file.Write(buf)
	if err != nil {
		return s.ctxErr(ctx, err)
	}
	if n != len(buf) {
		return errors.New("canbus: short write")
	}
	return nil
}

// Receive reads one frame, blocking until one arrives or ctx is done.
// Frame kind (classical vs FD) is determined by the read size.
func (s *socketCAN) Receive(ctx context.Context) (Frame, error) {
	stop := s.watchCtx(ctx, s.file.SetReadDeadline)
	defer stop()
	buf := make([]byte, canfdFrameSize)
	n, err := s.file.Read(buf)
	if err != nil {
		return Frame{}, s.ctxErr(ctx, err)
	}
	var f Frame
	if err := f.UnmarshalBinary(buf[:n]); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// watchCtx arranges for the pending file operation to be interrupted when
// ctx is cancelled or reaches its deadline. The returned stop function must
// be called to release the watcher and clear the deadline.
func (s *socketCAN) watchCtx(ctx context.Context, setDeadline func(time.Time) error) func() {
	if deadline, ok := ctx.Deadline(); ok {
		setDeadline(deadline)
	}
	if ctx.Done() == nil {
		return func() {}
	}
	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			setDeadline(time.Unix(0, 0))
		case <-stop:
		}
	}()
	return func() {
		close(stop)
		// Wait for the watcher so its expired-deadline write cannot land
		// after the reset below.
		<-finished
		setDeadline(time.Time{})
	}
}

// ctxErr maps a deadline-exceeded I/O error back to the context error when
// the context caused it.
func (s *socketCAN) ctxErr(ctx context.Context, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
