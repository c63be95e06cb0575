// Package canbus provides CAN and CAN-FD primitives for talking to motor
// controllers over Linux SocketCAN.
//
// It includes:
//   - A Frame type covering classical CAN and CAN-FD payloads
//   - An in-memory loopback bus for tests and simulations
//   - A Linux SocketCAN driver built on golang.org/x/sys/unix
//   - A Mux for filtered fan-out to multiple consumers
package canbus

import (
	"context"
	"errors"
)

// Bus represents a CAN bus connection which can send and receive frames.
// Implementations should be safe for concurrent use by multiple goroutines.
type Bus interface {
	// Send transmits a frame. It may block until the frame is queued or sent.
	// Context cancellation aborts the operation and returns the context error.
	Send(ctx context.Context, frame Frame) error

	// Receive retrieves the next available frame. It blocks until a frame
	// is available or the context is cancelled.
	Receive(ctx context.Context) (Frame, error)

	// Close releases resources. Further Send/Receive may return an error.
	Close() error
}

// ErrClosed indicates the bus or endpoint has been closed.
var ErrClosed = errors.New("canbus: closed")
