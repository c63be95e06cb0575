package canbus

import (
	"context"
	"sync"
)

// LoopbackBus is an in-memory CAN bus for tests and simulations.
// Multiple endpoints opened from the same bus can exchange frames.
type LoopbackBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*loopEndpoint]struct{}
}

// NewLoopbackBus creates a new loopback bus.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{endpoints: make(map[*loopEndpoint]struct{})}
}

// Open creates a new endpoint attached to the bus.
func (b *LoopbackBus) Open() Bus {
	ep := &loopEndpoint{
		bus:    b,
		ch:     make(chan Frame, 64),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ep.closed)
		return ep
	}
	b.endpoints[ep] = struct{}{}
	b.mu.Unlock()
	return ep
}

// Close closes the bus and detaches all endpoints.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for ep := range b.endpoints {
		ep.closeNoLock()
	}
	b.endpoints = nil
	b.mu.Unlock()
	return nil
}

type loopEndpoint struct {
	bus    *LoopbackBus
	ch     chan Frame
	mu     sync.Mutex
	dead   bool
	closed chan struct{}
}

// Send broadcasts the frame to all other endpoints on the same bus.
func (e *loopEndpoint) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()
	// Snapshot endpoints under bus lock to avoid holding while sending.
	e.bus.mu.RLock()
	if e.bus.closed {
		e.bus.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*loopEndpoint, 0, len(e.bus.endpoints))
	for ep := range e.bus.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.bus.mu.RUnlock()

	for _, t := range targets {
		select {
		case t.ch <- frame:
		case <-t.closed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Receive waits for the next frame.
func (e *loopEndpoint) Receive(ctx context.Context) (Frame, error) {
	select {
	case <-e.closed:
		return Frame{}, ErrClosed
	case f := <-e.ch:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Close detaches endpoint from bus and closes its channel.
func (e *loopEndpoint) Close() error {
	e.bus.mu.Lock()
	e.closeNoLock()
	e.bus.mu.Unlock()
	return nil
}

func (e *loopEndpoint) closeNoLock() {
	e.mu.Lock()
	if e.dead {
		e.mu.Unlock()
		return
	}
	e.dead = true
	// Only the closed channel signals shutdown. ch stays open so that a
	// concurrent Send racing with Close can never hit a closed channel.
	close(e.closed)
	if e.bus.endpoints != nil {
		delete(e.bus.endpoints, e)
	}
	e.mu.Unlock()
}
