package lbm

import (
	"context"
	"fmt"
	"sync"
)

// Dispatcher routes inbound bridge events to the single awaiter registered
// for each result kind. Because the protocol carries no correlation ids,
// routing is by Kind alone: at most one reservation per kind may exist at
// a time, and events with no reservation are dropped. Spurious or
// duplicate events are therefore tolerated by construction.
type Dispatcher struct {
	logger Logger

	mu    sync.Mutex
	slots map[Kind]chan Message
}

func NewDispatcher(logger Logger) *Dispatcher {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Dispatcher{
		logger: logger,
		slots:  make(map[Kind]chan Message),
	}
}

// Reserve claims the awaiter slot for the given result kind. It returns
// the channel the next matching event will be delivered on and a release
// function that must be called when the caller is done waiting. A second
// reservation for the same kind fails with ErrBusy.
func (d *Dispatcher) Reserve(kind Kind) (<-chan Message, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.slots[kind]; taken {
		return nil, nil, fmt.Errorf("%w: %s", ErrBusy, kind)
	}
	ch := make(chan Message, 1)
	d.slots[kind] = ch
	release := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.slots[kind] == ch {
			delete(d.slots, kind)
		}
	}
	return ch, release, nil
}

// Run consumes events from the transport until the channel closes or the
// context is cancelled. It is meant to be run in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context, transport Transport) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-transport.Events():
			if !ok {
				return
			}
			d.deliver(msg)
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	d.mu.Lock()
	ch, ok := d.slots[msg.Kind]
	if ok {
		delete(d.slots, msg.Kind)
	}
	d.mu.Unlock()

	if !ok {
		d.logger.Debug("dropping unawaited bridge event", "kind", msg.Kind, "delivery", msg.Delivery)
		return
	}
	ch <- msg
}
