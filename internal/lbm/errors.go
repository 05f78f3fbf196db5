package lbm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by Send before the peer handshake completes.
	ErrNotReady = errors.New("bridge not ready")

	// ErrDisconnected is returned when no bridge transport is attached or
	// the pathway is gone.
	ErrDisconnected = errors.New("bridge disconnected")

	// ErrBusy is returned when a request of the same kind is already in
	// flight. The wire protocol has no correlation ids, so overlapping
	// requests of one kind cannot be told apart.
	ErrBusy = errors.New("request already in flight")

	// ErrNoToken is returned by persistence operations before a durable
	// token has been established.
	ErrNoToken = errors.New("no auth token, setup required")

	// ErrNoSession is returned when an operation needs a live privileged
	// session secret and none is held.
	ErrNoSession = errors.New("admin session required")
)

// BatchError reports a failed batch upload. Index is the zero-based
// position of the failing item; Succeeded counts the items already
// uploaded before the batch stopped.
type BatchError struct {
	Index     int
	Succeeded int
	Reason    string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch item %d failed after %d succeeded: %s", e.Index, e.Succeeded, e.Reason)
}
