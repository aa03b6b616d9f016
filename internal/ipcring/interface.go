// Package ipcring adapts the batched async-submission/completion ring
// pattern used for device I/O into the abstract IPC primitive NDCC's
// core assumes: reliable, unordered, asynchronous message send with
// endpoint identifiers. The core itself never imports this
// package directly; a real Transport implementation (one satisfying
// internal/interfaces.Transport) is built on top of it.
package ipcring

import "github.com/ndcc/ndcc/internal/interfaces"

// Config configures a Ring.
type Config struct {
	// Entries is the submission/completion queue depth.
	Entries uint32
	// FD is the file descriptor backing the ring (a socket or FIFO to
	// the driver-proxy process); -1 selects a no-op stand-in useful
	// for tests.
	FD int
}

// Result is one completed submission.
type Result interface {
	// UserData returns the tag the caller attached at submission time.
	UserData() uint64
	// Value returns the raw completion result: 0 on success, -errno
	// on failure.
	Value() int32
}

// Ring is the batched async send primitive. The giouring backend
// submits every message as an IORING_OP_SEND on the configured FD; it
// issues no receives. The default (non-giouring) backend only provides
// the no-op ring for a negative FD and rejects a real one.
type Ring interface {
	// SubmitSend enqueues an async send of payload to endpoint,
	// tagged with userData, without blocking for completion.
	SubmitSend(endpoint interfaces.Endpoint, payload []byte, userData uint64) error
	// SubmitSendAsync is the batched form: submit multiple sends in
	// one syscall when the backend supports it.
	SubmitSendAsync(sends []PendingSend) error
	// WaitCompletion blocks for at least one completion and returns
	// the batch observed so far.
	WaitCompletion() ([]Result, error)
	Close() error
}

// PendingSend is one entry of a SubmitSendAsync batch.
type PendingSend struct {
	Endpoint interfaces.Endpoint
	Payload  []byte
	UserData uint64
}

// NewRing builds a Ring from cfg. The concrete backend is selected by
// build tags: NewRing is implemented once per backend file
// (iouring.go for +build giouring, iouring_stub.go otherwise).
func NewRing(cfg Config) (Ring, error) {
	return newRing(cfg)
}
