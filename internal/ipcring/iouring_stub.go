//go:build !giouring
// +build !giouring

package ipcring

import (
	"fmt"

	"github.com/ndcc/ndcc/internal/interfaces"
)

// newRing is the default build's backend: no giouring dependency. A
// negative FD yields the no-op ring below; any real FD is rejected with
// an error, since this build has no backend that sends on it. Build
// with -tags giouring for the io_uring backend.
func newRing(cfg Config) (Ring, error) {
	if cfg.FD < 0 {
		return &noopRing{}, nil
	}
	return nil, fmt.Errorf("ipcring: giouring not enabled; build with -tags giouring")
}

// noopRing discards every send and never completes. It exists so
// package tests can exercise the Ring interface without a kernel-backed
// transport.
type noopRing struct{}

func (r *noopRing) SubmitSend(endpoint interfaces.Endpoint, payload []byte, userData uint64) error {
	return nil
}

func (r *noopRing) SubmitSendAsync(sends []PendingSend) error { return nil }

func (r *noopRing) WaitCompletion() ([]Result, error) { return nil, nil }

func (r *noopRing) Close() error { return nil }
