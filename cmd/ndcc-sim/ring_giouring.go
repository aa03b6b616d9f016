//go:build giouring

package main

import (
	"github.com/ndcc/ndcc/internal/interfaces"
	"github.com/ndcc/ndcc/internal/ipcring"
)

// newRingTransport builds a giouring-backed Transport when the caller
// supplied a real IPC file descriptor. ringFD < 0 means no driver proxy
// is available, so the sim falls back to the in-process emulator.
func newRingTransport(ringFD int) (interfaces.Transport, bool, error) {
	if ringFD < 0 {
		return nil, false, nil
	}
	ring, err := ipcring.NewRing(ipcring.Config{Entries: 256, FD: ringFD})
	if err != nil {
		return nil, false, err
	}
	return ipcring.NewTransport(ring), true, nil
}
