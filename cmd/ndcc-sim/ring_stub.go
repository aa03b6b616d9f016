//go:build !giouring

package main

import "github.com/ndcc/ndcc/internal/interfaces"

// newRingTransport is unavailable without the giouring build tag; the
// sim always falls back to the in-process driver emulator.
func newRingTransport(ringFD int) (interfaces.Transport, bool, error) {
	return nil, false, nil
}
