// Package grant implements the capability pool for zero-copy memory
// regions handed to drivers on Send/Receive/Configure requests.
package grant

import (
	"errors"
	"sync"
)

// Grant is an opaque capability for one contiguous memory region. The
// zero value is InvalidGrant and never names a live region.
type Grant uint32

// InvalidGrant is the sentinel distinct from any valid grant value.
const InvalidGrant Grant = 0

// ErrExhausted is returned when the preallocated handle space is full.
var ErrExhausted = errors.New("grant: handle space exhausted")

// Granter allocates and revokes capabilities on memory regions. A real
// implementation would hand the region to the microkernel's grant
// table; SimPool below is the in-process stand-in.
type Granter interface {
	// Alloc grants access to region, read-only if readOnly is true,
	// write-only otherwise. Fails once the handle space is exhausted.
	Alloc(region []byte, readOnly bool) (Grant, error)
	// Revoke invalidates g. Revoking InvalidGrant is a no-op.
	Revoke(g Grant)
}

// SimPool is a preallocated, fixed-capacity Granter backed by a free
// list. It simulates the microkernel's grant table: handles are never
// created or destroyed at runtime, only leased and returned.
type SimPool struct {
	mu      sync.Mutex
	regions []region
	free    []Grant
}

type region struct {
	buf      []byte
	readOnly bool
	inUse    bool
}

// NewSimPool preallocates capacity handles. capacity should be
// NrNreq(nrNdev, spares) * IOVMax so the grant space never runs out
// under the admission policy enforced above it by internal/reqpool.
func NewSimPool(capacity int) *SimPool {
	p := &SimPool{
		regions: make([]region, capacity+1), // index 0 reserved for InvalidGrant
		free:    make([]Grant, 0, capacity),
	}
	for i := capacity; i >= 1; i-- {
		p.free = append(p.free, Grant(i))
	}
	return p
}

func (p *SimPool) Alloc(buf []byte, readOnly bool) (Grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return InvalidGrant, ErrExhausted
	}
	n := len(p.free) - 1
	g := p.free[n]
	p.free = p.free[:n]
	p.regions[g] = region{buf: buf, readOnly: readOnly, inUse: true}
	return g, nil
}

func (p *SimPool) Revoke(g Grant) {
	if g == InvalidGrant {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(g) >= len(p.regions) || !p.regions[g].inUse {
		return
	}
	p.regions[g] = region{}
	p.free = append(p.free, g)
}

// Region returns the backing buffer and direction for a live grant,
// for use by a transport writing/reading on behalf of a driver.
func (p *SimPool) Region(g Grant) (buf []byte, readOnly bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g == InvalidGrant || int(g) >= len(p.regions) || !p.regions[g].inUse {
		return nil, false, false
	}
	r := p.regions[g]
	return r.buf, r.readOnly, true
}
