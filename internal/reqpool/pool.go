// Package reqpool implements the global request descriptor pool and
// the spare-pool admission policy shared by every driver's send queue.
package reqpool

import (
	"github.com/ndcc/ndcc/internal/constants"
	"github.com/ndcc/ndcc/internal/grant"
)

// Kind identifies the request carried by a Descriptor.
type Kind int

const (
	KindInit Kind = iota
	KindConfigure
	KindSend
	KindReceive
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindConfigure:
		return "configure"
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// Descriptor carries one in-flight request: its kind, its grants
// (terminated by grant.InvalidGrant if fewer than IOVMax are used),
// and the sequence id it was dispatched under.
type Descriptor struct {
	Kind   Kind
	Seq    uint32
	Grants [constants.IOVMax]grant.Grant

	index int // position in Pool.descriptors, fixed for the descriptor's lifetime
	used  bool
}

// Queue is the minimal view reqpool needs of a driver queue: current
// depth and admission cap. internal/queue.DriverQueue satisfies it.
type Queue interface {
	Count() int
	Max() int
}

// Pool is the fixed-size, preallocated request descriptor pool plus
// the global spare counter. It never grows or shrinks at runtime.
type Pool struct {
	descriptors []Descriptor
	free        []int
	sparesFree  int
	spares      int
}

// New preallocates n descriptors (n = constants.NrNreq(nrNdev, spares))
// with the given spare-pool size.
func New(n, spares int) *Pool {
	p := &Pool{
		descriptors: make([]Descriptor, n),
		free:        make([]int, n),
		sparesFree:  spares,
		spares:      spares,
	}
	for i := range p.descriptors {
		p.descriptors[i].index = i
		p.free[i] = i
	}
	return p
}

// SparesFree returns the current count of unused spare descriptors.
func (p *Pool) SparesFree() int { return p.sparesFree }

// Acquire implements the central admission policy: a hard cap at
// queue.max, plus a spare-pool requirement for any non-Receive
// request beyond MinSendQ. Returns nil, false when admission is
// denied; the queue is left untouched.
func (p *Pool) Acquire(kind Kind, q Queue) (*Descriptor, bool) {
	if q.Count() == q.Max() {
		return nil, false
	}
	if kind != KindReceive && q.Count() >= constants.MinSendQ && p.sparesFree == 0 {
		return nil, false
	}
	n := len(p.free) - 1
	d := &p.descriptors[p.free[n]]
	p.free = p.free[:n]
	d.Kind = kind
	d.used = true
	for i := range d.Grants {
		d.Grants[i] = grant.InvalidGrant
	}
	return d, true
}

// Commit appends d to queue (represented by the caller's own
// append-to-tail bookkeeping; Pool only tracks spare consumption) and
// must be called with no intervening Acquire for the same queue.
// depthAfterCommit is the queue's count after d is appended.
func (p *Pool) Commit(d *Descriptor, depthAfterCommit int) {
	if d.Kind != KindReceive && depthAfterCommit > constants.MinSendQ {
		p.sparesFree--
	}
}

// Release revokes every valid grant carried by d (in order, stopping
// at the first InvalidGrant), restores the spare if d had consumed
// one, and returns d to the free list. depthBeforeRelease is the
// queue's count immediately before d is removed from its head.
func (p *Pool) Release(d *Descriptor, depthBeforeRelease int, g grant.Granter) {
	for _, gr := range d.Grants {
		if gr == grant.InvalidGrant {
			break
		}
		g.Revoke(gr)
	}
	if d.Kind != KindReceive && depthBeforeRelease > constants.MinSendQ {
		p.sparesFree++
	}
	d.used = false
	p.free = append(p.free, d.index)
}

// Abort returns a freshly Acquired-but-never-Committed descriptor
// straight to the free list. Because Commit never ran, no spare was
// ever consumed, so Abort must not touch sparesFree the way Release
// does. Used by the protocol engine's grant-allocation rollback path,
// which revokes every grant allocated so far and reports out-of-memory.
func (p *Pool) Abort(d *Descriptor) {
	d.used = false
	p.free = append(p.free, d.index)
}
