// Package queue implements the bounded per-driver FIFO: a monotonic
// head sequence number, a depth cap, and the sole reply-matching rule
// (remove_head_if).
package queue

import "github.com/ndcc/ndcc/internal/reqpool"

// DriverQueue is one of a driver slot's two queues (send or receive).
type DriverQueue struct {
	head  uint32
	max   int
	items []*reqpool.Descriptor
}

// NewDriverQueue creates an empty queue seeded at the given head.
// Distinct slots seed with distinct, spread-out heads (see
// constants.SlotHeadSpread) to reduce cross-slot sequence collision
// risk if a reply is misdelivered.
func NewDriverQueue(headSeed uint32) *DriverQueue {
	return &DriverQueue{head: headSeed}
}

func (q *DriverQueue) Head() uint32 { return q.head }
func (q *DriverQueue) Count() int   { return len(q.items) }
func (q *DriverQueue) Max() int     { return q.max }

// SetMax sets the admission cap. A freshly reset queue has max == 0,
// which marks the owning driver not yet active.
func (q *DriverQueue) SetMax(max int) { q.max = max }

// NextSeq returns the sequence id the next Append will assign.
func (q *DriverQueue) NextSeq() uint32 { return q.head + uint32(len(q.items)) }

// Append places d at the tail, assigning it the next sequence id. The
// caller must have obtained d via reqpool.Pool.Acquire against this
// queue with no intervening acquire.
func (q *DriverQueue) Append(d *reqpool.Descriptor) {
	d.Seq = q.NextSeq()
	q.items = append(q.items, d)
}

// RemoveHeadIf is the sole reply-matching rule: it returns the head
// descriptor and true iff the queue is non-empty, its head sequence
// equals seq, and the head descriptor's kind equals kind. On match the
// head is detached (the caller is responsible for releasing it back
// to the pool).
func (q *DriverQueue) RemoveHeadIf(kind reqpool.Kind, seq uint32) (*reqpool.Descriptor, bool) {
	if len(q.items) == 0 || q.head != seq {
		return nil, false
	}
	d := q.items[0]
	if d.Kind != kind {
		return nil, false
	}
	q.items = q.items[1:]
	q.head++
	return d, true
}

// BumpHead advances head by one without touching max or count, used
// to re-establish sequence distinctness across the Init-reply boundary
// rather than a full Reset.
func (q *DriverQueue) BumpHead() { q.head++ }

// Reset drops every outstanding descriptor (the caller must release
// each one first), sets max to 0, and bumps head so that any reply
// drawn from the pre-reset sequence space can never match again.
func (q *DriverQueue) Reset() {
	bumped := uint32(len(q.items)) + 1
	q.items = nil
	q.max = 0
	q.head += bumped
}

// Items exposes the outstanding descriptors in head-to-tail order, for
// callers that need to release them all (e.g. on Reset).
func (q *DriverQueue) Items() []*reqpool.Descriptor {
	return q.items
}
