// Package slot implements the driver slot record and the fixed-
// capacity driver table.
package slot

import (
	"github.com/ndcc/ndcc/internal/constants"
	"github.com/ndcc/ndcc/internal/interfaces"
	"github.com/ndcc/ndcc/internal/queue"
)

// State is the derived lifecycle state of a Slot.
type State int

const (
	Vacant State = iota
	Initializing
	Active
)

func (s State) String() string {
	switch s {
	case Vacant:
		return "vacant"
	case Initializing:
		return "initializing"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// NoHandle is the sentinel EthifHandle value meaning "no upper-layer
// handle yet", i.e. the slot is waiting for its first successful Init
// reply.
const NoHandle = -1

// Slot is one driver record in the table.
type Slot struct {
	Index       int
	Endpoint    interfaces.Endpoint
	Label       string
	EthifHandle int
	SendQ       *queue.DriverQueue
	RecvQ       *queue.DriverQueue
}

// State derives the slot's lifecycle state: Vacant iff no endpoint,
// Active iff the send queue is admitting (max > 0), else Initializing.
func (s *Slot) State() State {
	if s.Endpoint == interfaces.NoEndpoint {
		return Vacant
	}
	if s.SendQ.Max() > 0 {
		return Active
	}
	return Initializing
}

// Table is the fixed-capacity array of driver slots plus the
// high-water mark: the smallest index such that every slot at or
// beyond it is Vacant. Lookups are linear over [0, highWater).
type Table struct {
	slots     []Slot
	highWater int
	pending   int
}

// NewTable preallocates a table of the given capacity. Each slot's
// queues are seeded with a head spread apart by SlotHeadSpread to
// reduce cross-slot sequence-collision risk on misdelivery.
func NewTable(capacity int) *Table {
	t := &Table{slots: make([]Slot, capacity)}
	for i := range t.slots {
		seed := uint32(i) * constants.SlotHeadSpread
		t.slots[i] = Slot{
			Index:       i,
			Endpoint:    interfaces.NoEndpoint,
			EthifHandle: NoHandle,
			SendQ:       queue.NewDriverQueue(seed),
			RecvQ:       queue.NewDriverQueue(seed),
		}
	}
	return t
}

// Capacity returns NR_NDEV.
func (t *Table) Capacity() int { return len(t.slots) }

// Pending returns the number of slots currently Initializing.
func (t *Table) Pending() int { return t.pending }

// Slot returns the slot at index, or nil if out of range.
func (t *Table) Slot(index int) *Slot {
	if index < 0 || index >= len(t.slots) {
		return nil
	}
	return &t.slots[index]
}

// LookupByEndpoint finds the slot owned by endpoint, linear over
// [0, highWater).
func (t *Table) LookupByEndpoint(ep interfaces.Endpoint) *Slot {
	for i := 0; i < t.highWater; i++ {
		if t.slots[i].Endpoint == ep {
			return &t.slots[i]
		}
	}
	return nil
}

// LookupByLabel finds a live (non-Vacant) slot with the given label.
func (t *Table) LookupByLabel(label string) *Slot {
	for i := 0; i < t.highWater; i++ {
		if t.slots[i].Endpoint != interfaces.NoEndpoint && t.slots[i].Label == label {
			return &t.slots[i]
		}
	}
	return nil
}

// AllLive returns every Active or Initializing slot, for the
// discovery sweep to compare against.
func (t *Table) AllLive() []*Slot {
	var out []*Slot
	for i := 0; i < t.highWater; i++ {
		if t.slots[i].Endpoint != interfaces.NoEndpoint {
			out = append(out, &t.slots[i])
		}
	}
	return out
}

// AllocVacant finds the first Vacant slot, marks it owned by
// endpoint/label, and bumps highWater. Returns nil, false if the
// table is full.
func (t *Table) AllocVacant(ep interfaces.Endpoint, label string) (*Slot, bool) {
	for i := range t.slots {
		if t.slots[i].Endpoint == interfaces.NoEndpoint {
			t.slots[i].Endpoint = ep
			t.slots[i].Label = label
			if i+1 > t.highWater {
				t.highWater = i + 1
			}
			return &t.slots[i], true
		}
	}
	return nil, false
}

// MarkInitializing/MarkNoLongerInitializing adjust the pending counter
// in step with a slot's state transition. Callers (the core's state
// machine) call MarkInitializing on every transition into Initializing
// and MarkNoLongerInitializing on every transition out of it;
// transitions that neither enter nor leave Initializing call neither.
func (t *Table) MarkInitializing() { t.pending++ }
func (t *Table) MarkNoLongerInitializing() {
	if t.pending > 0 {
		t.pending--
	}
}

// Free returns a slot to Vacant. Queues must already be reset by the
// caller (they carry outstanding descriptors that need releasing
// through the pool first).
func (t *Table) Free(s *Slot) {
	s.Endpoint = interfaces.NoEndpoint
	s.Label = ""
	s.EthifHandle = NoHandle
	if s.Index == t.highWater-1 {
		for t.highWater > 0 && t.slots[t.highWater-1].Endpoint == interfaces.NoEndpoint {
			t.highWater--
		}
	}
}
