package slot

import (
	"testing"

	"github.com/ndcc/ndcc/internal/interfaces"
)

func TestAllocVacantBumpsHighWaterAndState(t *testing.T) {
	table := NewTable(2)

	s, ok := table.AllocVacant(interfaces.Endpoint(1001), "e0")
	if !ok {
		t.Fatal("AllocVacant rejected on an empty table")
	}
	if s.State() != Initializing {
		t.Fatalf("state = %v, want Initializing (send queue max is 0)", s.State())
	}

	s.SendQ.SetMax(16)
	if s.State() != Active {
		t.Fatalf("state = %v, want Active once send queue max > 0", s.State())
	}
}

func TestAllocVacantFailsWhenFull(t *testing.T) {
	table := NewTable(1)
	if _, ok := table.AllocVacant(interfaces.Endpoint(1), "a"); !ok {
		t.Fatal("first AllocVacant should succeed")
	}
	if _, ok := table.AllocVacant(interfaces.Endpoint(2), "b"); ok {
		t.Fatal("AllocVacant should reject once the table is full")
	}
}

func TestLookupByEndpointAndLabel(t *testing.T) {
	table := NewTable(4)
	s, _ := table.AllocVacant(interfaces.Endpoint(42), "e0")

	if got := table.LookupByEndpoint(interfaces.Endpoint(42)); got != s {
		t.Fatal("LookupByEndpoint did not find the allocated slot")
	}
	if got := table.LookupByLabel("e0"); got != s {
		t.Fatal("LookupByLabel did not find the allocated slot")
	}
	if table.LookupByEndpoint(interfaces.Endpoint(999)) != nil {
		t.Fatal("LookupByEndpoint found a slot for an unknown endpoint")
	}
}

func TestFreeShrinksHighWaterOnlyAtTail(t *testing.T) {
	table := NewTable(3)
	s0, _ := table.AllocVacant(interfaces.Endpoint(1), "a")
	_, _ = table.AllocVacant(interfaces.Endpoint(2), "b")

	table.Free(s0)
	if table.Capacity() != 3 {
		t.Fatalf("capacity changed, got %d", table.Capacity())
	}
	// highWater must remain 2 since slot 1 (b) is still live, even
	// though slot 0 was freed out of order.
	if table.LookupByEndpoint(interfaces.Endpoint(2)) == nil {
		t.Fatal("freeing slot 0 out of order broke lookup of slot 1")
	}
}

func TestPendingCounterTracksMarks(t *testing.T) {
	table := NewTable(1)
	if table.Pending() != 0 {
		t.Fatalf("Pending() = %d initially, want 0", table.Pending())
	}
	table.MarkInitializing()
	if table.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", table.Pending())
	}
	table.MarkNoLongerInitializing()
	if table.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", table.Pending())
	}
}
