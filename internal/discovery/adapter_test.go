package discovery

import (
	"testing"

	"github.com/ndcc/ndcc/internal/interfaces"
)

type fakeNaming struct {
	changes []interfaces.Change
	labels  map[string]interfaces.Endpoint
}

func (f *fakeNaming) PollChanges() []interfaces.Change { return f.changes }
func (f *fakeNaming) LookupByLabel(label string) (interfaces.Endpoint, bool) {
	ep, ok := f.labels[label]
	return ep, ok
}

func TestPollUpsEmitsUpForPrefixedEntries(t *testing.T) {
	naming := &fakeNaming{changes: []interfaces.Change{
		{Key: "drv.net.e0", Endpoint: 1001, Up: true},
		{Key: "other.namespace.x", Endpoint: 2, Up: true},
		{Key: "drv.net.e1", Endpoint: interfaces.NoEndpoint, Up: true},
	}, labels: map[string]interfaces.Endpoint{}}

	a := &Adapter{Naming: naming}
	ups := a.PollUps()

	if len(ups) != 1 || ups[0].Label != "e0" || ups[0].Endpoint != 1001 {
		t.Fatalf("unexpected ups: %+v", ups)
	}
}

func TestSweepDownsMissingLabels(t *testing.T) {
	naming := &fakeNaming{labels: map[string]interfaces.Endpoint{"e0": 1001}}
	a := &Adapter{Naming: naming}

	downs := a.SweepDowns([]string{"e0", "e1"})

	if len(downs) != 1 || downs[0].Label != "e1" {
		t.Fatalf("unexpected downs: %+v", downs)
	}
}
