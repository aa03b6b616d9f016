// Package discovery implements the adapter between the naming
// service's up/down notifications and the slot state machine.
package discovery

import (
	"strings"

	"github.com/ndcc/ndcc/internal/constants"
	"github.com/ndcc/ndcc/internal/interfaces"
)

// namingPrefix is the namespace discovery entries must carry to be
// considered a driver status change.
const namingPrefix = "drv.net."

// UpEvent and DownEvent are what PollUps/SweepDowns report to their
// caller (the root Core, which owns the actual state-transition
// logic) for each driver whose status changed this round.
type UpEvent struct {
	Label    string
	Endpoint interfaces.Endpoint
}

type DownEvent struct {
	Label string
}

// Adapter wraps a naming-service Discovery collaborator.
type Adapter struct {
	Naming interfaces.Discovery
}

// PollUps drains poll_changes and returns every valid driver-up entry.
// The caller applies each one to the slot state machine before
// computing the live-label set for SweepDowns, so a driver that just
// came up this round is not immediately swept down.
func (a *Adapter) PollUps() []UpEvent {
	var ups []UpEvent
	for _, c := range a.Naming.PollChanges() {
		if !strings.HasPrefix(c.Key, namingPrefix) {
			continue
		}
		if !c.Up || c.Endpoint == interfaces.NoEndpoint {
			continue
		}
		label := strings.TrimPrefix(c.Key, namingPrefix)
		if label == "" || len(label) >= constants.LabelMax {
			continue
		}
		ups = append(ups, UpEvent{Label: label, Endpoint: c.Endpoint})
	}
	return ups
}

// SweepDowns checks every currently live label against the naming
// service: a failed lookup_by_label produces a down event. The slot's
// endpoint is deliberately not consulted here, only its label.
func (a *Adapter) SweepDowns(liveLabels []string) []DownEvent {
	var downs []DownEvent
	for _, label := range liveLabels {
		if _, ok := a.Naming.LookupByLabel(label); !ok {
			downs = append(downs, DownEvent{Label: label})
		}
	}
	return downs
}
