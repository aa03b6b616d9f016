package ndcc

import "sync/atomic"

// Metrics holds atomic counters for the admission, init, and discovery
// events callers commonly want to export.
type Metrics struct {
	AcquireOK            atomic.Int64
	AcquireBusy          atomic.Int64
	AcquireOOM           atomic.Int64
	InitRepliesValid     atomic.Int64
	InitRepliesInvalid   atomic.Int64
	StaleRepliesDropped  atomic.Int64
	UnknownSenderDropped atomic.Int64
	TableFullDropped     atomic.Int64
	QueueResets          atomic.Int64
}

// NewMetrics returns a zeroed Metrics.
func NewMetrics() *Metrics { return &Metrics{} }

// MetricsSnapshot is a point-in-time copy of Metrics, safe to pass
// around without further atomic access.
type MetricsSnapshot struct {
	AcquireOK, AcquireBusy, AcquireOOM                     int64
	InitRepliesValid, InitRepliesInvalid                   int64
	StaleRepliesDropped, UnknownSenderDropped              int64
	TableFullDropped, QueueResets                          int64
}

// Snapshot copies every counter's current value.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		AcquireOK:            m.AcquireOK.Load(),
		AcquireBusy:          m.AcquireBusy.Load(),
		AcquireOOM:           m.AcquireOOM.Load(),
		InitRepliesValid:     m.InitRepliesValid.Load(),
		InitRepliesInvalid:   m.InitRepliesInvalid.Load(),
		StaleRepliesDropped:  m.StaleRepliesDropped.Load(),
		UnknownSenderDropped: m.UnknownSenderDropped.Load(),
		TableFullDropped:     m.TableFullDropped.Load(),
		QueueResets:          m.QueueResets.Load(),
	}
}

// Observer receives metrics events as they happen. NoOpObserver and
// MetricsObserver are the two stock implementations; callers may
// supply their own (e.g. to export to a time-series backend).
type Observer interface {
	OnAcquire(kind string, ok bool)
	OnReply(kind string, matched bool)
	OnStateTransition(slot int, from, to string)
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) OnAcquire(string, bool)         {}
func (NoOpObserver) OnReply(string, bool)           {}
func (NoOpObserver) OnStateTransition(int, string, string) {}

// MetricsObserver records events into a Metrics.
type MetricsObserver struct {
	M *Metrics
}

func (o MetricsObserver) OnAcquire(_ string, ok bool) {
	if ok {
		o.M.AcquireOK.Add(1)
	} else {
		o.M.AcquireBusy.Add(1)
	}
}

func (o MetricsObserver) OnReply(kind string, matched bool) {
	if !matched {
		switch kind {
		case "unknown-sender":
			o.M.UnknownSenderDropped.Add(1)
		default:
			o.M.StaleRepliesDropped.Add(1)
		}
		return
	}
	if kind == "init" {
		o.M.InitRepliesValid.Add(1)
	}
}

func (o MetricsObserver) OnStateTransition(int, string, string) {}

var (
	_ Observer = NoOpObserver{}
	_ Observer = MetricsObserver{}
)
