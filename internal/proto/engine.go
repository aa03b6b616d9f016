package proto

import (
	"errors"

	"github.com/ndcc/ndcc/internal/constants"
	"github.com/ndcc/ndcc/internal/grant"
	"github.com/ndcc/ndcc/internal/interfaces"
	"github.com/ndcc/ndcc/internal/queue"
	"github.com/ndcc/ndcc/internal/reqpool"
	"github.com/ndcc/ndcc/internal/slot"
)

// ErrBusy and ErrOutOfMemory are the two admission-failure outcomes a
// build call can report; the root package wraps these into its own
// *Error type.
var (
	ErrBusy        = errors.New("proto: busy")
	ErrOutOfMemory = errors.New("proto: grant allocation failed")
)

// Engine builds outgoing requests and dispatches incoming replies. It
// holds no per-driver state of its own; everything it touches lives in
// the Pool, Granter, and Table set on its fields.
type Engine struct {
	Pool      *reqpool.Pool
	Granter   grant.Granter
	Transport interfaces.Transport
	Table     *slot.Table
	EthIf     interfaces.EthIf
	Logger    interfaces.Logger
	Observer  interfaces.Observer
	// Fatal is invoked on an unrecoverable IPC send failure.
	Fatal func(error)
}

func (e *Engine) fatal(err error) {
	if e.Fatal != nil {
		e.Fatal(err)
		return
	}
	panic(err)
}

func (e *Engine) observeAcquire(kind string, ok bool) {
	if e.Observer != nil {
		e.Observer.OnAcquire(kind, ok)
	}
}

// SendInit dispatches an Init request for s. Init is not acquired from
// the pool or stored in the queue: its id is simply the queue's
// current head.
//
// TODO: a slot left Initializing forever (driver never replies and
// never restarts) stays pending indefinitely; Core.Check has no
// deadline to re-send or give up on an outstanding Init.
func (e *Engine) SendInit(s *slot.Slot) {
	id := s.SendQ.Head()
	if err := e.Transport.Send(s.Endpoint, InitRequest{ID: id}); err != nil {
		e.fatal(err)
	}
}

// BuildConfigure implements the acquire->build->grant->dispatch->commit
// sequence for a Configure request. multicast is nil when
// the request carries no multicast-list grant.
func (e *Engine) BuildConfigure(s *slot.Slot, set ConfigureSet, mode, caps, flags, media uint32, hwAddr []byte, multicast []byte) error {
	d, ok := e.Pool.Acquire(reqpool.KindConfigure, s.SendQ)
	e.observeAcquire("configure", ok)
	if !ok {
		return ErrBusy
	}

	req := ConfigureRequest{Set: set, Mode: mode, Caps: caps, Flags: flags, Media: media, HWAddr: hwAddr}
	if multicast != nil {
		g, err := e.Granter.Alloc(multicast, true)
		if err != nil {
			e.Pool.Abort(d)
			return ErrOutOfMemory
		}
		req.Multicast = g
		req.MulticastCount = 1
		d.Grants[0] = g
	}

	s.SendQ.Append(d)
	req.ID = d.Seq
	if err := e.Transport.Send(s.Endpoint, req); err != nil {
		e.fatal(err)
	}
	e.Pool.Commit(d, s.SendQ.Count())
	return nil
}

// BuildSend implements the Send request builder: one read-only grant
// per scatter/gather segment, up to IOVMax.
func (e *Engine) BuildSend(s *slot.Slot, segments [][]byte) error {
	return e.buildIOV(s, s.SendQ, reqpool.KindSend, segments, true, func(id uint32, grants []grant.Grant, lens []uint32) any {
		return SendRequest{ID: id, Grants: grants, Lens: lens}
	})
}

// BuildReceive implements the Receive request builder: one write-only
// grant per pre-allocated buffer segment, up to IOVMax.
func (e *Engine) BuildReceive(s *slot.Slot, segments [][]byte) error {
	return e.buildIOV(s, s.RecvQ, reqpool.KindReceive, segments, false, func(id uint32, grants []grant.Grant, lens []uint32) any {
		return ReceiveRequest{ID: id, Grants: grants, Lens: lens}
	})
}

func (e *Engine) buildIOV(s *slot.Slot, q *queue.DriverQueue, kind reqpool.Kind, segments [][]byte, readOnly bool, build func(uint32, []grant.Grant, []uint32) any) error {
	if len(segments) > constants.IOVMax {
		segments = segments[:constants.IOVMax]
	}
	d, ok := e.Pool.Acquire(kind, q)
	e.observeAcquire(kind.String(), ok)
	if !ok {
		return ErrBusy
	}

	grants := make([]grant.Grant, 0, len(segments))
	lens := make([]uint32, 0, len(segments))
	for i, seg := range segments {
		g, err := e.Granter.Alloc(seg, readOnly)
		if err != nil {
			for _, prior := range grants {
				e.Granter.Revoke(prior)
			}
			e.Pool.Abort(d)
			return ErrOutOfMemory
		}
		d.Grants[i] = g
		grants = append(grants, g)
		lens = append(lens, uint32(len(seg)))
	}

	q.Append(d)
	msg := build(d.Seq, grants, lens)
	if err := e.Transport.Send(s.Endpoint, msg); err != nil {
		e.fatal(err)
	}
	e.Pool.Commit(d, q.Count())
	return nil
}

// DispatchResult reports what Dispatch did with an inbound message, so
// the caller (ndcc.Core) can drive the slot state machine without
// Dispatch itself needing to know about ethif_add/enable side effects.
type DispatchResult struct {
	// InitReply is non-nil when an Init-reply matched an Initializing
	// slot's send-queue head; the caller must validate it and drive
	// the slot's state transition.
	InitReply *InitReply
	Slot      *slot.Slot
}

// Dispatch demultiplexes one inbound message by sender endpoint, then
// by kind, against the matching queue head. Unknown senders are
// silently dropped. Replies matched against a queue head are released
// back to the pool and surfaced to ethif; everything else not
// recognized here is ignored for forward compatibility.
func (e *Engine) Dispatch(sender interfaces.Endpoint, msg any) DispatchResult {
	s := e.Table.LookupByEndpoint(sender)
	if s == nil {
		if e.Observer != nil {
			e.Observer.OnReply("unknown-sender", false)
		}
		return DispatchResult{}
	}

	switch m := msg.(type) {
	case InitReply:
		if s.State() != slot.Initializing || m.ID != s.SendQ.Head() {
			e.observeReply("init", false)
			return DispatchResult{Slot: s}
		}
		e.observeReply("init", true)
		return DispatchResult{InitReply: &m, Slot: s}

	case ConfigureReply:
		if d, ok := s.SendQ.RemoveHeadIf(reqpool.KindConfigure, m.ID); ok {
			e.Pool.Release(d, s.SendQ.Count()+1, e.Granter)
			e.observeReply("configure", true)
			e.EthIf.Configured(s.EthifHandle, m.Result)
		} else {
			e.observeReply("configure", false)
		}

	case SendReply:
		if d, ok := s.SendQ.RemoveHeadIf(reqpool.KindSend, m.ID); ok {
			e.Pool.Release(d, s.SendQ.Count()+1, e.Granter)
			e.observeReply("send", true)
			e.EthIf.Sent(s.EthifHandle, m.Result)
		} else {
			e.observeReply("send", false)
		}

	case ReceiveReply:
		if d, ok := s.RecvQ.RemoveHeadIf(reqpool.KindReceive, m.ID); ok {
			e.Pool.Release(d, s.RecvQ.Count()+1, e.Granter)
			e.observeReply("receive", true)
			e.EthIf.Received(s.EthifHandle, m.Result)
		} else {
			e.observeReply("receive", false)
		}

	case Status:
		if s.State() != slot.Active {
			e.observeReply("status", false)
			return DispatchResult{Slot: s}
		}
		e.observeReply("status", true)
		e.EthIf.Status(s.EthifHandle, m.Link, m.Media, m.OError, m.Coll, m.IError, m.IQDrop)
		if err := e.Transport.Send(s.Endpoint, StatusReply{ID: m.ID}); err != nil {
			e.fatal(err)
		}
	}

	return DispatchResult{Slot: s}
}

func (e *Engine) observeReply(kind string, matched bool) {
	if e.Observer != nil {
		e.Observer.OnReply(kind, matched)
	}
}
