package ndcc

import (
	"testing"

	"github.com/ndcc/ndcc/internal/constants"
	"github.com/ndcc/ndcc/internal/grant"
	"github.com/ndcc/ndcc/internal/interfaces"
	"github.com/ndcc/ndcc/internal/proto"
)

func newTestCore(t *testing.T) (*Core, *MockTransport, *MockDiscovery, *MockEthIf) {
	t.Helper()
	cfg := DefaultConfig()
	transport := &MockTransport{}
	discoveryMock := NewMockDiscovery()
	ethif := NewMockEthIf()
	granter := grant.NewSimPool(constants.NrNreq(cfg.NrNdev, cfg.NReqSpares) * constants.IOVMax)

	core, err := New(cfg, transport, granter, discoveryMock, ethif, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return core, transport, discoveryMock, ethif
}

func findInitRequest(t *testing.T, transport *MockTransport) proto.InitRequest {
	t.Helper()
	for _, m := range transport.Sent {
		if req, ok := m.Msg.(proto.InitRequest); ok {
			return req
		}
	}
	t.Fatal("no InitRequest found on the wire")
	return proto.InitRequest{}
}

// S1 - cold start.
func TestS1ColdStart(t *testing.T) {
	core, transport, disc, ethif := newTestCore(t)

	disc.PushUp("e0", 1001)
	core.Check()
	if core.Pending() != 1 {
		t.Fatalf("Pending() = %d after discovery-up, want 1", core.Pending())
	}

	initReq := findInitRequest(t, transport)
	core.HandleMessage(1001, proto.InitReply{
		ID:      initReq.ID,
		Name:    "eth0",
		HWAddr:  []byte{1, 2, 3, 4, 5, 6},
		MaxSend: 16,
		MaxRecv: 16,
	})

	if ethif.AddCalls != 1 || ethif.EnableCalls != 1 {
		t.Fatalf("AddCalls=%d EnableCalls=%d, want 1 1", ethif.AddCalls, ethif.EnableCalls)
	}
	if core.Pending() != 0 {
		t.Fatalf("Pending() = %d after successful init, want 0", core.Pending())
	}

	s := core.table.LookupByEndpoint(1001)
	if s == nil || s.State().String() != "active" {
		t.Fatal("slot is not Active after a valid init reply")
	}
	if s.SendQ.Max() != 16 {
		t.Fatalf("send max = %d, want 16", s.SendQ.Max())
	}
	if s.RecvQ.Max() != constants.MinRecvQ {
		t.Fatalf("recv max = %d, want clamped to %d", s.RecvQ.Max(), constants.MinRecvQ)
	}
}

func activateSlot(t *testing.T, core *Core, transport *MockTransport, disc *MockDiscovery, label string, ep interfaces.Endpoint, maxSend, maxRecv int) int {
	t.Helper()
	disc.PushUp(label, ep)
	core.Check()
	initReq := findInitRequest(t, transport)
	core.HandleMessage(ep, proto.InitReply{
		ID: initReq.ID, Name: label, HWAddr: []byte{1, 2, 3, 4, 5, 6},
		MaxSend: maxSend, MaxRecv: maxRecv,
	})
	s := core.table.LookupByEndpoint(ep)
	if s == nil {
		t.Fatalf("slot for %s not found after activation", label)
	}
	return s.Index
}

// S2 - bounded send admission.
func TestS2BoundedSendAdmission(t *testing.T) {
	core, transport, disc, _ := newTestCore(t)
	slotID := activateSlot(t, core, transport, disc, "e0", 1001, 16, 16)

	var errs []error
	for i := 0; i < 10; i++ {
		errs = append(errs, core.Send(slotID, [][]byte{[]byte("x")}))
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}

	if err := core.Send(slotID, [][]byte{[]byte("overflow")}); !IsCode(err, CodeBusy) {
		t.Fatalf("11th send err = %v, want Busy", err)
	}

	s := core.table.Slot(slotID)
	headID := s.SendQ.Head()
	core.HandleMessage(1001, proto.SendReply{ID: headID, Result: 0})

	if err := core.Send(slotID, [][]byte{[]byte("after-reply")}); err != nil {
		t.Fatalf("send after one reply should succeed, got %v", err)
	}
	if err := core.Send(slotID, [][]byte{[]byte("still-over")}); !IsCode(err, CodeBusy) {
		t.Fatalf("second extra send err = %v, want Busy", err)
	}
}

// S3 - receive hard cap.
func TestS3ReceiveHardCap(t *testing.T) {
	core, transport, disc, _ := newTestCore(t)
	slotID := activateSlot(t, core, transport, disc, "e0", 1001, 16, 16)

	if err := core.Recv(slotID, [][]byte{make([]byte, 4)}); err != nil {
		t.Fatalf("recv 1: %v", err)
	}
	if err := core.Recv(slotID, [][]byte{make([]byte, 4)}); err != nil {
		t.Fatalf("recv 2: %v", err)
	}
	if err := core.Recv(slotID, [][]byte{make([]byte, 4)}); !IsCode(err, CodeBusy) {
		t.Fatalf("recv 3 err = %v, want Busy (hard cap at MinRecvQ)", err)
	}
}

// S4 - restart discards a stale reply.
func TestS4RestartDiscardsStaleReply(t *testing.T) {
	core, transport, disc, ethif := newTestCore(t)
	slotID := activateSlot(t, core, transport, disc, "e0", 1001, 16, 16)

	if err := core.Send(slotID, [][]byte{[]byte("in-flight")}); err != nil {
		t.Fatalf("send: %v", err)
	}
	s := core.table.Slot(slotID)
	staleID := s.SendQ.Head()

	disc.PushUp("e0", 2002) // restart with a new endpoint before the reply arrives
	core.Check()

	if ethif.DisableCalls != 1 {
		t.Fatalf("DisableCalls = %d, want 1 on restart of an Active slot", ethif.DisableCalls)
	}
	if s.SendQ.Count() != 0 {
		t.Fatalf("send queue not reset on restart, count = %d", s.SendQ.Count())
	}
	if s.SendQ.Head() <= staleID {
		t.Fatalf("head = %d did not advance past stale seq %d", s.SendQ.Head(), staleID)
	}

	core.HandleMessage(1001, proto.SendReply{ID: staleID, Result: 0})
	if len(ethif.SentResults) != 0 {
		t.Fatal("stale send-reply from the pre-restart endpoint reached ethif")
	}
}

// S5 - malformed init reply.
func TestS5MalformedInitReply(t *testing.T) {
	core, transport, disc, ethif := newTestCore(t)

	disc.PushUp("e0", 1001)
	core.Check()
	initReq := findInitRequest(t, transport)

	core.HandleMessage(1001, proto.InitReply{ID: initReq.ID, Name: "", MaxSend: 1, MaxRecv: 1, HWAddr: []byte{1}})

	if ethif.AddCalls != 0 {
		t.Fatalf("AddCalls = %d, want 0 for a rejected init reply", ethif.AddCalls)
	}
	if core.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0 after rejecting the only driver", core.Pending())
	}
	if core.table.LookupByEndpoint(1001) != nil {
		t.Fatal("slot still present after a rejected init reply")
	}
}

// S6 - status echo.
func TestS6StatusEcho(t *testing.T) {
	core, transport, disc, ethif := newTestCore(t)
	_ = activateSlot(t, core, transport, disc, "e0", 1001, 16, 16)

	core.HandleMessage(1001, proto.Status{ID: 42, Link: 1, Media: 1000})

	if ethif.StatusCalls != 1 {
		t.Fatalf("StatusCalls = %d, want 1", ethif.StatusCalls)
	}
	var found bool
	for _, m := range transport.Sent {
		if r, ok := m.Msg.(proto.StatusReply); ok && r.ID == 42 {
			found = true
		}
	}
	if !found {
		t.Fatal("no StatusReply(id=42) found on the wire")
	}
}

func TestTableExhaustionIsDroppedAndLogged(t *testing.T) {
	cfg := Config{NrNdev: 1, NReqSpares: constants.DefaultNReqSpares}
	transport := &MockTransport{}
	disc := NewMockDiscovery()
	ethif := NewMockEthIf()
	granter := grant.NewSimPool(constants.NrNreq(cfg.NrNdev, cfg.NReqSpares) * constants.IOVMax)
	core, err := New(cfg, transport, granter, disc, ethif, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	disc.PushUp("e0", 1001)
	core.Check()
	disc.PushUp("e1", 1002)
	core.Check()

	if core.Metrics().Snapshot().TableFullDropped != 1 {
		t.Fatalf("TableFullDropped = %d, want 1", core.Metrics().Snapshot().TableFullDropped)
	}
}
