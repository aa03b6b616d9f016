package main

import (
	"fmt"
	"sync"

	"github.com/ndcc/ndcc/internal/interfaces"
	"github.com/ndcc/ndcc/internal/logging"
	"github.com/ndcc/ndcc/internal/proto"
)

// SimDiscovery is an in-memory naming service a driver emulator can
// push up/down events into, standing in for the real MINIX naming
// server this binary has no access to outside the kernel it targets.
type SimDiscovery struct {
	mu      sync.Mutex
	changes []interfaces.Change
	live    map[string]interfaces.Endpoint
}

func NewSimDiscovery() *SimDiscovery {
	return &SimDiscovery{live: make(map[string]interfaces.Endpoint)}
}

func (d *SimDiscovery) Up(label string, ep interfaces.Endpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[label] = ep
	d.changes = append(d.changes, interfaces.Change{Key: "drv.net." + label, Endpoint: ep, Up: true})
}

func (d *SimDiscovery) Down(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, label)
}

func (d *SimDiscovery) PollChanges() []interfaces.Change {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.changes
	d.changes = nil
	return out
}

func (d *SimDiscovery) LookupByLabel(label string) (interfaces.Endpoint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ep, ok := d.live[label]
	return ep, ok
}

var _ interfaces.Discovery = (*SimDiscovery)(nil)

// SimEthIf logs every upper-layer callback instead of wiring an actual
// lwip ethif, since this binary has no network stack of its own to
// hand frames to.
type SimEthIf struct {
	logger interfaces.Logger
	next   int
}

func NewSimEthIf(logger interfaces.Logger) *SimEthIf {
	return &SimEthIf{logger: logger}
}

func (e *SimEthIf) Add(slotIndex int, name string, caps uint32) (int, bool) {
	e.next++
	e.logger.Info("ethif add", "slot", slotIndex, "name", name, "handle", e.next)
	return e.next, true
}

func (e *SimEthIf) Enable(handle int, name *string, hwAddr []byte, caps uint32, link, media uint32) bool {
	e.logger.Info("ethif enable", "handle", handle, "hw_addr", fmt.Sprintf("%x", hwAddr))
	return true
}

func (e *SimEthIf) Disable(handle int) {
	e.logger.Info("ethif disable", "handle", handle)
}

func (e *SimEthIf) Remove(handle int) {
	e.logger.Info("ethif remove", "handle", handle)
}

func (e *SimEthIf) Configured(handle int, result int32) {
	e.logger.Info("ethif configured", "handle", handle, "result", result)
}

func (e *SimEthIf) Sent(handle int, result int32) {
	e.logger.Debug("ethif sent", "handle", handle, "result", result)
}

func (e *SimEthIf) Received(handle int, result int32) {
	e.logger.Debug("ethif received", "handle", handle, "result", result)
}

func (e *SimEthIf) Status(handle int, link, media uint32, oerror, coll, ierror, iqdrop uint64) {
	e.logger.Info("ethif status", "handle", handle, "link", link)
}

var _ interfaces.EthIf = (*SimEthIf)(nil)

// driverEmulator is the other half of SimTransport: it plays the part
// of a single out-of-process driver, replying to whatever Init/Configure
// /Send/Receive requests it is handed so the sim loop has a full round
// trip to drive without a real driver binary.
type driverEmulator struct {
	label   string
	hwAddr  []byte
	inbox   []func() (interfaces.Endpoint, any)
	logger  interfaces.Logger
}

func newDriverEmulator(label string, logger interfaces.Logger) *driverEmulator {
	return &driverEmulator{label: label, hwAddr: []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}, logger: logger}
}

func (d *driverEmulator) handle(sender interfaces.Endpoint, msg any) {
	switch m := msg.(type) {
	case proto.InitRequest:
		d.reply(sender, proto.InitReply{
			ID: m.ID, Name: d.label, HWAddr: d.hwAddr,
			Caps: 0, Link: 1, Media: 1000, MaxSend: 32, MaxRecv: 32,
		})
	case proto.ConfigureRequest:
		d.reply(sender, proto.ConfigureReply{ID: m.ID, Result: 0})
	case proto.SendRequest:
		d.reply(sender, proto.SendReply{ID: m.ID, Result: 0})
	case proto.ReceiveRequest:
		d.reply(sender, proto.ReceiveReply{ID: m.ID, Result: 0})
	}
}

func (d *driverEmulator) reply(sender interfaces.Endpoint, msg any) {
	d.inbox = append(d.inbox, func() (interfaces.Endpoint, any) { return sender, msg })
}

func (d *driverEmulator) drain() []func() (interfaces.Endpoint, any) {
	out := d.inbox
	d.inbox = nil
	return out
}

// SimTransport implements interfaces.Transport by handing every send
// straight to an in-process driverEmulator keyed by destination
// endpoint, queuing its reply for delivery on the next Tick. This
// keeps the send/reply round trip asynchronous, the way a real
// out-of-process driver's reply would be, without actually forking one.
type SimTransport struct {
	mu       sync.Mutex
	drivers  map[interfaces.Endpoint]*driverEmulator
	pending  []func() (interfaces.Endpoint, any)
	logger   interfaces.Logger
}

func NewSimTransport(logger interfaces.Logger) *SimTransport {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimTransport{drivers: make(map[interfaces.Endpoint]*driverEmulator), logger: logger}
}

// Attach registers the emulated driver behind endpoint so sends to it
// produce replies.
func (t *SimTransport) Attach(ep interfaces.Endpoint, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drivers[ep] = newDriverEmulator(label, t.logger)
}

func (t *SimTransport) Send(endpoint interfaces.Endpoint, msg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	drv, ok := t.drivers[endpoint]
	if !ok {
		return fmt.Errorf("sim transport: no driver emulator attached to endpoint %d", endpoint)
	}
	drv.handle(endpoint, msg)
	return nil
}

// Tick moves every emulated driver's queued replies into the pending
// list a caller drains with DrainReplies; this is what stands in for
// IPC latency between a send and its reply.
func (t *SimTransport) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, drv := range t.drivers {
		t.pending = append(t.pending, drv.drain()...)
	}
}

// DrainReplies returns and clears every reply queued since the last
// call, for the caller to feed into Core.HandleMessage.
func (t *SimTransport) DrainReplies() []func() (interfaces.Endpoint, any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.pending
	t.pending = nil
	return out
}

var _ interfaces.Transport = (*SimTransport)(nil)
