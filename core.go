// Package ndcc implements the Network Driver Communication Core: the
// subsystem mediating between an upper-layer network stack and a
// fleet of restart-prone, out-of-process network device drivers.
package ndcc

import (
	"github.com/ndcc/ndcc/internal/constants"
	"github.com/ndcc/ndcc/internal/discovery"
	"github.com/ndcc/ndcc/internal/grant"
	"github.com/ndcc/ndcc/internal/interfaces"
	"github.com/ndcc/ndcc/internal/logging"
	"github.com/ndcc/ndcc/internal/proto"
	"github.com/ndcc/ndcc/internal/queue"
	"github.com/ndcc/ndcc/internal/reqpool"
	"github.com/ndcc/ndcc/internal/slot"
)

// Config sizes the driver table and descriptor pool.
type Config struct {
	NrNdev     int
	NReqSpares int
}

// DefaultConfig returns the literal defaults used in this package's
// end-to-end scenario tests.
func DefaultConfig() Config {
	return Config{NrNdev: constants.DefaultNrNdev, NReqSpares: constants.DefaultNReqSpares}
}

// Options carries the optional collaborators a caller may override.
type Options struct {
	Logger   interfaces.Logger
	Observer Observer
	// Fatal is invoked on an unrecoverable IPC send failure. Defaults
	// to panic.
	Fatal func(error)
}

// Core is the Network Driver Communication Core.
type Core struct {
	cfg       Config
	table     *slot.Table
	pool      *reqpool.Pool
	granter   grant.Granter
	engine    *proto.Engine
	discovery *discovery.Adapter
	ethif     interfaces.EthIf
	logger    interfaces.Logger
	observer  Observer
	metrics   *Metrics

	// tableFullLogged is set once the first table-full drop is logged.
	tableFullLogged bool
}

// New validates cfg and wires every component together before
// returning a usable Core.
func New(cfg Config, transport interfaces.Transport, granter grant.Granter, naming interfaces.Discovery, ethif interfaces.EthIf, opts *Options) (*Core, error) {
	if cfg.NrNdev <= 0 {
		return nil, newError("New", -1, "", CodeUnknown, "NrNdev must be positive", nil)
	}
	if cfg.NReqSpares < 0 {
		return nil, newError("New", -1, "", CodeUnknown, "NReqSpares must not be negative", nil)
	}
	if transport == nil || granter == nil || naming == nil || ethif == nil {
		return nil, newError("New", -1, "", CodeUnknown, "transport, granter, discovery and ethif are required", nil)
	}

	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}
	fatal := opts.Fatal
	if fatal == nil {
		fatal = func(err error) { panic(err) }
	}

	table := slot.NewTable(cfg.NrNdev)
	pool := reqpool.New(constants.NrNreq(cfg.NrNdev, cfg.NReqSpares), cfg.NReqSpares)
	metrics := NewMetrics()

	engine := &proto.Engine{
		Pool:      pool,
		Granter:   granter,
		Transport: transport,
		Table:     table,
		EthIf:     ethif,
		Logger:    logger,
		Observer:  observer,
		Fatal:     fatal,
	}

	return &Core{
		cfg:       cfg,
		table:     table,
		pool:      pool,
		granter:   granter,
		engine:    engine,
		discovery: &discovery.Adapter{Naming: naming},
		ethif:     ethif,
		logger:    logger,
		observer:  observer,
		metrics:   metrics,
	}, nil
}

// Metrics returns the live counters.
func (c *Core) Metrics() *Metrics { return c.metrics }

// Pending reports the number of slots currently mid-initialization.
func (c *Core) Pending() int { return c.table.Pending() }

// Check drains discovery and drives the slot state machine. Callers
// run this from their own event loop.
func (c *Core) Check() {
	for _, up := range c.discovery.PollUps() {
		c.handleDiscoveryUp(up.Label, up.Endpoint)
	}

	live := c.table.AllLive()
	labels := make([]string, len(live))
	for i, s := range live {
		labels[i] = s.Label
	}
	for _, down := range c.discovery.SweepDowns(labels) {
		c.handleDiscoveryDown(down.Label)
	}
}

// HandleMessage routes one inbound driver message through the reply
// dispatch table. A matched Init-reply is additionally validated and
// drives the slot's state transition here, since only Core has the
// ethif + table wiring that transition needs.
func (c *Core) HandleMessage(sender interfaces.Endpoint, msg any) {
	result := c.engine.Dispatch(sender, msg)
	if result.InitReply != nil {
		c.handleInitReply(result.Slot, result.InitReply)
	}
}

// Conf issues a Configure request for slotID.
func (c *Core) Conf(slotID int, set proto.ConfigureSet, mode, caps, flags, media uint32, hwAddr, multicast []byte) error {
	s := c.table.Slot(slotID)
	if s == nil {
		return newError("conf", slotID, "send", CodeUnknown, "no such slot", nil)
	}
	if err := c.engine.BuildConfigure(s, set, mode, caps, flags, media, hwAddr, multicast); err != nil {
		return c.wrapProtoErr("conf", slotID, "send", err)
	}
	return nil
}

// Send issues a Send request for slotID.
func (c *Core) Send(slotID int, chain [][]byte) error {
	s := c.table.Slot(slotID)
	if s == nil {
		return newError("send", slotID, "send", CodeUnknown, "no such slot", nil)
	}
	if err := c.engine.BuildSend(s, chain); err != nil {
		return c.wrapProtoErr("send", slotID, "send", err)
	}
	return nil
}

// CanRecv reports whether slotID's receive queue has room.
func (c *Core) CanRecv(slotID int) bool {
	s := c.table.Slot(slotID)
	if s == nil {
		return false
	}
	return s.RecvQ.Count() < s.RecvQ.Max()
}

// Recv issues a Receive request for slotID.
func (c *Core) Recv(slotID int, chain [][]byte) error {
	s := c.table.Slot(slotID)
	if s == nil {
		return newError("recv", slotID, "recv", CodeUnknown, "no such slot", nil)
	}
	if err := c.engine.BuildReceive(s, chain); err != nil {
		return c.wrapProtoErr("recv", slotID, "recv", err)
	}
	return nil
}

func (c *Core) wrapProtoErr(op string, slotID int, queueName string, err error) error {
	switch err {
	case proto.ErrBusy:
		return newError(op, slotID, queueName, CodeBusy, "", ErrBusy)
	case proto.ErrOutOfMemory:
		return newError(op, slotID, queueName, CodeOutOfMemory, "", ErrOutOfMemory)
	default:
		return newError(op, slotID, queueName, CodeUnknown, "", err)
	}
}

// handleDiscoveryUp implements the discovery-up row of the slot
// state transition table.
func (c *Core) handleDiscoveryUp(label string, ep interfaces.Endpoint) {
	existing := c.table.LookupByLabel(label)
	if existing == nil {
		s, ok := c.table.AllocVacant(ep, label)
		if !ok {
			c.metrics.TableFullDropped.Add(1)
			if !c.tableFullLogged {
				c.tableFullLogged = true
				c.logger.Warn("driver table full, dropping driver", "label", label)
			}
			return
		}
		c.table.MarkInitializing()
		c.observer.OnStateTransition(s.Index, "vacant", "initializing")
		c.engine.SendInit(s)
		return
	}

	switch existing.State() {
	case slot.Initializing:
		c.resetQueues(existing)
		existing.Endpoint = ep
		c.engine.SendInit(existing)
	case slot.Active:
		c.resetQueues(existing)
		c.ethif.Disable(existing.EthifHandle)
		c.table.MarkInitializing()
		existing.Endpoint = ep
		c.observer.OnStateTransition(existing.Index, "active", "initializing")
		c.engine.SendInit(existing)
	}
}

// handleDiscoveryDown implements the discovery-down row of the slot
// state transition table.
func (c *Core) handleDiscoveryDown(label string) {
	s := c.table.LookupByLabel(label)
	if s == nil {
		return
	}
	switch s.State() {
	case slot.Active:
		c.resetQueues(s)
		c.ethif.Remove(s.EthifHandle)
		c.table.Free(s)
		c.observer.OnStateTransition(s.Index, "active", "vacant")
	case slot.Initializing:
		c.resetQueues(s)
		c.table.MarkNoLongerInitializing()
		c.table.Free(s)
		c.observer.OnStateTransition(s.Index, "initializing", "vacant")
	}
}

// handleInitReply implements the Initializing+valid/invalid-Init-reply
// rows of the slot state transition table: an ethif_enable failure on
// a first-time enable must still be followed by ethif_remove, because
// the handle is already non-nil by then.
func (c *Core) handleInitReply(s *slot.Slot, reply *proto.InitReply) {
	if !validInitReply(reply) {
		c.metrics.InitRepliesInvalid.Add(1)
		c.logger.Warn("rejecting malformed init reply", "slot", s.Index, "name", reply.Name)
		c.resetQueues(s)
		c.table.MarkNoLongerInitializing()
		c.table.Free(s)
		c.observer.OnStateTransition(s.Index, "initializing", "vacant")
		return
	}
	c.metrics.InitRepliesValid.Add(1)

	firstTime := s.EthifHandle == slot.NoHandle
	if firstTime {
		handle, ok := c.ethif.Add(s.Index, reply.Name, reply.Caps)
		if !ok {
			c.resetQueues(s)
			c.table.MarkNoLongerInitializing()
			c.table.Free(s)
			c.observer.OnStateTransition(s.Index, "initializing", "vacant")
			return
		}
		s.EthifHandle = handle
	}

	// Queue maxes (and the head bump past the Init request's own
	// sequence id) must be established before ethif_enable runs:
	// enabling the interface may itself trigger outbound requests, and
	// those need a live queue to land in rather than finding max still
	// at 0 and getting spuriously rejected as Busy.
	s.SendQ.SetMax(clamp(reply.MaxSend, 1, constants.MaxSendQDepth))
	s.RecvQ.SetMax(clamp(reply.MaxRecv, 1, constants.MinRecvQ))
	s.SendQ.BumpHead()
	s.RecvQ.BumpHead()

	var namePtr *string
	if firstTime {
		namePtr = &reply.Name
	}
	if !c.ethif.Enable(s.EthifHandle, namePtr, reply.HWAddr, reply.Caps, reply.Link, reply.Media) {
		// Handle is non-nil at this point regardless of firstTime, so
		// it must be removed, matching ndev_down's unconditional
		// ethif_remove-if-handle-non-nil behavior. Any requests Enable
		// managed to queue before failing are released the same way a
		// live slot's queues are torn down on removal.
		c.ethif.Remove(s.EthifHandle)
		c.resetQueues(s)
		c.table.MarkNoLongerInitializing()
		c.table.Free(s)
		c.observer.OnStateTransition(s.Index, "initializing", "vacant")
		return
	}

	c.table.MarkNoLongerInitializing()
	c.observer.OnStateTransition(s.Index, "initializing", "active")
}

func validInitReply(r *proto.InitReply) bool {
	if r.Name == "" || len(r.Name) >= constants.LabelMax {
		return false
	}
	if len(r.HWAddr) < 1 || len(r.HWAddr) > constants.HWAddrMax {
		return false
	}
	if r.MaxSend < 1 || r.MaxRecv < 1 {
		return false
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resetQueues releases every outstanding descriptor on both of s's
// queues (in head-to-tail order, so depthBeforeRelease matches each
// release's effect on the aggregate spare-pool invariant) and resets
// both queues.
func (c *Core) resetQueues(s *slot.Slot) {
	releaseAll(c.pool, c.granter, s.SendQ)
	releaseAll(c.pool, c.granter, s.RecvQ)
	c.metrics.QueueResets.Add(2)
}

func releaseAll(pool *reqpool.Pool, granter grant.Granter, q *queue.DriverQueue) {
	items := q.Items()
	n := len(items)
	for i, d := range items {
		pool.Release(d, n-i, granter)
	}
	q.Reset()
}
