// Package proto defines the driver wire messages and the
// engine that builds outgoing requests and dispatches incoming
// replies against the matching queue head.
package proto

import "github.com/ndcc/ndcc/internal/grant"

// Kind tags every message exchanged with a driver.
type Kind int

const (
	KindInitRequest Kind = iota
	KindInitReply
	KindConfigureRequest
	KindConfigureReply
	KindSendRequest
	KindSendReply
	KindReceiveRequest
	KindReceiveReply
	KindStatus
	KindStatusReply
)

// InitRequest carries only the id.
type InitRequest struct {
	ID uint32
}

// InitReply is the driver's response to InitRequest.
type InitReply struct {
	ID      uint32
	Name    string // must be non-empty, NUL-terminated within its buffer
	HWAddr  []byte // length in [1, HWAddrMax]
	Caps    uint32
	Link    uint32
	Media   uint32
	MaxSend int
	MaxRecv int
}

// ConfigureSet is the bitmask of fields a Configure request carries.
type ConfigureSet uint32

const (
	ConfMode ConfigureSet = 1 << iota
	ConfCaps
	ConfFlags
	ConfMedia
	ConfHWAddr
	ConfMulticast
)

// ConfigureRequest optionally carries a multicast-list grant plus
// scalar fields selected by Set. An empty Set is valid and still
// produces a reply.
type ConfigureRequest struct {
	ID             uint32
	Set            ConfigureSet
	Mode           uint32
	Caps           uint32
	Flags          uint32
	Media          uint32
	HWAddr         []byte
	Multicast      grant.Grant
	MulticastCount int
}

// ConfigureReply carries the outcome of a ConfigureRequest.
type ConfigureReply struct {
	ID     uint32
	Result int32
}

// SendRequest carries up to IOVMax read-only grants, one per
// scatter/gather segment.
type SendRequest struct {
	ID     uint32
	Grants []grant.Grant
	Lens   []uint32
}

// SendReply carries the outcome of a SendRequest.
type SendReply struct {
	ID     uint32
	Result int32
}

// ReceiveRequest carries up to IOVMax write-only grants.
type ReceiveRequest struct {
	ID     uint32
	Grants []grant.Grant
	Lens   []uint32
}

// ReceiveReply carries the outcome of a ReceiveRequest.
type ReceiveReply struct {
	ID     uint32
	Result int32
}

// Status is an unsolicited driver->core link-status report.
type Status struct {
	ID     uint32
	Link   uint32
	Media  uint32
	OError uint64
	Coll   uint64
	IError uint64
	IQDrop uint64
}

// StatusReply echoes Status.ID back to the driver, used by the driver
// to rate-limit its unsolicited status reports.
type StatusReply struct {
	ID uint32
}
