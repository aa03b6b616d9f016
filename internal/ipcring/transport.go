package ipcring

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ndcc/ndcc/internal/interfaces"
	"github.com/ndcc/ndcc/internal/proto"
)

func init() {
	gob.Register(proto.InitRequest{})
	gob.Register(proto.InitReply{})
	gob.Register(proto.ConfigureRequest{})
	gob.Register(proto.ConfigureReply{})
	gob.Register(proto.SendRequest{})
	gob.Register(proto.SendReply{})
	gob.Register(proto.ReceiveRequest{})
	gob.Register(proto.ReceiveReply{})
	gob.Register(proto.Status{})
	gob.Register(proto.StatusReply{})
}

// Transport adapts a Ring into interfaces.Transport: it gob-encodes
// each outbound message, submits it as one send tagged with a unique
// id, then waits for that send's own completion so a submission
// failure surfaces as a Send error instead of being silently dropped.
type Transport struct {
	ring Ring
	next uint64
}

// NewTransport wraps ring as an interfaces.Transport.
func NewTransport(ring Ring) *Transport {
	return &Transport{ring: ring}
}

func (t *Transport) Send(endpoint interfaces.Endpoint, msg any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return fmt.Errorf("ipcring: encode message: %w", err)
	}

	t.next++
	tag := t.next
	if err := t.ring.SubmitSend(endpoint, buf.Bytes(), tag); err != nil {
		return fmt.Errorf("ipcring: submit send: %w", err)
	}

	results, err := t.ring.WaitCompletion()
	if err != nil {
		return fmt.Errorf("ipcring: wait completion: %w", err)
	}
	for _, r := range results {
		if r.UserData() == tag && r.Value() < 0 {
			return fmt.Errorf("ipcring: send failed, result=%d", r.Value())
		}
	}
	return nil
}

// Close releases the underlying ring.
func (t *Transport) Close() error { return t.ring.Close() }

var _ interfaces.Transport = (*Transport)(nil)
