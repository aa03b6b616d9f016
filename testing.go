package ndcc

import (
	"sync"

	"github.com/ndcc/ndcc/internal/interfaces"
)

// MockTransport is a call-count-tracking Transport for tests, in the
// teacher's MockBackend idiom.
type MockTransport struct {
	mu       sync.Mutex
	Sent     []MockSentMessage
	FailWith error
}

// MockSentMessage records one Send call.
type MockSentMessage struct {
	Endpoint interfaces.Endpoint
	Msg      any
}

func (m *MockTransport) Send(ep interfaces.Endpoint, msg any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.Sent = append(m.Sent, MockSentMessage{Endpoint: ep, Msg: msg})
	return nil
}

// SentCount returns how many messages have been recorded.
func (m *MockTransport) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockDiscovery is a scriptable Discovery for tests: queue up Changes
// and label->endpoint registrations, then drive Core.Check.
type MockDiscovery struct {
	mu      sync.Mutex
	Changes []interfaces.Change
	Live    map[string]interfaces.Endpoint
}

func NewMockDiscovery() *MockDiscovery {
	return &MockDiscovery{Live: make(map[string]interfaces.Endpoint)}
}

func (m *MockDiscovery) PushUp(label string, ep interfaces.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Live[label] = ep
	m.Changes = append(m.Changes, interfaces.Change{Key: "drv.net." + label, Endpoint: ep, Up: true})
}

func (m *MockDiscovery) Withdraw(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Live, label)
}

func (m *MockDiscovery) PollChanges() []interfaces.Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.Changes
	m.Changes = nil
	return c
}

func (m *MockDiscovery) LookupByLabel(label string) (interfaces.Endpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.Live[label]
	return ep, ok
}

// MockEthIf records every upward call the core makes, call-count style.
type MockEthIf struct {
	mu sync.Mutex

	AddCalls      int
	NextHandle    int
	EnableResult  bool
	EnableCalls   int
	DisableCalls  int
	RemoveCalls   int
	ConfResults   []int32
	SentResults   []int32
	RecvResults   []int32
	StatusCalls   int
	LastEnableHW  []byte
}

func NewMockEthIf() *MockEthIf {
	return &MockEthIf{EnableResult: true}
}

func (m *MockEthIf) Add(slotID int, name string, caps uint32) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls++
	h := m.NextHandle
	m.NextHandle++
	return h, true
}

func (m *MockEthIf) Enable(handle int, name *string, hwAddr []byte, caps uint32, link, media uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnableCalls++
	m.LastEnableHW = hwAddr
	return m.EnableResult
}

func (m *MockEthIf) Disable(handle int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DisableCalls++
}

func (m *MockEthIf) Remove(handle int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls++
}

func (m *MockEthIf) Configured(handle int, result int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfResults = append(m.ConfResults, result)
}

func (m *MockEthIf) Sent(handle int, result int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentResults = append(m.SentResults, result)
}

func (m *MockEthIf) Received(handle int, result int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecvResults = append(m.RecvResults, result)
}

func (m *MockEthIf) Status(handle int, link, media uint32, oerror, coll, ierror, iqdrop uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls++
}

var (
	_ interfaces.Transport = (*MockTransport)(nil)
	_ interfaces.Discovery = (*MockDiscovery)(nil)
	_ interfaces.EthIf     = (*MockEthIf)(nil)
)
