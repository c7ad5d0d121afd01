// Package heartbeat implements the session's heartbeat/test-request
// subsystem: an outbound timer that fires Heartbeat when nothing has
// been sent for HeartBtInt seconds, and an inbound watchdog that escalates
// to TestRequest, and eventually a fatal timeout, when nothing has been
// received. TestReqID generation uses uuid.New().String().
package heartbeat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Callbacks the monitor invokes; the engine supplies these to avoid a direct
// dependency on pkg/engine (which depends on this package).
type Callbacks struct {
	// SendHeartbeat is invoked when no message has been sent for the
	// negotiated interval. The monitor always passes an empty testReqID;
	// Heartbeats answering a TestRequest are sent by the TestRequest
	// handler, not by the monitor.
	SendHeartbeat func(testReqID string)

	// SendTestRequest is invoked when no message has been received for the
	// negotiated interval, to provoke a response before declaring the
	// connection dead. The generated TestReqID is passed so the engine can
	// correlate the eventual Heartbeat(112) reply.
	SendTestRequest func(testReqID string)

	// OnTimeout is invoked when a TestRequest goes unanswered past the grace
	// period — the connection is presumed dead.
	OnTimeout func()
}

// Monitor tracks send/receive activity for one session and drives
// Callbacks on the negotiated cadence. Safe for concurrent use: Received and
// Sent may be called from the engine's read/write paths while the internal
// timers fire on their own goroutines.
type Monitor struct {
	mu sync.Mutex

	interval  time.Duration
	callbacks Callbacks

	outTimer *time.Timer
	inTimer  *time.Timer

	pendingTestReqID string
	stopped          bool
}

// New returns a Monitor for the given negotiated HeartBtInt. Call Start to
// begin timing; the Monitor does nothing until then.
func New(interval time.Duration, callbacks Callbacks) *Monitor {
	return &Monitor{interval: interval, callbacks: callbacks}
}

// Start arms both timers. Call once after Logon completes.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.outTimer = time.AfterFunc(m.interval, m.fireOutbound)
	m.inTimer = time.AfterFunc(m.interval+gracePeriod(m.interval), m.fireInbound)
}

// Sent resets the outbound timer; call after every message sent on the wire.
func (m *Monitor) Sent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.outTimer == nil {
		return
	}
	m.outTimer.Reset(m.interval)
}

// Received resets the inbound timer and clears any pending TestRequest
// correlation; call after every message received on the wire.
func (m *Monitor) Received() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.inTimer == nil {
		return
	}
	m.pendingTestReqID = ""
	m.inTimer.Reset(m.interval + gracePeriod(m.interval))
}

// Stop disarms both timers. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.outTimer != nil {
		m.outTimer.Stop()
	}
	if m.inTimer != nil {
		m.inTimer.Stop()
	}
}

func (m *Monitor) fireOutbound() {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return
	}
	if m.callbacks.SendHeartbeat != nil {
		m.callbacks.SendHeartbeat("")
	}
	m.Sent()
}

// fireInbound is called twice per cycle conceptually: first escalation sends
// a TestRequest, a second unanswered cycle declares the connection dead. We
// track which by whether a TestRequest is already outstanding.
func (m *Monitor) fireInbound() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	pending := m.pendingTestReqID
	m.mu.Unlock()

	if pending != "" {
		if m.callbacks.OnTimeout != nil {
			m.callbacks.OnTimeout()
		}
		return
	}

	testReqID := uuid.New().String()
	m.mu.Lock()
	m.pendingTestReqID = testReqID
	if m.inTimer != nil {
		m.inTimer.Reset(m.interval + gracePeriod(m.interval))
	}
	m.mu.Unlock()

	if m.callbacks.SendTestRequest != nil {
		m.callbacks.SendTestRequest(testReqID)
	}
}

// PendingTestReqID returns the TestReqID awaiting a reply, or "" if none is
// outstanding.
func (m *Monitor) PendingTestReqID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingTestReqID
}

// gracePeriod is the extra time allowed past HeartBtInt before escalating,
// per the common FIX engine convention of HeartBtInt * 1.2 (here rounded to
// a flat 20% to avoid floating point in the hot timer path).
func gracePeriod(interval time.Duration) time.Duration {
	return interval / 5
}
