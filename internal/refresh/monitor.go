package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fundiconnect/fundi-go/internal/types"
)

// MonitorStatus represents the status of a monitor
type MonitorStatus string

const (
	MonitorStatusIdle    MonitorStatus = "idle"
	MonitorStatusRunning MonitorStatus = "running"
	MonitorStatusStopped MonitorStatus = "stopped"
)

// DefaultInterval is how often the monitor re-evaluates the policy
const DefaultInterval = time.Minute

// DueFunc is called when a refresh should be attempted
type DueFunc func(ctx context.Context, remaining time.Duration)

// MonitorOptions configures a Monitor
type MonitorOptions struct {
	Interval     time.Duration
	OnRefreshDue DueFunc
	Logger       types.Logger
}

// Monitor periodically evaluates a Policy and signals once per token expiry
// when a refresh becomes due. A new token (a new expiry) re-arms the signal.
type Monitor struct {
	policy   *Policy
	interval time.Duration
	onDue    DueFunc
	logger   types.Logger

	status  atomic.Value // MonitorStatus
	checks  atomic.Int32
	signals atomic.Int32

	mu            sync.Mutex
	signaledFor   time.Time
	lastCheck     time.Time
	lastRemaining time.Duration
}

// MonitorMetrics contains counters about a monitor
type MonitorMetrics struct {
	Status        string        `json:"status"`
	CheckCount    int           `json:"checkCount"`
	SignalCount   int           `json:"signalCount"`
	LastCheck     time.Time     `json:"lastCheck"`
	LastRemaining time.Duration `json:"lastRemaining"`
}

// NewMonitor creates an idle monitor
func NewMonitor(policy *Policy, opts MonitorOptions) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		policy:   policy,
		interval: interval,
		onDue:    opts.OnRefreshDue,
		logger:   opts.Logger,
	}
	m.status.Store(MonitorStatusIdle)
	return m
}

// Status returns the current status
func (m *Monitor) Status() MonitorStatus {
	return m.status.Load().(MonitorStatus)
}

// Run checks immediately and then every interval until ctx is done.
// It returns ctx.Err().
func (m *Monitor) Run(ctx context.Context) error {
	m.status.Store(MonitorStatusRunning)
	defer m.status.Store(MonitorStatusStopped)

	if m.logger != nil {
		m.logger.Debug("Refresh monitor started", "interval", m.interval)
	}

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if m.logger != nil {
				m.logger.Debug("Refresh monitor stopped")
			}
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check evaluates the policy once and reports whether a signal was sent
func (m *Monitor) Check(ctx context.Context) bool {
	m.checks.Add(1)

	remaining, known := m.policy.TimeUntilExpiry()
	expiresAt, _ := m.policy.session.ExpiresAt()

	m.mu.Lock()
	m.lastCheck = time.Now()
	m.lastRemaining = remaining
	if !known || !m.policy.NeedsTokenRefresh() || expiresAt.Equal(m.signaledFor) {
		m.mu.Unlock()
		return false
	}
	m.signaledFor = expiresAt
	m.mu.Unlock()

	m.signals.Add(1)
	if m.logger != nil {
		m.logger.Info("Token refresh due", "remaining", remaining)
	}
	if m.onDue != nil {
		m.onDue(ctx, remaining)
	}
	return true
}

// Metrics returns monitor counters
func (m *Monitor) Metrics() MonitorMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MonitorMetrics{
		Status:        string(m.Status()),
		CheckCount:    int(m.checks.Load()),
		SignalCount:   int(m.signals.Load()),
		LastCheck:     m.lastCheck,
		LastRemaining: m.lastRemaining,
	}
}
