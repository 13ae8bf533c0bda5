package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubSession is a settable SessionView
type stubSession struct {
	mu        sync.Mutex
	now       time.Time
	expiresAt time.Time
}

func (s *stubSession) set(now, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.expiresAt = expiresAt
}

func (s *stubSession) NeedsTokenRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.expiresAt.IsZero() && s.expiresAt.Sub(s.now) < time.Hour
}

func (s *stubSession) TimeUntilExpiry() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiresAt.IsZero() {
		return 0, false
	}
	d := s.expiresAt.Sub(s.now)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (s *stubSession) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

func TestPolicy_Delegates(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sess := &stubSession{}
	p := NewPolicy(sess)

	_, ok := p.TimeUntilExpiry()
	assert.False(t, ok, "unknown expiry")
	assert.False(t, p.NeedsTokenRefresh())

	sess.set(now, now.Add(2*time.Hour))
	remaining, ok := p.TimeUntilExpiry()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Hour, remaining)
	assert.False(t, p.NeedsTokenRefresh())

	sess.set(now, now.Add(-time.Minute))
	remaining, ok = p.TimeUntilExpiry()
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), remaining, "clamped")
	assert.True(t, p.NeedsTokenRefresh())
}

func TestMonitor_SignalsOncePerExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sess := &stubSession{}
	sess.set(now, now.Add(3*time.Hour))

	var calls []time.Duration
	m := NewMonitor(NewPolicy(sess), MonitorOptions{
		OnRefreshDue: func(ctx context.Context, remaining time.Duration) {
			calls = append(calls, remaining)
		},
	})
	ctx := context.Background()

	assert.False(t, m.Check(ctx))

	sess.set(now.Add(150*time.Minute), now.Add(3*time.Hour))
	assert.True(t, m.Check(ctx))
	assert.False(t, m.Check(ctx), "same expiry is signaled once")

	// refreshed token moves the expiry, re-arming the signal
	sess.set(now.Add(150*time.Minute), now.Add(170*time.Minute))
	assert.True(t, m.Check(ctx))

	require.Len(t, calls, 2)
	assert.Equal(t, 30*time.Minute, calls[0])
	assert.Equal(t, 20*time.Minute, calls[1])

	metrics := m.Metrics()
	assert.Equal(t, 4, metrics.CheckCount)
	assert.Equal(t, 2, metrics.SignalCount)
	assert.Equal(t, string(MonitorStatusIdle), metrics.Status)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	now := time.Now()
	sess := &stubSession{}
	sess.set(now, now.Add(10*time.Minute))

	due := make(chan time.Duration, 1)
	m := NewMonitor(NewPolicy(sess), MonitorOptions{
		Interval: 5 * time.Millisecond,
		OnRefreshDue: func(ctx context.Context, remaining time.Duration) {
			due <- remaining
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case remaining := <-due:
		assert.Equal(t, 10*time.Minute, remaining)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh signal not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Equal(t, MonitorStatusStopped, m.Status())
}
