package status

import (
	"context"
	"sync"
	"time"

	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/logging"
)

const (
	// DefaultAwayAfter is the inactivity duration before online becomes away
	DefaultAwayAfter = 5 * time.Minute
	// DefaultOfflineAfter is the inactivity duration before away becomes offline
	DefaultOfflineAfter = 30 * time.Minute
)

// Monitor drives the online -> away -> offline activity state machine from
// user activity signals (pointer, keyboard, scroll, touch) and tab
// focus/blur. Status decisions are delegated to the Reconciler, which stays
// the single owner of the local user's state.
type Monitor struct {
	reconciler   *Reconciler
	awayAfter    time.Duration
	offlineAfter time.Duration

	mu           sync.Mutex
	awayTimer    *time.Timer
	offlineTimer *time.Timer
	closed       bool
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithThresholds overrides the away/offline inactivity thresholds
func WithThresholds(awayAfter, offlineAfter time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.awayAfter = awayAfter
		m.offlineAfter = offlineAfter
	}
}

// NewMonitor creates a Monitor. Timers start on the first Touch.
func NewMonitor(reconciler *Reconciler, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		reconciler:   reconciler,
		awayAfter:    DefaultAwayAfter,
		offlineAfter: DefaultOfflineAfter,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Touch records a user activity event. While online or away it resets both
// inactivity timers; if currently away it transitions back to online.
func (m *Monitor) Touch(ctx context.Context) {
	current := m.reconciler.SelfStatus()
	if current != types.UserStatusOnline && current != types.UserStatusAway {
		return
	}

	m.resetTimers(ctx)

	if current == types.UserStatusAway {
		if err := m.reconciler.SetStatus(ctx, types.UserStatusOnline); err != nil {
			logging.From(ctx).Warn("failed to push online status on activity", "error", err)
		}
	}
}

// Blur forces away immediately if currently online (tab lost focus)
func (m *Monitor) Blur(ctx context.Context) {
	if m.reconciler.SelfStatus() != types.UserStatusOnline {
		return
	}
	if err := m.reconciler.SetStatus(ctx, types.UserStatusAway); err != nil {
		logging.From(ctx).Warn("failed to push away status on blur", "error", err)
	}
}

// Focus forces online if currently away (tab regained focus)
func (m *Monitor) Focus(ctx context.Context) {
	if m.reconciler.SelfStatus() != types.UserStatusAway {
		return
	}
	m.resetTimers(ctx)
	if err := m.reconciler.SetStatus(ctx, types.UserStatusOnline); err != nil {
		logging.From(ctx).Warn("failed to push online status on focus", "error", err)
	}
}

// resetTimers clears both timers before rescheduling them so at most one
// of each is ever pending
func (m *Monitor) resetTimers(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	if m.awayTimer != nil {
		m.awayTimer.Stop()
	}
	if m.offlineTimer != nil {
		m.offlineTimer.Stop()
	}

	m.awayTimer = time.AfterFunc(m.awayAfter, func() { m.onAwayTimeout(ctx) })
	m.offlineTimer = time.AfterFunc(m.offlineAfter, func() { m.onOfflineTimeout(ctx) })
}

func (m *Monitor) onAwayTimeout(ctx context.Context) {
	if m.reconciler.SelfStatus() != types.UserStatusOnline {
		return
	}
	if err := m.reconciler.SetStatus(ctx, types.UserStatusAway); err != nil {
		logging.From(ctx).Warn("failed to push away status on inactivity", "error", err)
	}
}

func (m *Monitor) onOfflineTimeout(ctx context.Context) {
	current := m.reconciler.SelfStatus()
	if current != types.UserStatusOnline && current != types.UserStatusAway {
		return
	}
	if err := m.reconciler.SetStatus(ctx, types.UserStatusOffline); err != nil {
		logging.From(ctx).Warn("failed to push offline status on inactivity", "error", err)
	}
}

// Close stops the timers. Safe to call more than once.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.awayTimer != nil {
		m.awayTimer.Stop()
		m.awayTimer = nil
	}
	if m.offlineTimer != nil {
		m.offlineTimer.Stop()
		m.offlineTimer = nil
	}
}
