package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/wavelength-chat/wavelength/pkg/client/presence"
	"github.com/wavelength-chat/wavelength/pkg/client/status"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

func newMonitor(t *testing.T, awayAfter, offlineAfter time.Duration) (*status.Monitor, *status.Reconciler) {
	t.Helper()
	store := presence.NewStore()
	api := &fakePresenceAPI{}
	self := model.User{ID: "me", Username: "me", Status: types.UserStatusOnline}
	r := status.New(store, api, self, "ws1")
	m := status.NewMonitor(r, status.WithThresholds(awayAfter, offlineAfter))
	t.Cleanup(m.Close)
	return m, r
}

func waitForStatus(t *testing.T, r *status.Reconciler, want types.UserStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.SelfStatus() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status never became %s (got %s)", want, r.SelfStatus())
}

func TestMonitor_InactivityTimers(t *testing.T) {
	t.Run("inactivity transitions online to away to offline", func(t *testing.T) {
		m, r := newMonitor(t, 30*time.Millisecond, 90*time.Millisecond)
		ctx := context.Background()

		m.Touch(ctx)
		waitForStatus(t, r, types.UserStatusAway)
		waitForStatus(t, r, types.UserStatusOffline)
	})

	t.Run("activity resets the away timer", func(t *testing.T) {
		m, r := newMonitor(t, 60*time.Millisecond, 10*time.Second)
		ctx := context.Background()

		m.Touch(ctx)
		for i := 0; i < 5; i++ {
			time.Sleep(20 * time.Millisecond)
			m.Touch(ctx)
		}
		// 100ms elapsed with constant activity: still online
		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusOnline)
	})

	t.Run("activity while away restores online", func(t *testing.T) {
		m, r := newMonitor(t, 20*time.Millisecond, 10*time.Second)
		ctx := context.Background()

		m.Touch(ctx)
		waitForStatus(t, r, types.UserStatusAway)
		m.Touch(ctx)
		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusOnline)
	})
}

func TestMonitor_FocusBlur(t *testing.T) {
	t.Run("blur forces away from online", func(t *testing.T) {
		m, r := newMonitor(t, time.Hour, time.Hour)
		ctx := context.Background()

		m.Blur(ctx)
		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusAway)
	})

	t.Run("blur leaves busy untouched", func(t *testing.T) {
		m, r := newMonitor(t, time.Hour, time.Hour)
		ctx := context.Background()

		gt.NoError(t, r.SetStatus(ctx, types.UserStatusBusy))
		m.Blur(ctx)
		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusBusy)
	})

	t.Run("focus forces online from away", func(t *testing.T) {
		m, r := newMonitor(t, time.Hour, time.Hour)
		ctx := context.Background()

		m.Blur(ctx)
		m.Focus(ctx)
		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusOnline)
	})

	t.Run("focus leaves busy untouched", func(t *testing.T) {
		m, r := newMonitor(t, time.Hour, time.Hour)
		ctx := context.Background()

		gt.NoError(t, r.SetStatus(ctx, types.UserStatusBusy))
		m.Focus(ctx)
		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusBusy)
	})
}

func TestMonitor_Close(t *testing.T) {
	m, r := newMonitor(t, 20*time.Millisecond, 40*time.Millisecond)
	ctx := context.Background()

	m.Touch(ctx)
	m.Close()
	time.Sleep(80 * time.Millisecond)

	// Timers were stopped before firing
	gt.Value(t, r.SelfStatus()).Equal(types.UserStatusOnline)
}
