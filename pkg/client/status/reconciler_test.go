package status_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/wavelength-chat/wavelength/pkg/client/presence"
	"github.com/wavelength-chat/wavelength/pkg/client/status"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

type fakePresenceAPI struct {
	mu          sync.Mutex
	pushed      []model.StatusUpdate
	pushErr     error
	active      []model.PresenceRecord
	activeErr   error
	activeCalls atomic.Int32
	activeGate  chan struct{}
}

func (f *fakePresenceAPI) SetStatus(ctx context.Context, workspaceID types.WorkspaceID, update model.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, update)
	return nil
}

func (f *fakePresenceAPI) ActiveUsers(ctx context.Context, workspaceID types.WorkspaceID) ([]model.PresenceRecord, error) {
	f.activeCalls.Add(1)
	if f.activeGate != nil {
		<-f.activeGate
	}
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	return f.active, nil
}

type fakeBeacon struct {
	mu      sync.Mutex
	notices []model.StatusUpdate
}

func (f *fakeBeacon) NotifyOffline(workspaceID types.WorkspaceID, update model.StatusUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, update)
}

func newReconciler(api *fakePresenceAPI, opts ...status.Option) (*status.Reconciler, *presence.Store) {
	store := presence.NewStore()
	self := model.User{ID: "me", Username: "me", Status: types.UserStatusOnline}
	return status.New(store, api, self, "ws1", opts...), store
}

func TestReconciler_SetStatus(t *testing.T) {
	t.Run("optimistic update plus push", func(t *testing.T) {
		api := &fakePresenceAPI{}
		r, store := newReconciler(api)

		gt.NoError(t, r.SetStatus(context.Background(), types.UserStatusBusy))

		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusBusy)
		record, ok := store.Get("ws1", "me")
		gt.B(t, ok).True()
		gt.Value(t, record.Status).Equal(types.UserStatusBusy)
		gt.Array(t, api.pushed).Length(1)
		gt.Value(t, api.pushed[0].Status).Equal(types.UserStatusBusy)
	})

	t.Run("push failure keeps optimistic state", func(t *testing.T) {
		api := &fakePresenceAPI{pushErr: goerr.New("backend down")}
		r, store := newReconciler(api)

		err := r.SetStatus(context.Background(), types.UserStatusAway)
		gt.Value(t, err).NotNil()

		// No rollback: the local view keeps the new status
		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusAway)
		record, ok := store.Get("ws1", "me")
		gt.B(t, ok).True()
		gt.Value(t, record.Status).Equal(types.UserStatusAway)
	})

	t.Run("offline removes from store", func(t *testing.T) {
		api := &fakePresenceAPI{}
		r, store := newReconciler(api)

		gt.NoError(t, r.SetStatus(context.Background(), types.UserStatusOffline))
		_, ok := store.Get("ws1", "me")
		gt.B(t, ok).False()
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		api := &fakePresenceAPI{}
		r, _ := newReconciler(api)
		gt.Value(t, r.SetStatus(context.Background(), "idle")).NotNil()
	})
}

func TestReconciler_ApplyRemote(t *testing.T) {
	t.Run("stale update loses against newer one", func(t *testing.T) {
		api := &fakePresenceAPI{}
		r, store := newReconciler(api)

		r.ApplyRemote(model.StatusUpdate{UserID: "u1", Status: types.UserStatusOnline, Timestamp: 100})
		r.ApplyRemote(model.StatusUpdate{UserID: "u1", Status: types.UserStatusOffline, Timestamp: 50})

		record, ok := store.Get("ws1", "u1")
		gt.B(t, ok).True()
		gt.Value(t, record.Status).Equal(types.UserStatusOnline)
	})

	t.Run("offline removes user", func(t *testing.T) {
		api := &fakePresenceAPI{}
		r, store := newReconciler(api)

		r.ApplyRemote(model.StatusUpdate{UserID: "u1", Status: types.UserStatusOnline, Timestamp: 10})
		r.ApplyRemote(model.StatusUpdate{UserID: "u1", Status: types.UserStatusOffline, Timestamp: 20})

		_, ok := store.Get("ws1", "u1")
		gt.B(t, ok).False()
	})

	t.Run("stale echo cannot roll back local change", func(t *testing.T) {
		api := &fakePresenceAPI{}
		clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		r, store := newReconciler(api, status.WithClock(func() time.Time { return clock }))

		gt.NoError(t, r.SetStatus(context.Background(), types.UserStatusBusy))

		// An echo of the previous status, stamped before the local change
		r.ApplyRemote(model.StatusUpdate{
			UserID:    "me",
			Status:    types.UserStatusOnline,
			Timestamp: clock.UnixMilli() - 1000,
		})

		record, ok := store.Get("ws1", "me")
		gt.B(t, ok).True()
		gt.Value(t, record.Status).Equal(types.UserStatusBusy)
		gt.Value(t, r.SelfStatus()).Equal(types.UserStatusBusy)
	})

	t.Run("batch collapse applies only the latest per user", func(t *testing.T) {
		api := &fakePresenceAPI{}
		r, store := newReconciler(api)

		r.ApplyRemote(
			model.StatusUpdate{UserID: "u1", Status: types.UserStatusAway, Timestamp: 5},
			model.StatusUpdate{UserID: "u1", Status: types.UserStatusBusy, Timestamp: 9},
			model.StatusUpdate{UserID: "u2", Status: types.UserStatusOnline, Timestamp: 3},
		)

		u1, _ := store.Get("ws1", "u1")
		gt.Value(t, u1.Status).Equal(types.UserStatusBusy)
		u2, _ := store.Get("ws1", "u2")
		gt.Value(t, u2.Status).Equal(types.UserStatusOnline)
	})
}

func TestReconciler_Resync(t *testing.T) {
	t.Run("wholesale replace", func(t *testing.T) {
		api := &fakePresenceAPI{
			active: []model.PresenceRecord{
				{UserID: "u1", Status: types.UserStatusOnline},
				{UserID: "u2", Status: types.UserStatusBusy},
				{UserID: "u3", Status: types.UserStatusOffline},
			},
		}
		r, store := newReconciler(api)
		store.Upsert("ws1", model.PresenceRecord{UserID: "stale", Status: types.UserStatusOnline})

		gt.NoError(t, r.Resync(context.Background(), "ws1"))

		records := store.Query("ws1")
		gt.Array(t, records).Length(2)
		_, staleKept := store.Get("ws1", "stale")
		gt.B(t, staleKept).False()
		_, offlineKept := store.Get("ws1", "u3")
		gt.B(t, offlineKept).False()
	})

	t.Run("concurrent resyncs collapse into one fetch", func(t *testing.T) {
		api := &fakePresenceAPI{
			active:     []model.PresenceRecord{{UserID: "u1", Status: types.UserStatusOnline}},
			activeGate: make(chan struct{}),
		}
		r, _ := newReconciler(api)

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = r.Resync(context.Background(), "ws1")
			}()
		}

		// Let all three goroutines pile up on the in-flight fetch
		time.Sleep(50 * time.Millisecond)
		close(api.activeGate)
		wg.Wait()

		gt.Value(t, api.activeCalls.Load()).Equal(int32(1))
	})

	t.Run("fetch failure propagates", func(t *testing.T) {
		api := &fakePresenceAPI{activeErr: goerr.New("unreachable")}
		r, _ := newReconciler(api)
		gt.Value(t, r.Resync(context.Background(), "ws1")).NotNil()
	})
}

func TestReconciler_Shutdown(t *testing.T) {
	api := &fakePresenceAPI{}
	beacon := &fakeBeacon{}
	store := presence.NewStore()
	self := model.User{ID: "me", Username: "me", Status: types.UserStatusOnline}
	r := status.New(store, api, self, "ws1", status.WithBeacon(beacon))

	gt.NoError(t, r.SetStatus(context.Background(), types.UserStatusOnline))
	r.Shutdown(context.Background())
	r.Shutdown(context.Background()) // second call is a no-op

	gt.Array(t, beacon.notices).Length(1)
	gt.Value(t, beacon.notices[0].Status).Equal(types.UserStatusOffline)
	_, ok := store.Get("ws1", "me")
	gt.B(t, ok).False()
}
