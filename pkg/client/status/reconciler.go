package status

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/singleflight"

	"github.com/wavelength-chat/wavelength/pkg/client/presence"
	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/logging"
)

// Reconciler decides the local user's presence status and merges inbound
// status events into the presence store without violating timestamp order.
type Reconciler struct {
	store  *presence.Store
	api    interfaces.PresenceAPI
	beacon interfaces.Beacon
	now    func() time.Time

	mu          sync.Mutex
	self        model.User
	workspaceID types.WorkspaceID
	// queue retains the latest applied update per user so that a stale,
	// later-arriving event cannot overwrite a newer state change
	queue map[types.UserID]model.StatusUpdate

	resyncs singleflight.Group
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithClock injects the time source (tests)
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithBeacon injects the teardown notification channel
func WithBeacon(beacon interfaces.Beacon) Option {
	return func(r *Reconciler) {
		r.beacon = beacon
	}
}

// New creates a Reconciler for the given local user and workspace
func New(store *presence.Store, api interfaces.PresenceAPI, self model.User, workspaceID types.WorkspaceID, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:       store,
		api:         api,
		now:         time.Now,
		self:        self,
		workspaceID: workspaceID,
		queue:       make(map[types.UserID]model.StatusUpdate),
	}
	if r.self.Status == "" {
		r.self.Status = types.UserStatusOnline
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Self returns the local user's current view of themselves
func (r *Reconciler) Self() model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self
}

// SelfStatus returns the local user's current status
func (r *Reconciler) SelfStatus() types.UserStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self.Status
}

// SetWorkspace switches the reconciler to a new workspace scope. Retained
// queue entries belong to the old scope and are discarded.
func (r *Reconciler) SetWorkspace(workspaceID types.WorkspaceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaceID = workspaceID
	r.queue = make(map[types.UserID]model.StatusUpdate)
}

// SetStatus updates the local user's status optimistically (self view and
// presence store) and pushes the change to the backend. The optimistic
// update is not rolled back on push failure; the error is returned for
// user-visible reporting only.
func (r *Reconciler) SetStatus(ctx context.Context, newStatus types.UserStatus) error {
	if !newStatus.IsValid() {
		return goerr.New("invalid status", goerr.V("status", string(newStatus)))
	}

	r.mu.Lock()
	r.self.Status = newStatus
	update := model.StatusUpdate{
		UserID:    r.self.ID,
		Status:    newStatus,
		Timestamp: r.now().UnixMilli(),
	}
	workspaceID := r.workspaceID
	// Record the local change in the queue so a stale echo from the
	// network cannot roll it back
	r.queue[update.UserID] = update
	r.mu.Unlock()

	if newStatus == types.UserStatusOffline {
		r.store.Remove(workspaceID, update.UserID)
	} else {
		r.store.Upsert(workspaceID, model.PresenceRecord{UserID: update.UserID, Status: newStatus})
	}

	if err := r.api.SetStatus(ctx, workspaceID, update); err != nil {
		return goerr.Wrap(err, "failed to push status", goerr.V("status", newStatus.String()))
	}
	return nil
}

// Announce re-publishes the current status without changing it. Called
// after the transport (re)connects so the workspace sees us again.
func (r *Reconciler) Announce(ctx context.Context) error {
	r.mu.Lock()
	update := model.StatusUpdate{
		UserID:    r.self.ID,
		Status:    r.self.Status,
		Timestamp: r.now().UnixMilli(),
	}
	workspaceID := r.workspaceID
	r.mu.Unlock()

	if err := r.api.SetStatus(ctx, workspaceID, update); err != nil {
		return goerr.Wrap(err, "failed to announce presence")
	}
	return nil
}

// ApplyRemote merges inbound status updates from the transport layer.
// Updates are collapsed to the latest per user by timestamp, together with
// the retained entries from earlier passes, so out-of-order and duplicate
// delivery resolve deterministically.
func (r *Reconciler) ApplyRemote(updates ...model.StatusUpdate) {
	if len(updates) == 0 {
		return
	}

	r.mu.Lock()
	pending := make([]model.StatusUpdate, 0, len(r.queue)+len(updates))
	for _, retained := range r.queue {
		pending = append(pending, retained)
	}
	pending = append(pending, updates...)

	survivors := model.CollapseStatusUpdates(pending)
	changed := make([]model.StatusUpdate, 0, len(survivors))
	for _, update := range survivors {
		prev, ok := r.queue[update.UserID]
		if !ok || prev != update {
			changed = append(changed, update)
		}
		r.queue[update.UserID] = update
	}
	workspaceID := r.workspaceID
	selfID := r.self.ID
	r.mu.Unlock()

	for _, update := range changed {
		if update.UserID == selfID {
			// The local user's own state is driven locally; the retained
			// queue already guards against stale echoes
			r.mu.Lock()
			r.self.Status = update.Status
			r.mu.Unlock()
		}
		if update.Status == types.UserStatusOffline {
			r.store.Remove(workspaceID, update.UserID)
		} else {
			r.store.Upsert(workspaceID, model.PresenceRecord{UserID: update.UserID, Status: update.Status})
		}
	}
}

// Resync replaces the presence store's entry for the workspace with the
// authoritative active-user list. Concurrent calls for the same workspace
// collapse into a single fetch.
func (r *Reconciler) Resync(ctx context.Context, workspaceID types.WorkspaceID) error {
	_, err, shared := r.resyncs.Do(workspaceID.String(), func() (any, error) {
		records, err := r.api.ActiveUsers(ctx, workspaceID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch active users", goerr.V("workspaceID", workspaceID))
		}

		r.store.Reset(workspaceID)
		for _, record := range records {
			if record.Status == types.UserStatusOffline {
				continue
			}
			r.store.Upsert(workspaceID, record)
		}

		r.mu.Lock()
		if workspaceID == r.workspaceID {
			// The fetch is authoritative; retained timestamps from before
			// it no longer order against future pushes
			r.queue = make(map[types.UserID]model.StatusUpdate)
		}
		r.mu.Unlock()
		return nil, nil
	})
	if shared {
		logging.From(ctx).Debug("presence resync deduplicated", "workspaceID", workspaceID)
	}
	return err
}

// Shutdown sends the best-effort offline notification. It must complete
// even while the process is tearing down, so delivery is delegated to the
// beacon and not awaited.
func (r *Reconciler) Shutdown(ctx context.Context) {
	r.mu.Lock()
	if r.self.Status == types.UserStatusOffline {
		r.mu.Unlock()
		return
	}
	r.self.Status = types.UserStatusOffline
	update := model.StatusUpdate{
		UserID:    r.self.ID,
		Status:    types.UserStatusOffline,
		Timestamp: r.now().UnixMilli(),
	}
	workspaceID := r.workspaceID
	r.mu.Unlock()

	r.store.Remove(workspaceID, update.UserID)
	if r.beacon != nil {
		r.beacon.NotifyOffline(workspaceID, update)
	}
}
