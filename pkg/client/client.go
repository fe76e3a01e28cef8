package client

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/client/presence"
	"github.com/wavelength-chat/wavelength/pkg/client/status"
	"github.com/wavelength-chat/wavelength/pkg/client/timeline"
	"github.com/wavelength-chat/wavelength/pkg/client/transport"
	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// DefaultPageSize is the message page size used when Config leaves it zero
const DefaultPageSize = 50

// Config carries everything the Engine needs to come up
type Config struct {
	Self        model.User
	WorkspaceID types.WorkspaceID
	ChannelID   types.ChannelID
	PageSize    int

	Presence interfaces.PresenceAPI
	Messages interfaces.MessageAPI
	Dialer   interfaces.StreamDialer
	Beacon   interfaces.Beacon

	// Zero values fall back to the status package defaults
	AwayAfter    time.Duration
	OfflineAfter time.Duration
	GroupWindow  time.Duration

	// Optional notification hooks for frontends; called after the engine
	// has applied the event. Must not block.
	OnMessage func(msg *model.Message)
	OnStatus  func(update model.StatusUpdate)
}

func (c *Config) Validate() error {
	if c.Self.ID == "" {
		return goerr.New("self user is required")
	}
	if c.WorkspaceID == "" {
		return goerr.New("workspace ID is required")
	}
	if c.Presence == nil || c.Messages == nil || c.Dialer == nil {
		return goerr.New("presence, message and dialer backends are required")
	}
	return nil
}

// Engine owns the realtime sync core for one signed-in user: the presence
// store, the status reconciler with its activity monitor, the active
// channel's message timeline, and the push transport. It is the single
// handle a frontend drives.
type Engine struct {
	config Config

	store      *presence.Store
	reconciler *status.Reconciler
	monitor    *status.Monitor
	adapter    *transport.Adapter

	mu       sync.Mutex
	timeline *timeline.Timeline
	started  bool
}

// New assembles a stopped Engine. Nothing talks to the network until Start.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid client config")
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}

	e := &Engine{config: config}
	e.store = presence.NewStore()

	var reconcilerOpts []status.Option
	if config.Beacon != nil {
		reconcilerOpts = append(reconcilerOpts, status.WithBeacon(config.Beacon))
	}
	e.reconciler = status.New(e.store, config.Presence, config.Self, config.WorkspaceID, reconcilerOpts...)

	var monitorOpts []status.MonitorOption
	if config.AwayAfter > 0 && config.OfflineAfter > 0 {
		monitorOpts = append(monitorOpts, status.WithThresholds(config.AwayAfter, config.OfflineAfter))
	}
	e.monitor = status.NewMonitor(e.reconciler, monitorOpts...)

	e.timeline = e.newTimeline(config.WorkspaceID)
	var statusSink transport.StatusSink = e.reconciler
	if config.OnStatus != nil {
		statusSink = &notifyingStatusSink{inner: e.reconciler, onStatus: config.OnStatus}
	}
	e.adapter = transport.New(config.Dialer, statusSink, e)
	return e, nil
}

// notifyingStatusSink forwards to the reconciler, then tells the frontend
type notifyingStatusSink struct {
	inner    *status.Reconciler
	onStatus func(update model.StatusUpdate)
}

func (s *notifyingStatusSink) ApplyRemote(updates ...model.StatusUpdate) {
	s.inner.ApplyRemote(updates...)
	for _, update := range updates {
		s.onStatus(update)
	}
}

func (s *notifyingStatusSink) Resync(ctx context.Context, workspaceID types.WorkspaceID) error {
	return s.inner.Resync(ctx, workspaceID)
}

func (s *notifyingStatusSink) Announce(ctx context.Context) error {
	return s.inner.Announce(ctx)
}

func (e *Engine) newTimeline(workspaceID types.WorkspaceID) *timeline.Timeline {
	var opts []timeline.Option
	if e.config.GroupWindow > 0 {
		opts = append(opts, timeline.WithGroupWindow(e.config.GroupWindow))
	}
	return timeline.New(e.config.Messages, e.config.Self, workspaceID, opts...)
}

// Start connects the push transport, pulls the initial presence roster, and
// loads the first page of the configured channel (if any)
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return goerr.New("engine already started")
	}
	e.started = true
	channelID := e.config.ChannelID
	e.mu.Unlock()

	if err := e.adapter.Connect(ctx, e.config.WorkspaceID); err != nil {
		return goerr.Wrap(err, "failed to open push transport")
	}
	if err := e.reconciler.Resync(ctx, e.config.WorkspaceID); err != nil {
		return goerr.Wrap(err, "failed to load presence roster")
	}
	if channelID != "" {
		if err := e.SwitchChannel(ctx, channelID); err != nil {
			return err
		}
	}
	return nil
}

// SwitchChannel loads a fresh timeline page for another channel in the
// current workspace. The push connection stays up; a late page response
// for the previous channel is discarded by the timeline itself.
func (e *Engine) SwitchChannel(ctx context.Context, channelID types.ChannelID) error {
	e.mu.Lock()
	tl := e.timeline
	e.mu.Unlock()
	return tl.LoadInitial(ctx, channelID, e.config.PageSize)
}

// SwitchWorkspace tears the current scope down before opening the next one:
// the old stream is closed, the presence roster replaced, and the timeline
// rebuilt, so no event from the old workspace can leak into the new view.
func (e *Engine) SwitchWorkspace(ctx context.Context, workspaceID types.WorkspaceID, channelID types.ChannelID) error {
	e.mu.Lock()
	e.config.WorkspaceID = workspaceID
	e.config.ChannelID = channelID
	e.timeline = e.newTimeline(workspaceID)
	e.mu.Unlock()

	e.reconciler.SetWorkspace(workspaceID)
	if err := e.adapter.Connect(ctx, workspaceID); err != nil {
		return goerr.Wrap(err, "failed to reconnect push transport", goerr.V("workspaceID", workspaceID))
	}
	if err := e.reconciler.Resync(ctx, workspaceID); err != nil {
		return goerr.Wrap(err, "failed to load presence roster", goerr.V("workspaceID", workspaceID))
	}
	if channelID != "" {
		return e.SwitchChannel(ctx, channelID)
	}
	return nil
}

// Shutdown stops activity tracking, closes the push connection and fires
// the offline beacon. Safe to call more than once.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.monitor.Close()
	err := e.adapter.Close()
	e.reconciler.Shutdown(ctx)
	return err
}

// AppendLive forwards a live message to the active timeline
func (e *Engine) AppendLive(msg *model.Message) {
	e.mu.Lock()
	tl := e.timeline
	e.mu.Unlock()
	tl.AppendLive(msg)
	if e.config.OnMessage != nil {
		e.config.OnMessage(msg)
	}
}

// UpdateReactions forwards a reaction replacement to the active timeline
func (e *Engine) UpdateReactions(id types.MessageID, reactions map[types.ReactionKind][]types.UserID) {
	e.mu.Lock()
	tl := e.timeline
	e.mu.Unlock()
	tl.UpdateReactions(id, reactions)
}

// Presence returns the shared presence store
func (e *Engine) Presence() *presence.Store {
	return e.store
}

// Status returns the status reconciler
func (e *Engine) Status() *status.Reconciler {
	return e.reconciler
}

// Activity returns the activity monitor
func (e *Engine) Activity() *status.Monitor {
	return e.monitor
}

// Timeline returns the timeline of the active channel scope
func (e *Engine) Timeline() *timeline.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline
}

// ConnState reports the push transport's connection state
func (e *Engine) ConnState() transport.ConnState {
	return e.adapter.State()
}
