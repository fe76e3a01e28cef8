package transport

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/async"
	"github.com/wavelength-chat/wavelength/pkg/utils/logging"
)

// DefaultReconnectDelay is the fixed delay before a reconnect attempt
const DefaultReconnectDelay = 3 * time.Second

// ConnState is the adapter's connection state
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
)

// StatusSink receives presence-related events from the transport
type StatusSink interface {
	ApplyRemote(updates ...model.StatusUpdate)
	Resync(ctx context.Context, workspaceID types.WorkspaceID) error
	Announce(ctx context.Context) error
}

// TimelineSink receives message-related events from the transport
type TimelineSink interface {
	AppendLive(msg *model.Message)
	UpdateReactions(id types.MessageID, reactions map[types.ReactionKind][]types.UserID)
}

// Adapter owns the push-event connection for the active workspace scope:
// it demultiplexes inbound envelopes to the status reconciler and the
// message timeline, and runs the reconnect policy on failure.
type Adapter struct {
	dialer         interfaces.StreamDialer
	status         StatusSink
	timeline       TimelineSink
	reconnectDelay time.Duration

	mu          sync.Mutex
	state       ConnState
	workspaceID types.WorkspaceID
	stream      interfaces.Stream
	// reconnectTimer is non-nil while a reconnect is pending; further
	// errors before it fires must not schedule additional timers
	reconnectTimer *time.Timer
	closed         bool
}

// Option configures an Adapter
type Option func(*Adapter)

// WithReconnectDelay overrides the fixed reconnect delay
func WithReconnectDelay(delay time.Duration) Option {
	return func(a *Adapter) {
		a.reconnectDelay = delay
	}
}

// New creates a disconnected Adapter
func New(dialer interfaces.StreamDialer, status StatusSink, timeline TimelineSink, opts ...Option) *Adapter {
	a := &Adapter{
		dialer:         dialer,
		status:         status,
		timeline:       timeline,
		reconnectDelay: DefaultReconnectDelay,
		state:          StateDisconnected,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current connection state
func (a *Adapter) State() ConnState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connect opens the stream for a workspace scope. Any previous connection
// is closed first; no two connections for the same scope are ever open
// concurrently. On failure a single reconnect is scheduled.
func (a *Adapter) Connect(ctx context.Context, workspaceID types.WorkspaceID) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return goerr.New("transport already closed")
	}
	if a.stream != nil {
		_ = a.stream.Close()
		a.stream = nil
	}
	if a.reconnectTimer != nil {
		a.reconnectTimer.Stop()
		a.reconnectTimer = nil
	}
	a.state = StateConnecting
	a.workspaceID = workspaceID
	a.mu.Unlock()

	stream, err := a.dialer.Dial(ctx, workspaceID)
	if err != nil {
		a.scheduleReconnect(ctx)
		return goerr.Wrap(err, "failed to connect", goerr.V("workspaceID", workspaceID))
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = stream.Close()
		return goerr.New("transport already closed")
	}
	a.stream = stream
	a.state = StateConnected
	a.mu.Unlock()

	// Announce our presence so the workspace sees us on (re)connect
	async.Dispatch(ctx, func(ctx context.Context) error {
		return a.status.Announce(ctx)
	})

	go a.readLoop(ctx, stream)
	return nil
}

func (a *Adapter) readLoop(ctx context.Context, stream interfaces.Stream) {
	for {
		env, err := stream.Next(ctx)
		if err != nil {
			a.onStreamError(ctx, stream, err)
			return
		}
		a.dispatch(ctx, env)
	}
}

func (a *Adapter) onStreamError(ctx context.Context, stream interfaces.Stream, cause error) {
	a.mu.Lock()
	if a.stream != stream {
		// A newer connection replaced this one; stale loops stay quiet
		a.mu.Unlock()
		return
	}
	_ = a.stream.Close()
	a.stream = nil
	a.mu.Unlock()

	if ctx.Err() == nil {
		logging.From(ctx).Warn("push stream failed", "error", cause)
	}
	a.scheduleReconnect(ctx)
}

// scheduleReconnect arms the reconnect timer unless one is already
// pending or the adapter is closed
func (a *Adapter) scheduleReconnect(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.reconnectTimer != nil {
		return
	}
	a.state = StateReconnecting
	workspaceID := a.workspaceID
	a.reconnectTimer = time.AfterFunc(a.reconnectDelay, func() {
		a.mu.Lock()
		a.reconnectTimer = nil
		closed := a.closed
		a.mu.Unlock()
		if closed {
			return
		}
		if err := a.Connect(ctx, workspaceID); err != nil {
			logging.From(ctx).Warn("reconnect attempt failed", "error", err, "workspaceID", workspaceID)
		}
	})
}

// dispatch routes one classified envelope to its sink. Unrecognized
// envelopes are logged and dropped, never surfaced as errors.
func (a *Adapter) dispatch(ctx context.Context, env *model.Envelope) {
	event, err := env.Classify()
	if err != nil {
		logging.From(ctx).Warn("dropped unrecognized envelope",
			"error", err, "type", string(env.Event.Type), "author", string(env.Event.Author))
		return
	}

	switch e := event.(type) {
	case model.StatusEvent:
		a.status.ApplyRemote(e.Update)

	case model.MessageEvent:
		a.timeline.AppendLive(&e.Message)

	case model.ReactionEvent:
		a.timeline.UpdateReactions(e.MessageID, e.Reactions)

	case model.MembershipEvent:
		// Membership views changed: replace rather than merge
		a.mu.Lock()
		workspaceID := a.workspaceID
		a.mu.Unlock()
		async.Dispatch(ctx, func(ctx context.Context) error {
			return a.status.Resync(ctx, workspaceID)
		})
	}
}

// Close tears the connection down and cancels any pending reconnect
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.reconnectTimer != nil {
		a.reconnectTimer.Stop()
		a.reconnectTimer = nil
	}
	a.state = StateDisconnected
	if a.stream != nil {
		err := a.stream.Close()
		a.stream = nil
		return err
	}
	return nil
}
