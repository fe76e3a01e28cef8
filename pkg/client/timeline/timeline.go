package timeline

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/logging"
)

// State is the timeline's lifecycle state for the active channel
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// ErrNotReady is returned when a mutation needs a loaded channel first
var ErrNotReady = goerr.New("timeline not ready")

// Timeline holds the ordered, paginated message sequence for the active
// channel. Messages of a channel that is no longer active are discarded;
// nothing is persisted client-side.
type Timeline struct {
	api         interfaces.MessageAPI
	self        model.User
	workspaceID types.WorkspaceID
	groupWindow time.Duration
	now         func() time.Time

	mu        sync.Mutex
	state     State
	channelID types.ChannelID
	// epoch is the liveness token for in-flight fetches: it advances on
	// every channel switch, and a completion whose captured epoch no
	// longer matches drops its result silently
	epoch        uint64
	messages     []*model.Message
	cursor       *string
	loadingOlder bool
}

// Option configures a Timeline
type Option func(*Timeline)

// WithClock injects the time source (tests)
func WithClock(now func() time.Time) Option {
	return func(t *Timeline) {
		t.now = now
	}
}

// WithGroupWindow overrides the visual grouping window
func WithGroupWindow(window time.Duration) Option {
	return func(t *Timeline) {
		t.groupWindow = window
	}
}

// New creates an empty timeline for the given local user and workspace
func New(api interfaces.MessageAPI, self model.User, workspaceID types.WorkspaceID, opts ...Option) *Timeline {
	t := &Timeline{
		api:         api,
		self:        self,
		workspaceID: workspaceID,
		groupWindow: model.DefaultGroupWindow,
		now:         time.Now,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current lifecycle state
func (t *Timeline) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// WorkspaceID returns the workspace this timeline belongs to
func (t *Timeline) WorkspaceID() types.WorkspaceID {
	return t.workspaceID
}

// ChannelID returns the active channel
func (t *Timeline) ChannelID() types.ChannelID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelID
}

// HasMore reports whether older history can still be loaded
func (t *Timeline) HasMore() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor != nil
}

// Snapshot returns a copy of the loaded messages, oldest first
func (t *Timeline) Snapshot() []*model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]*model.Message, 0, len(t.messages))
	for _, msg := range t.messages {
		result = append(result, msg.Clone())
	}
	return result
}

// Entry is one rendered timeline slot with its derived grouping flag
type Entry struct {
	Message *model.Message
	// Grouped is true when this message continues the previous author's
	// visual group. Derived on every call, never stored: prepending older
	// pages changes the grouping of the page boundary.
	Grouped bool
}

// Entries returns the loaded messages with grouping recomputed
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]Entry, 0, len(t.messages))
	for i, msg := range t.messages {
		var prev *model.Message
		if i > 0 {
			prev = t.messages[i-1]
		}
		result = append(result, Entry{
			Message: msg.Clone(),
			Grouped: model.SameGroup(prev, msg, t.groupWindow),
		})
	}
	return result
}

// LoadInitial fetches the newest page of the channel, replacing the
// current timeline. If the channel changes again before the fetch
// resolves, the stale result is dropped silently.
func (t *Timeline) LoadInitial(ctx context.Context, channelID types.ChannelID, pageSize int) error {
	t.mu.Lock()
	t.epoch++
	epoch := t.epoch
	t.state = StateLoading
	t.channelID = channelID
	t.messages = nil
	t.cursor = nil
	t.loadingOlder = false
	t.mu.Unlock()

	page, err := t.api.List(ctx, channelID, pageSize, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to load channel history", goerr.V("channelID", channelID))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		// A newer LoadInitial superseded this fetch
		logging.From(ctx).Debug("dropped stale initial page", "channelID", channelID)
		return nil
	}

	t.messages = make([]*model.Message, 0, len(page.Messages))
	for _, msg := range page.Messages {
		t.messages = append(t.messages, msg.Clone())
	}
	t.cursor = nil
	if page.Pagination.HasMore {
		t.cursor = page.Pagination.NextCursor
	}
	t.state = StateReady
	return nil
}

// LoadOlder fetches the next older page and prepends it. No-op when no
// cursor remains or an older-page load is already in flight.
func (t *Timeline) LoadOlder(ctx context.Context, pageSize int) error {
	t.mu.Lock()
	if t.state != StateReady || t.cursor == nil || t.loadingOlder {
		t.mu.Unlock()
		return nil
	}
	epoch := t.epoch
	channelID := t.channelID
	cursor := *t.cursor
	t.loadingOlder = true
	t.mu.Unlock()

	page, err := t.api.List(ctx, channelID, pageSize, &cursor)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		// The channel moved on; the flag belongs to the new scope already
		logging.From(ctx).Debug("dropped stale older page", "channelID", channelID)
		return nil
	}
	t.loadingOlder = false
	if err != nil {
		return goerr.Wrap(err, "failed to load older page", goerr.V("channelID", channelID))
	}

	prepended := make([]*model.Message, 0, len(page.Messages)+len(t.messages))
	for _, msg := range page.Messages {
		prepended = append(prepended, msg.Clone())
	}
	t.messages = append(prepended, t.messages...)

	t.cursor = nil
	if page.Pagination.HasMore {
		t.cursor = page.Pagination.NextCursor
	}
	return nil
}

// AppendLive appends a server-pushed message. The local user's own
// messages arrive via the optimistic path instead, so pushes authored by
// the local user are skipped, as are messages for other channels and
// duplicates.
func (t *Timeline) AppendLive(msg *model.Message) {
	if msg.Author.ID == t.self.ID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateReady || msg.ChannelID != t.channelID {
		return
	}
	if t.indexOf(msg.ID) >= 0 {
		return
	}
	t.messages = append(t.messages, msg.Clone())
}

// Draft is the user-supplied part of an outgoing message
type Draft struct {
	Content string
	ReplyTo *types.MessageID
}

// SendOptimistic appends the draft immediately under a temporary ID and
// issues the network send. On success the temporary ID is swapped in place
// for the server-assigned one; exactly one swap happens per send and the
// temporary ID never reappears. On failure the optimistic message stays
// visible and the error is surfaced to the caller.
func (t *Timeline) SendOptimistic(ctx context.Context, draft Draft) (types.MessageID, error) {
	t.mu.Lock()
	if t.state != StateReady {
		t.mu.Unlock()
		return "", goerr.Wrap(ErrNotReady, "cannot send before channel load")
	}
	epoch := t.epoch
	msg := &model.Message{
		ID:          types.NewLocalMessageID(),
		ChannelID:   t.channelID,
		WorkspaceID: t.workspaceID,
		Author:      t.self,
		Content:     draft.Content,
		SentAt:      t.now(),
		ReplyTo:     draft.ReplyTo,
	}
	t.messages = append(t.messages, msg)
	tempID := msg.ID
	t.mu.Unlock()

	serverID, err := t.api.Send(ctx, msg.Clone())
	if err != nil {
		return tempID, goerr.Wrap(err, "failed to send message", goerr.V("tempID", tempID))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch == epoch {
		if i := t.indexOf(tempID); i >= 0 {
			// Identity swap: content untouched
			t.messages[i].ID = serverID
		}
	}
	return serverID, nil
}

// Delete removes the message immediately and issues the network delete.
// The optimistic removal is not rolled back on failure.
func (t *Timeline) Delete(ctx context.Context, id types.MessageID) error {
	t.mu.Lock()
	channelID := t.channelID
	if i := t.indexOf(id); i >= 0 {
		t.messages = append(t.messages[:i], t.messages[i+1:]...)
	}
	t.mu.Unlock()

	if err := t.api.Delete(ctx, channelID, id); err != nil {
		return goerr.Wrap(err, "failed to delete message", goerr.V("messageID", id))
	}
	return nil
}

// UpdateReactions replaces the reaction mapping of a loaded message in
// place. No-op if the message is not currently loaded.
func (t *Timeline) UpdateReactions(id types.MessageID, reactions map[types.ReactionKind][]types.UserID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexOf(id)
	if i < 0 {
		return
	}

	copied := make(map[types.ReactionKind][]types.UserID, len(reactions))
	for kind, users := range reactions {
		copied[kind] = append([]types.UserID(nil), users...)
	}
	t.messages[i].Reactions = copied
}

// indexOf must be called with t.mu held
func (t *Timeline) indexOf(id types.MessageID) int {
	for i, msg := range t.messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}
