package interfaces

import (
	"context"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// PresenceAPI is the REST contract for presence state on the backend
type PresenceAPI interface {
	// SetStatus publishes the local user's status change for a workspace
	SetStatus(ctx context.Context, workspaceID types.WorkspaceID, update model.StatusUpdate) error
	// ActiveUsers fetches the authoritative active-user list for a workspace
	ActiveUsers(ctx context.Context, workspaceID types.WorkspaceID) ([]model.PresenceRecord, error)
}

// MessageAPI is the REST contract for channel messages on the backend
type MessageAPI interface {
	// Send posts a message and returns the server-assigned ID
	Send(ctx context.Context, msg *model.Message) (types.MessageID, error)
	// List fetches a page of channel history; cursor nil means the newest page
	List(ctx context.Context, channelID types.ChannelID, limit int, cursor *string) (*model.MessagePage, error)
	// Delete removes a message by ID
	Delete(ctx context.Context, channelID types.ChannelID, id types.MessageID) error
	// ToggleReaction toggles the local user's reaction of the given kind
	ToggleReaction(ctx context.Context, channelID types.ChannelID, id types.MessageID, kind types.ReactionKind) error
}

// UserAPI is the REST contract for user profile lookups
type UserAPI interface {
	GetUser(ctx context.Context, userID types.UserID) (*model.User, error)
}

// Beacon delivers a final fire-and-forget notification that must not
// depend on the caller staying alive to complete
type Beacon interface {
	NotifyOffline(workspaceID types.WorkspaceID, update model.StatusUpdate)
}

// Stream is a connected push-event subscription
type Stream interface {
	// Next blocks until the next envelope arrives or the stream fails
	Next(ctx context.Context) (*model.Envelope, error)
	Close() error
}

// StreamDialer opens a push-event subscription for one workspace scope
type StreamDialer interface {
	Dial(ctx context.Context, workspaceID types.WorkspaceID) (Stream, error)
}
