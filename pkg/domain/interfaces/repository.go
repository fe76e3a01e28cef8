package interfaces

import (
	"context"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

type Repository interface {
	Users() UserRepository
	Workspaces() WorkspaceRepository
	Messages() MessageRepository
	Presence() PresenceRepository
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	Get(ctx context.Context, id types.UserID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
}

type WorkspaceRepository interface {
	Create(ctx context.Context, workspace *model.Workspace) (*model.Workspace, error)
	Get(ctx context.Context, id types.WorkspaceID) (*model.Workspace, error)
	List(ctx context.Context) ([]*model.Workspace, error)

	AddMember(ctx context.Context, id types.WorkspaceID, member model.Membership) error
	IsMember(ctx context.Context, id types.WorkspaceID, userID types.UserID) (bool, error)

	CreateChannel(ctx context.Context, channel *model.Channel) (*model.Channel, error)
	GetChannel(ctx context.Context, id types.ChannelID) (*model.Channel, error)
	Channels(ctx context.Context, workspaceID types.WorkspaceID) ([]*model.Channel, error)
}

type MessageRepository interface {
	Append(ctx context.Context, msg *model.Message) (*model.Message, error)
	Get(ctx context.Context, channelID types.ChannelID, id types.MessageID) (*model.Message, error)
	// List pages backwards through history; a nil cursor means the newest page
	List(ctx context.Context, channelID types.ChannelID, limit int, cursor *string) (*model.MessagePage, error)
	Delete(ctx context.Context, channelID types.ChannelID, id types.MessageID) error
	SetReactions(ctx context.Context, channelID types.ChannelID, id types.MessageID, reactions map[types.ReactionKind][]types.UserID) error
}

type PresenceRepository interface {
	Set(ctx context.Context, workspaceID types.WorkspaceID, record model.PresenceRecord) error
	Remove(ctx context.Context, workspaceID types.WorkspaceID, userID types.UserID) error
	List(ctx context.Context, workspaceID types.WorkspaceID) ([]model.PresenceRecord, error)
}

// Publisher fans a push event out to every subscriber of a workspace
type Publisher interface {
	Publish(workspaceID types.WorkspaceID, env *model.Envelope)
}
