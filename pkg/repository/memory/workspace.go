package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

type workspaceRepository struct {
	mu         sync.RWMutex
	workspaces map[types.WorkspaceID]*model.Workspace
	order      []types.WorkspaceID
	channels   map[types.ChannelID]*model.Channel
	byWs       map[types.WorkspaceID][]types.ChannelID
}

func newWorkspaceRepository() *workspaceRepository {
	return &workspaceRepository{
		workspaces: make(map[types.WorkspaceID]*model.Workspace),
		channels:   make(map[types.ChannelID]*model.Channel),
		byWs:       make(map[types.WorkspaceID][]types.ChannelID),
	}
}

func copyWorkspace(w *model.Workspace) *model.Workspace {
	copied := *w
	copied.Members = append([]model.Membership(nil), w.Members...)
	return &copied
}

func copyChannel(c *model.Channel) *model.Channel {
	copied := *c
	copied.Members = append([]types.UserID(nil), c.Members...)
	return &copied
}

func (r *workspaceRepository) Create(ctx context.Context, workspace *model.Workspace) (*model.Workspace, error) {
	if workspace.ID == "" {
		return nil, goerr.New("workspace ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workspaces[workspace.ID]; exists {
		return nil, goerr.New("workspace already exists", goerr.V("id", workspace.ID))
	}

	created := copyWorkspace(workspace)
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	r.workspaces[created.ID] = created
	r.order = append(r.order, created.ID)
	return copyWorkspace(created), nil
}

func (r *workspaceRepository) Get(ctx context.Context, id types.WorkspaceID) (*model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workspace, exists := r.workspaces[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "workspace not found", goerr.V("id", id))
	}
	return copyWorkspace(workspace), nil
}

func (r *workspaceRepository) List(ctx context.Context) ([]*model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Workspace, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, copyWorkspace(r.workspaces[id]))
	}
	return result, nil
}

func (r *workspaceRepository) AddMember(ctx context.Context, id types.WorkspaceID, member model.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workspace, exists := r.workspaces[id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "workspace not found", goerr.V("id", id))
	}
	for _, existing := range workspace.Members {
		if existing.UserID == member.UserID {
			return nil
		}
	}
	workspace.Members = append(workspace.Members, member)
	return nil
}

func (r *workspaceRepository) IsMember(ctx context.Context, id types.WorkspaceID, userID types.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workspace, exists := r.workspaces[id]
	if !exists {
		return false, goerr.Wrap(ErrNotFound, "workspace not found", goerr.V("id", id))
	}
	for _, member := range workspace.Members {
		if member.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *workspaceRepository) CreateChannel(ctx context.Context, channel *model.Channel) (*model.Channel, error) {
	if channel.ID == "" {
		return nil, goerr.New("channel ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workspaces[channel.WorkspaceID]; !exists {
		return nil, goerr.Wrap(ErrNotFound, "workspace not found", goerr.V("id", channel.WorkspaceID))
	}
	if _, exists := r.channels[channel.ID]; exists {
		return nil, goerr.New("channel already exists", goerr.V("id", channel.ID))
	}

	created := copyChannel(channel)
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	if created.Type == "" {
		created.Type = types.ChannelTypeChat
	}
	r.channels[created.ID] = created
	r.byWs[created.WorkspaceID] = append(r.byWs[created.WorkspaceID], created.ID)
	return copyChannel(created), nil
}

func (r *workspaceRepository) GetChannel(ctx context.Context, id types.ChannelID) (*model.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channel, exists := r.channels[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "channel not found", goerr.V("id", id))
	}
	return copyChannel(channel), nil
}

func (r *workspaceRepository) Channels(ctx context.Context, workspaceID types.WorkspaceID) ([]*model.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byWs[workspaceID]
	result := make([]*model.Channel, 0, len(ids))
	for _, id := range ids {
		result = append(result, copyChannel(r.channels[id]))
	}
	return result, nil
}
