package memory

import (
	"context"
	"sync"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

type presenceRepository struct {
	mu      sync.RWMutex
	records map[types.WorkspaceID]map[types.UserID]model.PresenceRecord
	order   map[types.WorkspaceID][]types.UserID
}

func newPresenceRepository() *presenceRepository {
	return &presenceRepository{
		records: make(map[types.WorkspaceID]map[types.UserID]model.PresenceRecord),
		order:   make(map[types.WorkspaceID][]types.UserID),
	}
}

func (r *presenceRepository) Set(ctx context.Context, workspaceID types.WorkspaceID, record model.PresenceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, exists := r.records[workspaceID]
	if !exists {
		ws = make(map[types.UserID]model.PresenceRecord)
		r.records[workspaceID] = ws
	}
	if _, exists := ws[record.UserID]; !exists {
		r.order[workspaceID] = append(r.order[workspaceID], record.UserID)
	}
	ws[record.UserID] = record
	return nil
}

func (r *presenceRepository) Remove(ctx context.Context, workspaceID types.WorkspaceID, userID types.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, exists := r.records[workspaceID]
	if !exists {
		return nil
	}
	if _, exists := ws[userID]; !exists {
		return nil
	}
	delete(ws, userID)
	order := r.order[workspaceID]
	for i, id := range order {
		if id == userID {
			r.order[workspaceID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *presenceRepository) List(ctx context.Context, workspaceID types.WorkspaceID) ([]model.PresenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws := r.records[workspaceID]
	result := make([]model.PresenceRecord, 0, len(ws))
	for _, id := range r.order[workspaceID] {
		result = append(result, ws[id])
	}
	return result, nil
}
