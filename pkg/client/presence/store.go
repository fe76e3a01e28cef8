package presence

import (
	"sync"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// workspaceEntry holds the observed users of one workspace. The order slice
// preserves first-observation order so that reads are stable across calls.
type workspaceEntry struct {
	records map[types.UserID]model.PresenceRecord
	order   []types.UserID
}

// Store tracks which users are believed online/away/busy per workspace.
// All mutation goes through Upsert/Remove/Reset; readers get copies.
type Store struct {
	mu      sync.RWMutex
	entries map[types.WorkspaceID]*workspaceEntry
}

// NewStore creates an empty presence store
func NewStore() *Store {
	return &Store{
		entries: make(map[types.WorkspaceID]*workspaceEntry),
	}
}

// Upsert inserts or replaces the record for record.UserID in the workspace
// entry, creating the entry if needed. Idempotent: a user appears at most
// once per workspace.
func (s *Store) Upsert(workspaceID types.WorkspaceID, record model.PresenceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[workspaceID]
	if !ok {
		entry = &workspaceEntry{records: make(map[types.UserID]model.PresenceRecord)}
		s.entries[workspaceID] = entry
	}

	if _, exists := entry.records[record.UserID]; !exists {
		entry.order = append(entry.order, record.UserID)
	}
	entry.records[record.UserID] = record
}

// Remove deletes the user from the workspace entry. No-op if either the
// workspace or the user is absent. Empty entries are deleted entirely.
func (s *Store) Remove(workspaceID types.WorkspaceID, userID types.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[workspaceID]
	if !ok {
		return
	}
	if _, exists := entry.records[userID]; !exists {
		return
	}

	delete(entry.records, userID)
	for i, id := range entry.order {
		if id == userID {
			entry.order = append(entry.order[:i], entry.order[i+1:]...)
			break
		}
	}

	if len(entry.records) == 0 {
		delete(s.entries, workspaceID)
	}
}

// Reset clears the entry for a workspace. Used on workspace switch so stale
// users do not carry over into the new view.
func (s *Store) Reset(workspaceID types.WorkspaceID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, workspaceID)
}

// Query returns the workspace's presence records in first-observation
// order. Returns an empty slice if no entry exists.
func (s *Store) Query(workspaceID types.WorkspaceID) []model.PresenceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[workspaceID]
	if !ok {
		return []model.PresenceRecord{}
	}

	result := make([]model.PresenceRecord, 0, len(entry.order))
	for _, id := range entry.order {
		result = append(result, entry.records[id])
	}
	return result
}

// Get returns the record for one user, if observed in the workspace
func (s *Store) Get(workspaceID types.WorkspaceID, userID types.UserID) (model.PresenceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[workspaceID]
	if !ok {
		return model.PresenceRecord{}, false
	}
	record, ok := entry.records[userID]
	return record, ok
}
