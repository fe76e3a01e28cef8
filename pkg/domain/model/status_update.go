package model

import (
	"sort"

	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// StatusUpdate is a transient, timestamped status change for one user.
// Timestamp is Unix milliseconds as supplied by the producing client.
type StatusUpdate struct {
	UserID    types.UserID     `json:"userId"`
	Status    types.UserStatus `json:"status"`
	Timestamp int64            `json:"timestamp"`
}

// CollapseStatusUpdates reduces a batch of status updates to at most one
// entry per user: the one with the greatest timestamp. Ordering is by
// timestamp, not arrival order, so a stale update that arrives late cannot
// overwrite a newer one. The wall-clock comparison mirrors the wire
// contract; callers that need a different ordering can pre-map Timestamp to
// a server sequence number.
func CollapseStatusUpdates(updates []StatusUpdate) []StatusUpdate {
	if len(updates) == 0 {
		return nil
	}

	sorted := append([]StatusUpdate(nil), updates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	seen := make(map[types.UserID]struct{}, len(sorted))
	result := make([]StatusUpdate, 0, len(sorted))
	for _, update := range sorted {
		if _, ok := seen[update.UserID]; ok {
			continue
		}
		seen[update.UserID] = struct{}{}
		result = append(result, update)
	}

	return result
}
