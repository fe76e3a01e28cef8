package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// PresenceUseCase applies status transitions and serves the roster
type PresenceUseCase struct {
	repo      interfaces.Repository
	publisher interfaces.Publisher
}

// SetStatus records a user's status transition and rebroadcasts it to the
// workspace. Offline removes the user from the roster.
func (uc *PresenceUseCase) SetStatus(ctx context.Context, workspaceID types.WorkspaceID, update model.StatusUpdate) error {
	if update.UserID == "" || !update.Status.IsValid() {
		return goerr.Wrap(ErrInvalidStatus, "rejecting status update",
			goerr.V("userID", update.UserID), goerr.V("status", string(update.Status)))
	}

	if update.Status == types.UserStatusOffline {
		if err := uc.repo.Presence().Remove(ctx, workspaceID, update.UserID); err != nil {
			return goerr.Wrap(err, "failed to clear presence", goerr.V("userID", update.UserID))
		}
	} else {
		record := model.PresenceRecord{UserID: update.UserID, Status: update.Status}
		if err := uc.repo.Presence().Set(ctx, workspaceID, record); err != nil {
			return goerr.Wrap(err, "failed to store presence", goerr.V("userID", update.UserID))
		}
	}

	if uc.publisher != nil {
		uc.publisher.Publish(workspaceID, model.NewStatusEnvelope(types.EventAuthorClient, update))
	}
	return nil
}

// ActiveUsers returns the authoritative roster of a workspace
func (uc *PresenceUseCase) ActiveUsers(ctx context.Context, workspaceID types.WorkspaceID) ([]model.PresenceRecord, error) {
	return uc.repo.Presence().List(ctx, workspaceID)
}
