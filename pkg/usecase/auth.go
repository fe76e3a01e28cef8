package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/repository/memory"
)

// AuthUseCase signs users in and manages workspace membership
type AuthUseCase struct {
	repo      interfaces.Repository
	publisher interfaces.Publisher
	now       func() time.Time
}

// Login resolves a username to a user, creating the account on first use
func (uc *AuthUseCase) Login(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, goerr.New("username is required")
	}

	user, err := uc.repo.Users().GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, memory.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to look up user", goerr.V("username", username))
	}

	created, err := uc.repo.Users().Create(ctx, &model.User{
		ID:        types.NewUserID(),
		Username:  username,
		Status:    types.UserStatusOffline,
		CreatedAt: uc.now().UTC(),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create user", goerr.V("username", username))
	}
	return created, nil
}

// JoinWorkspace adds a user to a workspace and announces the membership
// change so connected clients resync their rosters
func (uc *AuthUseCase) JoinWorkspace(ctx context.Context, workspaceID types.WorkspaceID, userID types.UserID, role types.UserRole) error {
	if !role.IsValid() {
		role = types.UserRoleUser
	}
	if _, err := uc.repo.Users().Get(ctx, userID); err != nil {
		return goerr.Wrap(err, "unknown user", goerr.V("userID", userID))
	}

	if err := uc.repo.Workspaces().AddMember(ctx, workspaceID, model.Membership{UserID: userID, Role: role}); err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return goerr.Wrap(ErrWorkspaceNotFound, "unknown workspace", goerr.V("workspaceID", workspaceID))
		}
		return err
	}

	if uc.publisher != nil {
		uc.publisher.Publish(workspaceID, model.NewMembershipEnvelope(types.EventTypeUserJoined, workspaceID))
	}
	return nil
}

// GetUser returns a user's profile
func (uc *AuthUseCase) GetUser(ctx context.Context, userID types.UserID) (*model.User, error) {
	user, err := uc.repo.Users().Get(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load user", goerr.V("userID", userID))
	}
	return user, nil
}
