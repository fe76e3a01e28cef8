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

// ChatUseCase implements message posting, history, deletion and reactions
type ChatUseCase struct {
	repo      interfaces.Repository
	publisher interfaces.Publisher
	now       func() time.Time
}

// PostDraft is a message submission before the server stamps identity
type PostDraft struct {
	ChannelID types.ChannelID
	Content   string
	ReplyTo   *types.MessageID
}

// PostMessage assigns a server ID and timestamp, stores the message and
// fans it out to every workspace subscriber
func (uc *ChatUseCase) PostMessage(ctx context.Context, author *model.User, draft PostDraft) (*model.Message, error) {
	if draft.Content == "" {
		return nil, goerr.Wrap(ErrEmptyContent, "rejecting empty message", goerr.V("channelID", draft.ChannelID))
	}

	channel, err := uc.repo.Workspaces().GetChannel(ctx, draft.ChannelID)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return nil, goerr.Wrap(ErrChannelNotFound, "unknown channel", goerr.V("channelID", draft.ChannelID))
		}
		return nil, err
	}
	if err := uc.requireMember(ctx, channel.WorkspaceID, author.ID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:          types.NewMessageID(),
		ChannelID:   channel.ID,
		WorkspaceID: channel.WorkspaceID,
		Author:      *author,
		Content:     draft.Content,
		SentAt:      uc.now().UTC(),
		ReplyTo:     draft.ReplyTo,
	}
	created, err := uc.repo.Messages().Append(ctx, msg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to store message", goerr.V("channelID", channel.ID))
	}

	uc.publish(channel.WorkspaceID, model.NewMessageEnvelope(created))
	return created, nil
}

// ListMessages returns one page of channel history
func (uc *ChatUseCase) ListMessages(ctx context.Context, channelID types.ChannelID, limit int, cursor *string) (*model.MessagePage, error) {
	if _, err := uc.repo.Workspaces().GetChannel(ctx, channelID); err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return nil, goerr.Wrap(ErrChannelNotFound, "unknown channel", goerr.V("channelID", channelID))
		}
		return nil, err
	}
	return uc.repo.Messages().List(ctx, channelID, limit, cursor)
}

// DeleteMessage removes a message. Only the author or a workspace admin
// may delete.
func (uc *ChatUseCase) DeleteMessage(ctx context.Context, actor *model.User, channelID types.ChannelID, id types.MessageID) error {
	msg, err := uc.repo.Messages().Get(ctx, channelID, id)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return goerr.Wrap(ErrMessageNotFound, "unknown message", goerr.V("messageID", id))
		}
		return err
	}

	if msg.Author.ID != actor.ID {
		admin, err := uc.isAdmin(ctx, msg.WorkspaceID, actor.ID)
		if err != nil {
			return err
		}
		if !admin {
			return goerr.Wrap(ErrAccessDenied, "cannot delete another user's message",
				goerr.V("messageID", id), goerr.V("actor", actor.ID))
		}
	}

	return uc.repo.Messages().Delete(ctx, channelID, id)
}

// ToggleReaction flips the actor's reaction of a kind on a message and
// broadcasts the resulting full reaction set
func (uc *ChatUseCase) ToggleReaction(ctx context.Context, actor *model.User, channelID types.ChannelID, id types.MessageID, kind types.ReactionKind) error {
	msg, err := uc.repo.Messages().Get(ctx, channelID, id)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return goerr.Wrap(ErrMessageNotFound, "unknown message", goerr.V("messageID", id))
		}
		return err
	}
	if err := uc.requireMember(ctx, msg.WorkspaceID, actor.ID); err != nil {
		return err
	}

	reactions := msg.Reactions
	if reactions == nil {
		reactions = make(map[types.ReactionKind][]types.UserID)
	}
	users := reactions[kind]
	removed := false
	for i, userID := range users {
		if userID == actor.ID {
			users = append(users[:i:i], users[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		users = append(users, actor.ID)
	}
	if len(users) == 0 {
		delete(reactions, kind)
	} else {
		reactions[kind] = users
	}

	if err := uc.repo.Messages().SetReactions(ctx, channelID, id, reactions); err != nil {
		return goerr.Wrap(err, "failed to store reactions", goerr.V("messageID", id))
	}

	uc.publish(msg.WorkspaceID, model.NewReactionEnvelope(model.ReactionEvent{
		MessageID: id,
		ChannelID: channelID,
		Reactions: reactions,
	}))
	return nil
}

func (uc *ChatUseCase) requireMember(ctx context.Context, workspaceID types.WorkspaceID, userID types.UserID) error {
	member, err := uc.repo.Workspaces().IsMember(ctx, workspaceID, userID)
	if err != nil {
		return goerr.Wrap(err, "failed to check membership", goerr.V("workspaceID", workspaceID))
	}
	if !member {
		return goerr.Wrap(ErrNotMember, "user is not in workspace",
			goerr.V("workspaceID", workspaceID), goerr.V("userID", userID))
	}
	return nil
}

func (uc *ChatUseCase) isAdmin(ctx context.Context, workspaceID types.WorkspaceID, userID types.UserID) (bool, error) {
	workspace, err := uc.repo.Workspaces().Get(ctx, workspaceID)
	if err != nil {
		return false, goerr.Wrap(err, "failed to load workspace", goerr.V("workspaceID", workspaceID))
	}
	for _, member := range workspace.Members {
		if member.UserID == userID {
			return member.Role == types.UserRoleAdmin, nil
		}
	}
	return false, nil
}

func (uc *ChatUseCase) publish(workspaceID types.WorkspaceID, env *model.Envelope) {
	if uc.publisher != nil {
		uc.publisher.Publish(workspaceID, env)
	}
}
