package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

func TestEnvelope_Classify(t *testing.T) {
	t.Run("status envelope", func(t *testing.T) {
		env := model.NewStatusEnvelope(types.EventAuthorClient, model.StatusUpdate{
			UserID:    "u1",
			Status:    types.UserStatusAway,
			Timestamp: 1234,
		})

		event, err := env.Classify()
		gt.NoError(t, err)
		status := gt.Cast[model.StatusEvent](t, event)
		gt.Value(t, status.Update.UserID).Equal(types.UserID("u1"))
		gt.Value(t, status.Update.Status).Equal(types.UserStatusAway)
		gt.Value(t, status.Update.Timestamp).Equal(int64(1234))
	})

	t.Run("status falls back to variant", func(t *testing.T) {
		env := &model.Envelope{
			Event: model.EventMeta{
				Author:  types.EventAuthorClient,
				Type:    types.EventTypeStatus,
				Variant: "busy",
			},
			Message: json.RawMessage(`{"userId":"u2","timestamp":9}`),
		}

		event, err := env.Classify()
		gt.NoError(t, err)
		status := gt.Cast[model.StatusEvent](t, event)
		gt.Value(t, status.Update.Status).Equal(types.UserStatusBusy)
	})

	t.Run("message envelope", func(t *testing.T) {
		msg := &model.Message{
			ID:          types.NewMessageID(),
			ChannelID:   "general",
			WorkspaceID: "ws1",
			Author:      model.User{ID: "u1", Username: "u1"},
			Content:     "hello",
			SentAt:      time.Now().UTC(),
		}
		env := model.NewMessageEnvelope(msg)

		event, err := env.Classify()
		gt.NoError(t, err)
		decoded := gt.Cast[model.MessageEvent](t, event)
		gt.Value(t, decoded.Message.ID).Equal(msg.ID)
		gt.Value(t, decoded.Message.Content).Equal("hello")
	})

	t.Run("reaction envelope", func(t *testing.T) {
		env := model.NewReactionEnvelope(model.ReactionEvent{
			MessageID: "m1",
			ChannelID: "general",
			Reactions: map[types.ReactionKind][]types.UserID{"wave": {"u1"}},
		})

		event, err := env.Classify()
		gt.NoError(t, err)
		reaction := gt.Cast[model.ReactionEvent](t, event)
		gt.Value(t, reaction.MessageID).Equal(types.MessageID("m1"))
		gt.Array(t, reaction.Reactions["wave"]).Length(1)
	})

	t.Run("welcome envelope triggers membership event", func(t *testing.T) {
		env := model.NewMembershipEnvelope(types.EventTypeWelcome, "ws1")

		event, err := env.Classify()
		gt.NoError(t, err)
		membership := gt.Cast[model.MembershipEvent](t, event)
		gt.Value(t, membership.Type).Equal(types.EventTypeWelcome)
		gt.Value(t, membership.WorkspaceID).Equal(types.WorkspaceID("ws1"))
	})

	t.Run("unknown event type is rejected", func(t *testing.T) {
		env := &model.Envelope{
			Event:   model.EventMeta{Author: types.EventAuthorServer, Type: "typing"},
			Message: json.RawMessage(`{}`),
		}

		_, err := env.Classify()
		gt.Error(t, err).Is(model.ErrUnknownEnvelope)
	})

	t.Run("unknown author is rejected", func(t *testing.T) {
		env := &model.Envelope{
			Event:   model.EventMeta{Author: "proxy", Type: types.EventTypeMessage},
			Message: json.RawMessage(`{}`),
		}

		_, err := env.Classify()
		gt.Error(t, err).Is(model.ErrUnknownEnvelope)
	})

	t.Run("malformed status payload is rejected", func(t *testing.T) {
		env := &model.Envelope{
			Event:   model.EventMeta{Author: types.EventAuthorClient, Type: types.EventTypeStatus},
			Message: json.RawMessage(`"not an object"`),
		}

		_, err := env.Classify()
		gt.Error(t, err).Is(model.ErrUnknownEnvelope)
	})
}
