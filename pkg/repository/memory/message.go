package memory

import (
	"context"
	"encoding/base64"
	"strconv"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// DefaultPageLimit applies when a list request carries no limit
const DefaultPageLimit = 50

type messageRepository struct {
	mu       sync.RWMutex
	messages map[types.ChannelID][]*model.Message
}

func newMessageRepository() *messageRepository {
	return &messageRepository{
		messages: make(map[types.ChannelID][]*model.Message),
	}
}

// encodeCursor wraps the index of the oldest returned message. The cursor
// is opaque to clients; only this repository interprets it.
func encodeCursor(index int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(index)))
}

func decodeCursor(cursor string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, goerr.Wrap(err, "malformed cursor")
	}
	index, err := strconv.Atoi(string(raw))
	if err != nil || index < 0 {
		return 0, goerr.New("malformed cursor", goerr.V("cursor", cursor))
	}
	return index, nil
}

func (r *messageRepository) Append(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.ID == "" {
		return nil, goerr.New("message ID is required")
	}
	if msg.ChannelID == "" {
		return nil, goerr.New("channel ID is required", goerr.V("messageID", msg.ID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := msg.Clone()
	r.messages[msg.ChannelID] = append(r.messages[msg.ChannelID], created)
	return created.Clone(), nil
}

func (r *messageRepository) Get(ctx context.Context, channelID types.ChannelID, id types.MessageID) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, msg := range r.messages[channelID] {
		if msg.ID == id {
			return msg.Clone(), nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "message not found", goerr.V("id", id))
}

// List returns pages newest-first: a nil cursor yields the latest messages,
// and each page's cursor reaches the one before it. Messages within a page
// stay in chronological order.
func (r *messageRepository) List(ctx context.Context, channelID types.ChannelID, limit int, cursor *string) (*model.MessagePage, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.messages[channelID]
	end := len(history)
	if cursor != nil {
		decoded, err := decodeCursor(*cursor)
		if err != nil {
			return nil, err
		}
		if decoded < end {
			end = decoded
		}
	}

	start := end - limit
	if start < 0 {
		start = 0
	}

	page := &model.MessagePage{
		Messages: make([]*model.Message, 0, end-start),
	}
	for _, msg := range history[start:end] {
		page.Messages = append(page.Messages, msg.Clone())
	}
	if start > 0 {
		next := encodeCursor(start)
		page.Pagination = model.Pagination{NextCursor: &next, HasMore: true}
	}
	return page, nil
}

func (r *messageRepository) Delete(ctx context.Context, channelID types.ChannelID, id types.MessageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.messages[channelID]
	for i, msg := range history {
		if msg.ID == id {
			r.messages[channelID] = append(history[:i:i], history[i+1:]...)
			return nil
		}
	}
	return goerr.Wrap(ErrNotFound, "message not found", goerr.V("id", id))
}

func (r *messageRepository) SetReactions(ctx context.Context, channelID types.ChannelID, id types.MessageID, reactions map[types.ReactionKind][]types.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range r.messages[channelID] {
		if msg.ID == id {
			copied := make(map[types.ReactionKind][]types.UserID, len(reactions))
			for kind, users := range reactions {
				copied[kind] = append([]types.UserID(nil), users...)
			}
			msg.Reactions = copied
			return nil
		}
	}
	return goerr.Wrap(ErrNotFound, "message not found", goerr.V("id", id))
}
