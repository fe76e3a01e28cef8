package model

import (
	"time"

	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// DefaultGroupWindow is the maximum gap between two consecutive messages of
// the same author for them to render as a single visual group
const DefaultGroupWindow = 2 * time.Minute

// Message represents a single chat message in a channel
type Message struct {
	ID          types.MessageID                       `json:"id"`
	ChannelID   types.ChannelID                       `json:"channelId"`
	WorkspaceID types.WorkspaceID                     `json:"workspaceId"`
	Author      User                                  `json:"author"`
	Content     string                                `json:"content"`
	SentAt      time.Time                             `json:"sent"`
	Reactions   map[types.ReactionKind][]types.UserID `json:"reactions,omitempty"`
	ReplyTo     *types.MessageID                      `json:"replyTo,omitempty"`
	Pinned      bool                                  `json:"pinned,omitempty"`
}

// Clone returns a deep copy of the message
func (m *Message) Clone() *Message {
	copied := *m
	if m.Reactions != nil {
		copied.Reactions = make(map[types.ReactionKind][]types.UserID, len(m.Reactions))
		for kind, users := range m.Reactions {
			copied.Reactions[kind] = append([]types.UserID(nil), users...)
		}
	}
	if m.ReplyTo != nil {
		replyTo := *m.ReplyTo
		copied.ReplyTo = &replyTo
	}
	return &copied
}

// SameGroup reports whether cur belongs to the same visual group as prev.
// It is a pure function of the two messages and must be recomputed on
// render, never stored: the grouping of a message changes when older pages
// are prepended before it.
func SameGroup(prev, cur *Message, window time.Duration) bool {
	if prev == nil || cur == nil {
		return false
	}
	if cur.ReplyTo != nil {
		return false
	}
	if prev.Author.ID != cur.Author.ID {
		return false
	}
	return cur.SentAt.Sub(prev.SentAt) >= 0 && cur.SentAt.Sub(prev.SentAt) < window
}
