package types

import (
	"strings"

	"github.com/google/uuid"
)

// UserID identifies a user
type UserID string

// String returns the string representation of the user ID
func (id UserID) String() string {
	return string(id)
}

// NewUserID generates a new UUID v4 UserID
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

// WorkspaceID identifies a workspace
type WorkspaceID string

// String returns the string representation of the workspace ID
func (id WorkspaceID) String() string {
	return string(id)
}

// ChannelID identifies a channel within a workspace
type ChannelID string

// String returns the string representation of the channel ID
func (id ChannelID) String() string {
	return string(id)
}

// MessageID identifies a message. Messages created locally carry a
// temporary "local-" prefixed ID until the server acknowledges the send.
type MessageID string

// localIDPrefix marks client-generated message IDs pending server confirmation
const localIDPrefix = "local-"

// NewMessageID generates a new server-side UUID v4 MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// NewLocalMessageID generates a temporary client-side MessageID
func NewLocalMessageID() MessageID {
	return MessageID(localIDPrefix + uuid.New().String())
}

// IsLocal reports whether the message ID is a client-generated temporary ID
func (id MessageID) IsLocal() bool {
	return strings.HasPrefix(string(id), localIDPrefix)
}

// String returns the string representation of the message ID
func (id MessageID) String() string {
	return string(id)
}

// ReactionKind identifies a reaction emoji/kind on a message
type ReactionKind string

// String returns the string representation of the reaction kind
func (k ReactionKind) String() string {
	return string(k)
}
