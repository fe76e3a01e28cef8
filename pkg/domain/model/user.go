package model

import (
	"time"

	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// User represents a user's profile as shared across a workspace
type User struct {
	ID          types.UserID     `json:"id"`
	Username    string           `json:"username"`
	Description string           `json:"description,omitempty"`
	AvatarURL   string           `json:"avatarUrl,omitempty"`
	AccentColor string           `json:"accentColour,omitempty"`
	Status      types.UserStatus `json:"status"`
	CreatedAt   time.Time        `json:"creationDate"`
}

// PresenceRecord is the per-workspace view of a user's availability
type PresenceRecord struct {
	UserID types.UserID     `json:"userId"`
	Status types.UserStatus `json:"status"`
}
