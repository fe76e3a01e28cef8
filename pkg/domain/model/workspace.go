package model

import (
	"time"

	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// Membership ties a user to a workspace with a role
type Membership struct {
	UserID types.UserID   `json:"userId"`
	Role   types.UserRole `json:"role"`
}

// Workspace represents a workspace's identity and member list
type Workspace struct {
	ID        types.WorkspaceID `json:"id"`
	Name      string            `json:"name"`
	Icon      string            `json:"icon,omitempty"`
	CreatedAt time.Time         `json:"creationDate"`
	Members   []Membership      `json:"members,omitempty"`
}

// Channel represents a channel within a workspace
type Channel struct {
	ID          types.ChannelID   `json:"id"`
	WorkspaceID types.WorkspaceID `json:"workspace"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Type        types.ChannelType `json:"type"`
	CreatedAt   time.Time         `json:"creationDate"`
	Members     []types.UserID    `json:"members,omitempty"`
}
