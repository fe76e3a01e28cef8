package types

import "fmt"

// UserRole represents a member's role within a workspace
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
	UserRoleGuest UserRole = "guest"
)

// IsValid checks if the user role is valid
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleUser, UserRoleGuest:
		return true
	default:
		return false
	}
}

// String returns the string representation of the user role
func (r UserRole) String() string {
	return string(r)
}

// ParseUserRole parses a string into a UserRole
func ParseUserRole(s string) (UserRole, error) {
	role := UserRole(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid user role: %s", s)
	}
	return role, nil
}

// ChannelType represents the kind of a channel
type ChannelType string

const (
	ChannelTypeChat  ChannelType = "chat"
	ChannelTypeVoice ChannelType = "voice"
	ChannelTypeBoard ChannelType = "board"
)

// IsValid checks if the channel type is valid
func (t ChannelType) IsValid() bool {
	switch t {
	case ChannelTypeChat, ChannelTypeVoice, ChannelTypeBoard:
		return true
	default:
		return false
	}
}

// String returns the string representation of the channel type
func (t ChannelType) String() string {
	return string(t)
}
