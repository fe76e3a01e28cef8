package types

import "fmt"

// UserStatus represents a user's live availability state within a workspace
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusAway    UserStatus = "away"
	UserStatusBusy    UserStatus = "busy"
	UserStatusOffline UserStatus = "offline"
)

// AllUserStatuses returns all valid user statuses
func AllUserStatuses() []UserStatus {
	return []UserStatus{
		UserStatusOnline,
		UserStatusAway,
		UserStatusBusy,
		UserStatusOffline,
	}
}

// IsValid checks if the user status is valid
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusOnline,
		UserStatusAway,
		UserStatusBusy,
		UserStatusOffline:
		return true
	default:
		return false
	}
}

// String returns the string representation of the user status
func (s UserStatus) String() string {
	return string(s)
}

// ParseUserStatus parses a string into a UserStatus
func ParseUserStatus(s string) (UserStatus, error) {
	status := UserStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid user status: %s", s)
	}
	return status, nil
}
