package usecase

import "errors"

// Sentinel errors for use case layer
var (
	ErrChannelNotFound   = errors.New("channel not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")

	ErrNotMember    = errors.New("user is not a workspace member")
	ErrAccessDenied = errors.New("access denied")

	ErrEmptyContent  = errors.New("message content is empty")
	ErrInvalidStatus = errors.New("invalid user status")
)
