package memory

import (
	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
)

// ErrNotFound is returned when an entity does not exist
var ErrNotFound = goerr.New("not found")

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	users      *userRepository
	workspaces *workspaceRepository
	messages   *messageRepository
	presence   *presenceRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		users:      newUserRepository(),
		workspaces: newWorkspaceRepository(),
		messages:   newMessageRepository(),
		presence:   newPresenceRepository(),
	}
}

func (m *Memory) Users() interfaces.UserRepository {
	return m.users
}

func (m *Memory) Workspaces() interfaces.WorkspaceRepository {
	return m.workspaces
}

func (m *Memory) Messages() interfaces.MessageRepository {
	return m.messages
}

func (m *Memory) Presence() interfaces.PresenceRepository {
	return m.presence
}
