package usecase

import (
	"time"

	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
)

type UseCases struct {
	repo      interfaces.Repository
	publisher interfaces.Publisher
	now       func() time.Time

	Chat     *ChatUseCase
	Presence *PresenceUseCase
	Auth     *AuthUseCase
}

type Option func(*UseCases)

// WithPublisher connects the push-event fan-out; without it mutations
// still apply but nothing is broadcast
func WithPublisher(publisher interfaces.Publisher) Option {
	return func(uc *UseCases) {
		uc.publisher = publisher
	}
}

// WithClock injects the time source (tests)
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}

	uc.Chat = &ChatUseCase{repo: repo, publisher: uc.publisher, now: uc.now}
	uc.Presence = &PresenceUseCase{repo: repo, publisher: uc.publisher}
	uc.Auth = &AuthUseCase{repo: repo, publisher: uc.publisher, now: uc.now}
	return uc
}
