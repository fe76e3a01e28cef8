package http

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// SessionCookieName is the cookie carrying the signed session token
const SessionCookieName = "wl_session"

// DefaultSessionTTL bounds how long an issued session stays valid
const DefaultSessionTTL = 24 * time.Hour

// SessionIssuer signs and verifies HS256 session tokens
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates an issuer from a shared secret
func NewSessionIssuer(secret []byte, ttl time.Duration) (*SessionIssuer, error) {
	if len(secret) == 0 {
		return nil, goerr.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a session token for a user
func (s *SessionIssuer) Issue(user *model.User) (string, error) {
	now := s.now()
	token, err := jwt.NewBuilder().
		Subject(user.ID.String()).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim("username", user.Username).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build session token")
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign session token")
	}
	return string(signed), nil
}

// Verify parses a session token and returns the user ID it was issued for.
// A small clock skew is tolerated.
func (s *SessionIssuer) Verify(raw string) (types.UserID, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(10*time.Second),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to verify session token")
	}
	if token.Subject() == "" {
		return "", goerr.New("session token has no subject")
	}
	return types.UserID(token.Subject()), nil
}

type ctxUserKey struct{}

func ctxWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, user)
}

func userFromCtx(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxUserKey{}).(*model.User)
	return user
}
