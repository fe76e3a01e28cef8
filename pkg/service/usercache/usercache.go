package usercache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/client/transport"
	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/safe"
)

// DefaultTTL is how long a fetched profile stays fresh
const DefaultTTL = 5 * time.Minute

// cacheEntry holds a cached profile with expiration
type cacheEntry struct {
	user      model.User
	expiresAt time.Time
}

// client implements interfaces.UserAPI with a read-through TTL cache over
// the REST user endpoint. Profiles rarely change; a short TTL keeps
// renames visible without hammering the backend on every render.
type client struct {
	baseURL      string
	sessionToken func() string
	httpClient   *http.Client
	ttl          time.Duration
	now          func() time.Time

	mu    sync.RWMutex
	cache map[types.UserID]cacheEntry
}

// Option configures the user cache
type Option func(*client)

// WithHTTPClient injects the HTTP client (tests)
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithTTL overrides the cache TTL
func WithTTL(ttl time.Duration) Option {
	return func(c *client) {
		c.ttl = ttl
	}
}

// WithClock injects the time source (tests)
func WithClock(now func() time.Time) Option {
	return func(c *client) {
		c.now = now
	}
}

// New creates a cached user API client
func New(baseURL string, sessionToken func() string, opts ...Option) interfaces.UserAPI {
	c := &client{
		baseURL:      baseURL,
		sessionToken: sessionToken,
		httpClient:   http.DefaultClient,
		ttl:          DefaultTTL,
		now:          time.Now,
		cache:        make(map[types.UserID]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetUser returns the profile for a user, served from cache while fresh
func (c *client) GetUser(ctx context.Context, userID types.UserID) (*model.User, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.cache[userID]
	c.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		user := entry.user
		return &user, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the write lock
	if entry, ok := c.cache[userID]; ok && entry.expiresAt.After(now) {
		user := entry.user
		return &user, nil
	}

	user, err := c.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache[userID] = cacheEntry{user: *user, expiresAt: now.Add(c.ttl)}
	return user, nil
}

func (c *client) fetch(ctx context.Context, userID types.UserID) (*model.User, error) {
	url := fmt.Sprintf("%s/api/user/%s", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build user request", goerr.V("url", url))
	}
	if token := c.sessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: transport.SessionCookieName, Value: token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch user", goerr.V("userID", userID))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("user fetch rejected",
			goerr.V("status", resp.StatusCode), goerr.V("userID", userID))
	}

	var user model.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user", goerr.V("userID", userID))
	}
	return &user, nil
}
