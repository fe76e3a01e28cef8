package beacon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wavelength-chat/wavelength/pkg/client/transport"
	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/logging"
	"github.com/wavelength-chat/wavelength/pkg/utils/safe"
)

// DefaultTimeout bounds the final delivery attempt during teardown
const DefaultTimeout = 2 * time.Second

// client delivers a last-gasp offline notification. It runs on a background
// context with its own deadline so it survives the caller's context being
// cancelled during shutdown.
type client struct {
	baseURL      string
	sessionToken func() string
	httpClient   *http.Client
	timeout      time.Duration
}

// Option configures the beacon client
type Option func(*client)

// WithHTTPClient injects the HTTP client (tests)
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithTimeout overrides the delivery deadline
func WithTimeout(timeout time.Duration) Option {
	return func(c *client) {
		c.timeout = timeout
	}
}

// New creates a beacon client
func New(baseURL string, sessionToken func() string, opts ...Option) interfaces.Beacon {
	c := &client{
		baseURL:      baseURL,
		sessionToken: sessionToken,
		httpClient:   http.DefaultClient,
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyOffline posts the offline transition. Failures are logged and
// swallowed; there is nothing left to retry from.
func (c *client) NotifyOffline(workspaceID types.WorkspaceID, update model.StatusUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	env := model.NewStatusEnvelope(types.EventAuthorClient, update)
	body, err := json.Marshal(env)
	if err != nil {
		logging.Default().Warn("failed to encode offline beacon", "error", err)
		return
	}

	url := fmt.Sprintf("%s/api/workspace/%s/status", c.baseURL, workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logging.Default().Warn("failed to build offline beacon", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.sessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: transport.SessionCookieName, Value: token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Default().Warn("offline beacon delivery failed", "error", err, "workspaceID", workspaceID)
		return
	}
	safe.Close(ctx, resp.Body)
}
