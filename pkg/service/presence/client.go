package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/client/transport"
	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/safe"
)

// client implements interfaces.PresenceAPI over the REST backend
type client struct {
	baseURL      string
	sessionToken func() string
	httpClient   *http.Client
}

// Option configures the presence client
type Option func(*client)

// WithHTTPClient injects the HTTP client (tests)
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// New creates a presence API client. sessionToken is read per request.
func New(baseURL string, sessionToken func() string, opts ...Option) interfaces.PresenceAPI {
	c := &client{
		baseURL:      baseURL,
		sessionToken: sessionToken,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetStatus publishes a status transition as a client-authored envelope
func (c *client) SetStatus(ctx context.Context, workspaceID types.WorkspaceID, update model.StatusUpdate) error {
	env := model.NewStatusEnvelope(types.EventAuthorClient, update)
	body, err := json.Marshal(env)
	if err != nil {
		return goerr.Wrap(err, "failed to encode status envelope")
	}

	url := fmt.Sprintf("%s/api/workspace/%s/status", c.baseURL, workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to build status request", goerr.V("url", url))
	}
	req.Header.Set("Content-Type", "application/json")
	c.attachSession(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to post status", goerr.V("workspaceID", workspaceID))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("status update rejected",
			goerr.V("status", resp.StatusCode), goerr.V("workspaceID", workspaceID))
	}
	return nil
}

// ActiveUsers fetches the authoritative roster for a workspace
func (c *client) ActiveUsers(ctx context.Context, workspaceID types.WorkspaceID) ([]model.PresenceRecord, error) {
	url := fmt.Sprintf("%s/api/workspace/%s/users", c.baseURL, workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build roster request", goerr.V("url", url))
	}
	c.attachSession(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch roster", goerr.V("workspaceID", workspaceID))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("roster fetch rejected",
			goerr.V("status", resp.StatusCode), goerr.V("workspaceID", workspaceID))
	}

	var payload struct {
		Users []model.PresenceRecord `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, goerr.Wrap(err, "failed to decode roster", goerr.V("workspaceID", workspaceID))
	}
	return payload.Users, nil
}

func (c *client) attachSession(req *http.Request) {
	if token := c.sessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: transport.SessionCookieName, Value: token})
	}
}
