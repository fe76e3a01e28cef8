package message

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/client/transport"
	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/utils/safe"
)

// client implements interfaces.MessageAPI over the REST backend
type client struct {
	baseURL      string
	sessionToken func() string
	httpClient   *http.Client
}

// Option configures the message client
type Option func(*client)

// WithHTTPClient injects the HTTP client (tests)
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// New creates a message API client. sessionToken is read per request.
func New(baseURL string, sessionToken func() string, opts ...Option) interfaces.MessageAPI {
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

// Send posts a message and returns the server-assigned ID. The client-side
// temporary ID in msg.ID is never sent.
func (c *client) Send(ctx context.Context, msg *model.Message) (types.MessageID, error) {
	outbound := msg.Clone()
	outbound.ID = ""
	body, err := json.Marshal(outbound)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode message")
	}

	endpoint := fmt.Sprintf("%s/api/channel/%s/messages", c.baseURL, msg.ChannelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build send request", goerr.V("url", endpoint))
	}
	req.Header.Set("Content-Type", "application/json")
	c.attachSession(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to send message", goerr.V("channelID", msg.ChannelID))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", goerr.New("message send rejected",
			goerr.V("status", resp.StatusCode), goerr.V("channelID", msg.ChannelID))
	}

	var payload struct {
		ID types.MessageID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", goerr.Wrap(err, "failed to decode send response")
	}
	if payload.ID == "" {
		return "", goerr.New("send response missing message ID")
	}
	return payload.ID, nil
}

// List fetches a page of channel history; a nil cursor means the newest page
func (c *client) List(ctx context.Context, channelID types.ChannelID, limit int, cursor *string) (*model.MessagePage, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != nil {
		query.Set("cursor", *cursor)
	}

	endpoint := fmt.Sprintf("%s/api/channel/%s/messages", c.baseURL, channelID)
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build list request", goerr.V("url", endpoint))
	}
	c.attachSession(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list messages", goerr.V("channelID", channelID))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("message list rejected",
			goerr.V("status", resp.StatusCode), goerr.V("channelID", channelID))
	}

	var page model.MessagePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, goerr.Wrap(err, "failed to decode message page", goerr.V("channelID", channelID))
	}
	return &page, nil
}

// Delete removes a message by ID
func (c *client) Delete(ctx context.Context, channelID types.ChannelID, id types.MessageID) error {
	endpoint := fmt.Sprintf("%s/api/channel/%s/messages/%s", c.baseURL, channelID, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build delete request", goerr.V("url", endpoint))
	}
	c.attachSession(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to delete message", goerr.V("messageID", id))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("message delete rejected",
			goerr.V("status", resp.StatusCode), goerr.V("messageID", id))
	}
	return nil
}

// ToggleReaction toggles the local user's reaction of the given kind
func (c *client) ToggleReaction(ctx context.Context, channelID types.ChannelID, id types.MessageID, kind types.ReactionKind) error {
	body, err := json.Marshal(map[string]string{"kind": string(kind)})
	if err != nil {
		return goerr.Wrap(err, "failed to encode reaction")
	}

	endpoint := fmt.Sprintf("%s/api/channel/%s/messages/%s/reactions", c.baseURL, channelID, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to build reaction request", goerr.V("url", endpoint))
	}
	req.Header.Set("Content-Type", "application/json")
	c.attachSession(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to toggle reaction", goerr.V("messageID", id))
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("reaction toggle rejected",
			goerr.V("status", resp.StatusCode), goerr.V("messageID", id))
	}
	return nil
}

func (c *client) attachSession(req *http.Request) {
	if token := c.sessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: transport.SessionCookieName, Value: token})
	}
}
