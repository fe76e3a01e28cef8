package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"

	"github.com/wavelength-chat/wavelength/pkg/domain/interfaces"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// SessionCookieName is the cookie carrying the session token
const SessionCookieName = "wl_session"

// Dialer opens credentialed SSE subscriptions against the backend
type Dialer struct {
	baseURL      string
	sessionToken func() string
	httpClient   *http.Client
}

// DialerOption configures a Dialer
type DialerOption func(*Dialer)

// WithHTTPClient injects the HTTP client (tests)
func WithHTTPClient(client *http.Client) DialerOption {
	return func(d *Dialer) {
		d.httpClient = client
	}
}

// NewDialer creates a Dialer. sessionToken is called per dial so a
// refreshed session is picked up on reconnect.
func NewDialer(baseURL string, sessionToken func() string, opts ...DialerOption) *Dialer {
	d := &Dialer{
		baseURL:      baseURL,
		sessionToken: sessionToken,
		// Push streams stay open indefinitely; no client timeout
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial opens the push-event stream for one workspace scope
func (d *Dialer) Dial(ctx context.Context, workspaceID types.WorkspaceID) (interfaces.Stream, error) {
	url := fmt.Sprintf("%s/api/workspace/%s/events", d.baseURL, workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build stream request", goerr.V("url", url))
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token := d.sessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open stream", goerr.V("workspaceID", workspaceID))
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, goerr.New("unexpected stream status",
			goerr.V("status", resp.StatusCode), goerr.V("workspaceID", workspaceID))
	}

	return &sseStream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// sseStream parses Server-Sent Events into envelopes
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

// Next reads SSE fields until a blank line completes an event, then
// decodes the accumulated data as an envelope. Comment lines and fields
// other than data (id:, retry:, event:) are skipped.
func (s *sseStream) Next(ctx context.Context) (*model.Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, err := s.readEvent()
		if err != nil {
			return nil, err
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, goerr.Wrap(model.ErrUnknownEnvelope, "undecodable event data", goerr.V("cause", err.Error()))
		}
		return &env, nil
	}
}

func (s *sseStream) readEvent() ([]byte, error) {
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
