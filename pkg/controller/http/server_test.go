package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/wavelength-chat/wavelength/pkg/client/transport"
	controller "github.com/wavelength-chat/wavelength/pkg/controller/http"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/repository/memory"
	"github.com/wavelength-chat/wavelength/pkg/service/message"
	"github.com/wavelength-chat/wavelength/pkg/service/presence"
	"github.com/wavelength-chat/wavelength/pkg/usecase"
)

type testEnv struct {
	server *httptest.Server
	repo   *memory.Memory
	uc     *usecase.UseCases
	hub    *controller.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.New()
	hub := controller.NewHub()
	uc := usecase.New(repo, usecase.WithPublisher(hub))

	issuer, err := controller.NewSessionIssuer([]byte("test-secret-key"), time.Hour)
	gt.NoError(t, err).Required()

	srv, err := controller.New(uc, hub, issuer)
	gt.NoError(t, err).Required()

	server := httptest.NewServer(srv)
	t.Cleanup(server.Close)

	ctx := context.Background()
	_, err = repo.Workspaces().Create(ctx, &model.Workspace{ID: "ws1", Name: "Wavelength"})
	gt.NoError(t, err).Required()
	_, err = repo.Workspaces().CreateChannel(ctx, &model.Channel{ID: "general", WorkspaceID: "ws1", Name: "general"})
	gt.NoError(t, err).Required()

	return &testEnv{server: server, repo: repo, uc: uc, hub: hub}
}

// login signs a user in through the REST surface and returns the session token
func (e *testEnv) login(t *testing.T, username string) (*model.User, string) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "workspace": "ws1"})
	resp, err := e.server.Client().Post(e.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	gt.Value(t, resp.StatusCode).Equal(nethttp.StatusOK)

	var user model.User
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&user)).Required()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == controller.SessionCookieName {
			return &user, cookie.Value
		}
	}
	t.Fatal("no session cookie issued")
	return nil, ""
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.login(t, "ada")
	gt.Value(t, user.Username).Equal("ada")
	gt.B(t, token != "").True()

	req, _ := nethttp.NewRequest(nethttp.MethodGet, env.server.URL+"/api/auth/me", nil)
	req.AddCookie(&nethttp.Cookie{Name: controller.SessionCookieName, Value: token})
	resp, err := env.server.Client().Do(req)
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	gt.Value(t, resp.StatusCode).Equal(nethttp.StatusOK)

	var me model.User
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	gt.Value(t, me.ID).Equal(user.ID)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.Client().Get(env.server.URL + "/api/workspace/ws1/users")
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	gt.Value(t, resp.StatusCode).Equal(nethttp.StatusUnauthorized)

	req, _ := nethttp.NewRequest(nethttp.MethodGet, env.server.URL+"/api/auth/me", nil)
	req.AddCookie(&nethttp.Cookie{Name: controller.SessionCookieName, Value: "garbage"})
	resp, err = env.server.Client().Do(req)
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	gt.Value(t, resp.StatusCode).Equal(nethttp.StatusUnauthorized)
}

func TestStatusIdentityEnforced(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.login(t, "ada")

	api := presence.New(env.server.URL, func() string { return token },
		presence.WithHTTPClient(env.server.Client()))

	// The spoofed user ID in the payload is replaced by the session identity
	err := api.SetStatus(context.Background(), "ws1", model.StatusUpdate{
		UserID: "someone-else", Status: types.UserStatusBusy, Timestamp: time.Now().UnixMilli(),
	})
	gt.NoError(t, err).Required()

	roster, err := api.ActiveUsers(context.Background(), "ws1")
	gt.NoError(t, err).Required()
	gt.Array(t, roster).Length(1)
	gt.Value(t, roster[0].UserID).Equal(user.ID)
	gt.Value(t, roster[0].Status).Equal(types.UserStatusBusy)
}

func TestMessageRESTRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.login(t, "ada")

	api := message.New(env.server.URL, func() string { return token },
		message.WithHTTPClient(env.server.Client()))
	ctx := context.Background()

	id, err := api.Send(ctx, &model.Message{
		ID:        types.NewLocalMessageID(),
		ChannelID: "general",
		Author:    *user,
		Content:   "first",
		SentAt:    time.Now(),
	})
	gt.NoError(t, err).Required()
	gt.B(t, id.IsLocal()).False()

	gt.NoError(t, api.ToggleReaction(ctx, "general", id, "wave"))

	page, err := api.List(ctx, "general", 10, nil)
	gt.NoError(t, err).Required()
	gt.Array(t, page.Messages).Length(1)
	gt.Value(t, page.Messages[0].ID).Equal(id)
	gt.Array(t, page.Messages[0].Reactions["wave"]).Equal([]types.UserID{user.ID})
	gt.B(t, page.Pagination.HasMore).False()

	gt.NoError(t, api.Delete(ctx, "general", id))
	page, err = api.List(ctx, "general", 10, nil)
	gt.NoError(t, err).Required()
	gt.Array(t, page.Messages).Length(0)
}

func TestSSEFanOut(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.login(t, "ada")

	dialer := transport.NewDialer(env.server.URL, func() string { return token },
		transport.WithHTTPClient(env.server.Client()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := dialer.Dial(ctx, "ws1")
	gt.NoError(t, err).Required()
	defer stream.Close()

	// Subscription opens with a welcome event
	env.waitForSubscriber(t, "ws1")
	env2, err := stream.Next(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, env2.Event.Type).Equal(types.EventTypeWelcome)

	// A message posted through the use case reaches the subscriber
	posted, err := env.uc.Chat.PostMessage(ctx, user, usecase.PostDraft{ChannelID: "general", Content: "live"})
	gt.NoError(t, err).Required()

	env2, err = stream.Next(ctx)
	gt.NoError(t, err).Required()
	event, err := env2.Classify()
	gt.NoError(t, err).Required()
	live := gt.Cast[model.MessageEvent](t, event)
	gt.Value(t, live.Message.ID).Equal(posted.ID)
	gt.Value(t, live.Message.Content).Equal("live")
}

func (e *testEnv) waitForSubscriber(t *testing.T, workspaceID types.WorkspaceID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.hub.SubscriberCount(workspaceID) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscriber never registered")
}
