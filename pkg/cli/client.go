package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/wavelength-chat/wavelength/pkg/cli/config"
	"github.com/wavelength-chat/wavelength/pkg/client"
	"github.com/wavelength-chat/wavelength/pkg/client/timeline"
	"github.com/wavelength-chat/wavelength/pkg/client/transport"
	httpctrl "github.com/wavelength-chat/wavelength/pkg/controller/http"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/service/beacon"
	"github.com/wavelength-chat/wavelength/pkg/service/message"
	"github.com/wavelength-chat/wavelength/pkg/service/presence"
	"github.com/wavelength-chat/wavelength/pkg/service/usercache"
	"github.com/wavelength-chat/wavelength/pkg/session"
	"github.com/wavelength-chat/wavelength/pkg/utils/logging"
	"github.com/wavelength-chat/wavelength/pkg/utils/safe"
)

func cmdClient() *cli.Command {
	var clientCfg config.Client

	return &cli.Command{
		Name:    "client",
		Aliases: []string{"c"},
		Usage:   "Start the interactive terminal client",
		Flags:   clientCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := clientCfg.Load(); err != nil {
				return err
			}
			logging.Default().Info("Configuring client", "client", clientCfg)

			store, err := session.Open(clientCfg.StatePath)
			if err != nil {
				return goerr.Wrap(err, "failed to open session store")
			}
			defer safe.Close(ctx, store)

			state, err := resumeOrLogin(ctx, store, &clientCfg)
			if err != nil {
				return err
			}

			return runClient(ctx, store, state, &clientCfg)
		},
	}
}

// resumeOrLogin restores the saved session when it matches the requested
// backend and user, otherwise signs in again and persists the result.
// Scope resolution order: flags and config file, then the saved session,
// then the server seed defaults.
func resumeOrLogin(ctx context.Context, store *session.Store, cfg *config.Client) (*session.State, error) {
	// tokens older than the server session TTL would be rejected anyway
	saved, loadErr := store.Load(ctx)
	resumable := loadErr == nil && saved.BaseURL == cfg.BaseURL &&
		saved.Username == cfg.Username && saved.Token != "" &&
		time.Since(saved.UpdatedAt) < httpctrl.DefaultSessionTTL

	if resumable {
		if cfg.Workspace == "" {
			cfg.Workspace = string(saved.WorkspaceID)
		}
		if cfg.Channel == "" {
			cfg.Channel = string(saved.ChannelID)
		}
	}
	if cfg.Workspace == "" {
		cfg.Workspace = "wavelength"
	}
	if cfg.Channel == "" {
		cfg.Channel = "general"
	}

	if resumable {
		logging.Default().Info("Resuming saved session", "username", saved.Username)
		return saved, nil
	}

	user, token, err := login(ctx, cfg.BaseURL, cfg.Username, types.WorkspaceID(cfg.Workspace))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to sign in", goerr.V("base_url", cfg.BaseURL))
	}

	state := &session.State{
		Username:    user.Username,
		UserID:      user.ID,
		Token:       token,
		BaseURL:     cfg.BaseURL,
		WorkspaceID: types.WorkspaceID(cfg.Workspace),
		ChannelID:   types.ChannelID(cfg.Channel),
	}
	if err := store.Save(ctx, state); err != nil {
		return nil, goerr.Wrap(err, "failed to save session")
	}
	return state, nil
}

// login signs in to the backend and returns the user record and the
// session token set by the server.
func login(ctx context.Context, baseURL, username string, workspaceID types.WorkspaceID) (*model.User, string, error) {
	body, err := json.Marshal(map[string]any{
		"username":  username,
		"workspace": workspaceID,
	})
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to encode login request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(baseURL, "/")+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", goerr.Wrap(err, "login request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", goerr.New("login rejected", goerr.V("status", resp.StatusCode))
	}

	var user model.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, "", goerr.Wrap(err, "failed to decode login response")
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == transport.SessionCookieName {
			return &user, cookie.Value, nil
		}
	}
	return nil, "", goerr.New("login response carried no session cookie")
}

func runClient(ctx context.Context, store *session.Store, state *session.State, cfg *config.Client) error {
	var (
		authorColor = color.New(color.FgCyan, color.Bold)
		statusColor = color.New(color.FgYellow)
		noticeColor = color.New(color.FgGreen)
		errorColor  = color.New(color.FgRed)
	)

	token := func() string { return state.Token }
	users := usercache.New(cfg.BaseURL, token)

	// best effort: fall back to the raw ID when the profile lookup fails
	displayName := func(ctx context.Context, id types.UserID) string {
		user, err := users.GetUser(ctx, id)
		if err != nil {
			return string(id)
		}
		return user.Username
	}

	engine, err := client.New(client.Config{
		Self: model.User{
			ID:       state.UserID,
			Username: state.Username,
		},
		WorkspaceID:  types.WorkspaceID(cfg.Workspace),
		ChannelID:    types.ChannelID(cfg.Channel),
		PageSize:     cfg.PageSize,
		Presence:     presence.New(cfg.BaseURL, token),
		Messages:     message.New(cfg.BaseURL, token),
		Dialer:       transport.NewDialer(cfg.BaseURL, token),
		Beacon:       beacon.New(cfg.BaseURL, token),
		AwayAfter:    cfg.AwayAfter,
		OfflineAfter: cfg.OfflineAfter,
		OnMessage: func(msg *model.Message) {
			fmt.Printf("%s %s\n", authorColor.Sprintf("<%s>", msg.Author.Username), msg.Content)
		},
		OnStatus: func(update model.StatusUpdate) {
			statusColor.Printf("* %s is now %s\n", displayName(ctx, update.UserID), update.Status)
		},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to assemble sync engine")
	}

	if err := engine.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start sync engine")
	}
	defer func() {
		if err := engine.Shutdown(context.Background()); err != nil {
			logging.Default().Warn("engine shutdown failed", "error", err)
		}
	}()

	printTimeline(engine, authorColor)
	noticeColor.Printf("Connected to %s as %s (workspace=%s channel=%s)\n",
		cfg.BaseURL, state.Username, cfg.Workspace, cfg.Channel)
	noticeColor.Println("Commands: /send <text>, /status <online|away|busy|offline>, /older, /channel <id>, /roster, /focus, /blur, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// any keystroke counts as user activity
		engine.Activity().Touch(ctx)

		if !strings.HasPrefix(line, "/") {
			line = "/send " + line
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch cmd {
		case "/quit":
			return saveState(ctx, store, state, engine)

		case "/send":
			if rest == "" {
				errorColor.Println("usage: /send <text>")
				continue
			}
			if _, err := engine.Timeline().SendOptimistic(ctx, timeline.Draft{Content: rest}); err != nil {
				errorColor.Printf("send failed: %v\n", err)
			}

		case "/status":
			status, err := types.ParseUserStatus(rest)
			if err != nil {
				errorColor.Printf("invalid status %q\n", rest)
				continue
			}
			if err := engine.Status().SetStatus(ctx, status); err != nil {
				errorColor.Printf("status change failed: %v\n", err)
			}

		case "/older":
			if !engine.Timeline().HasMore() {
				noticeColor.Println("no older messages")
				continue
			}
			if err := engine.Timeline().LoadOlder(ctx, cfg.PageSize); err != nil {
				errorColor.Printf("failed to load older messages: %v\n", err)
				continue
			}
			printTimeline(engine, authorColor)

		case "/channel":
			if rest == "" {
				errorColor.Println("usage: /channel <id>")
				continue
			}
			if err := engine.SwitchChannel(ctx, types.ChannelID(rest)); err != nil {
				errorColor.Printf("channel switch failed: %v\n", err)
				continue
			}
			cfg.Channel = rest
			printTimeline(engine, authorColor)

		case "/roster":
			for _, record := range engine.Presence().Query(types.WorkspaceID(cfg.Workspace)) {
				statusColor.Printf("  %-7s %s\n", record.Status, displayName(ctx, record.UserID))
			}

		case "/focus":
			engine.Activity().Focus(ctx)

		case "/blur":
			engine.Activity().Blur(ctx)

		default:
			errorColor.Printf("unknown command %q\n", cmd)
		}
	}
	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read input")
	}

	return saveState(ctx, store, state, engine)
}

func printTimeline(engine *client.Engine, authorColor *color.Color) {
	for _, msg := range engine.Timeline().Snapshot() {
		fmt.Printf("%s %s %s\n",
			msg.SentAt.Format(time.Kitchen),
			authorColor.Sprintf("<%s>", msg.Author.Username),
			msg.Content,
		)
	}
}

func saveState(ctx context.Context, store *session.Store, state *session.State, engine *client.Engine) error {
	state.WorkspaceID = engine.Timeline().WorkspaceID()
	state.ChannelID = engine.Timeline().ChannelID()
	if err := store.Save(ctx, state); err != nil {
		return goerr.Wrap(err, "failed to persist session state")
	}
	return nil
}
