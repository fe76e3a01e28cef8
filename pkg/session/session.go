// Package session persists the signed-in client state between runs.
package session

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

// ErrNoSession is returned when no session has been saved yet
var ErrNoSession = goerr.New("no stored session")

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	username TEXT NOT NULL,
	user_id TEXT NOT NULL,
	token TEXT NOT NULL,
	base_url TEXT NOT NULL,
	workspace_id TEXT NOT NULL DEFAULT '',
	channel_id TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
`

// State is the persisted client session
type State struct {
	Username    string
	UserID      types.UserID
	Token       string
	BaseURL     string
	WorkspaceID types.WorkspaceID
	ChannelID   types.ChannelID
	UpdatedAt   time.Time
}

// Store keeps the session state in a local SQLite database
type Store struct {
	db *sql.DB
}

// Open creates or opens the session database at path, creating parent
// directories as needed
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, goerr.Wrap(err, "failed to create session directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open session database", goerr.V("path", path))
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize session schema", goerr.V("path", path))
	}
	return &Store{db: db}, nil
}

// Load returns the stored session, or ErrNoSession when none exists
func (s *Store) Load(ctx context.Context) (*State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT username, user_id, token, base_url, workspace_id, channel_id, updated_at
		FROM session WHERE id = 1`)

	var state State
	var updatedAt int64
	err := row.Scan(&state.Username, &state.UserID, &state.Token,
		&state.BaseURL, &state.WorkspaceID, &state.ChannelID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load session")
	}
	state.UpdatedAt = time.UnixMilli(updatedAt)
	return &state, nil
}

// Save upserts the single session row
func (s *Store) Save(ctx context.Context, state *State) error {
	if state.Username == "" || state.Token == "" {
		return goerr.New("username and token are required")
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, username, user_id, token, base_url, workspace_id, channel_id, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			user_id = excluded.user_id,
			token = excluded.token,
			base_url = excluded.base_url,
			workspace_id = excluded.workspace_id,
			channel_id = excluded.channel_id,
			updated_at = excluded.updated_at`,
		state.Username, state.UserID, state.Token, state.BaseURL,
		state.WorkspaceID, state.ChannelID, updatedAt.UnixMilli())
	if err != nil {
		return goerr.Wrap(err, "failed to save session")
	}
	return nil
}

// Clear removes the stored session
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE id = 1"); err != nil {
		return goerr.Wrap(err, "failed to clear session")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
