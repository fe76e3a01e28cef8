package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Client is the chat client configuration. Values come from a TOML file
// and can be overridden per run by flags or environment variables.
type Client struct {
	configPath string

	BaseURL      string
	Username     string
	Workspace    string
	Channel      string
	StatePath    string
	PageSize     int
	AwayAfter    time.Duration
	OfflineAfter time.Duration
}

// fileConfig is the TOML shape of the client config; durations are
// strings in Go duration syntax ("5m", "30m")
type fileConfig struct {
	BaseURL      string `toml:"base_url"`
	Username     string `toml:"username"`
	Workspace    string `toml:"workspace"`
	Channel      string `toml:"channel"`
	StatePath    string `toml:"state_path"`
	PageSize     int    `toml:"page_size"`
	AwayAfter    string `toml:"away_after"`
	OfflineAfter string `toml:"offline_after"`
}

func (x *Client) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to the client TOML config file",
			Category:    "Client",
			Sources:     cli.EnvVars("WAVELENGTH_CONFIG"),
			Destination: &x.configPath,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Backend base URL",
			Category:    "Client",
			Sources:     cli.EnvVars("WAVELENGTH_BASE_URL"),
			Destination: &x.BaseURL,
		},
		&cli.StringFlag{
			Name:        "username",
			Usage:       "Username to sign in as",
			Category:    "Client",
			Sources:     cli.EnvVars("WAVELENGTH_USERNAME"),
			Destination: &x.Username,
		},
		&cli.StringFlag{
			Name:        "workspace",
			Usage:       "Workspace to join",
			Category:    "Client",
			Sources:     cli.EnvVars("WAVELENGTH_WORKSPACE"),
			Destination: &x.Workspace,
		},
		&cli.StringFlag{
			Name:        "channel",
			Usage:       "Channel to open",
			Category:    "Client",
			Sources:     cli.EnvVars("WAVELENGTH_CHANNEL"),
			Destination: &x.Channel,
		},
		&cli.StringFlag{
			Name:        "state-path",
			Usage:       "Path to the local session database",
			Category:    "Client",
			Sources:     cli.EnvVars("WAVELENGTH_STATE_PATH"),
			Destination: &x.StatePath,
		},
	}
}

func (x Client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base-url", x.BaseURL),
		slog.String("username", x.Username),
		slog.String("workspace", x.Workspace),
		slog.String("channel", x.Channel),
		slog.String("state-path", x.StatePath),
	)
}

// Load merges the TOML file (when configured) under the flag values:
// anything already set by a flag or environment variable wins.
func (x *Client) Load() error {
	if x.configPath != "" {
		data, err := os.ReadFile(x.configPath)
		if err != nil {
			return goerr.Wrap(err, "failed to read config file", goerr.V("path", x.configPath))
		}

		var raw fileConfig
		if err := toml.Unmarshal(data, &raw); err != nil {
			return goerr.Wrap(err, "failed to parse config file", goerr.V("path", x.configPath))
		}
		fromFile, err := raw.resolve()
		if err != nil {
			return goerr.Wrap(err, "invalid config file", goerr.V("path", x.configPath))
		}
		x.merge(fromFile)
	}

	if x.BaseURL == "" {
		return goerr.New("base URL is required (flag --base-url or config base_url)")
	}
	if x.Username == "" {
		return goerr.New("username is required (flag --username or config username)")
	}
	if x.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return goerr.Wrap(err, "failed to resolve home directory for state path")
		}
		x.StatePath = filepath.Join(home, ".wavelength", "session.db")
	}
	return nil
}

func (x *fileConfig) resolve() (*Client, error) {
	out := &Client{
		BaseURL:   x.BaseURL,
		Username:  x.Username,
		Workspace: x.Workspace,
		Channel:   x.Channel,
		StatePath: x.StatePath,
		PageSize:  x.PageSize,
	}
	if x.AwayAfter != "" {
		d, err := time.ParseDuration(x.AwayAfter)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid away_after", goerr.V("value", x.AwayAfter))
		}
		out.AwayAfter = d
	}
	if x.OfflineAfter != "" {
		d, err := time.ParseDuration(x.OfflineAfter)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid offline_after", goerr.V("value", x.OfflineAfter))
		}
		out.OfflineAfter = d
	}
	return out, nil
}

func (x *Client) merge(fromFile *Client) {
	if x.BaseURL == "" {
		x.BaseURL = fromFile.BaseURL
	}
	if x.Username == "" {
		x.Username = fromFile.Username
	}
	if x.Workspace == "" {
		x.Workspace = fromFile.Workspace
	}
	if x.Channel == "" {
		x.Channel = fromFile.Channel
	}
	if x.StatePath == "" {
		x.StatePath = fromFile.StatePath
	}
	if x.PageSize == 0 {
		x.PageSize = fromFile.PageSize
	}
	if x.AwayAfter == 0 {
		x.AwayAfter = fromFile.AwayAfter
	}
	if x.OfflineAfter == 0 {
		x.OfflineAfter = fromFile.OfflineAfter
	}
}
