package config

import (
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	httpctrl "github.com/wavelength-chat/wavelength/pkg/controller/http"
)

// Server is the devserver configuration
type Server struct {
	addr          string
	jwtSecret     string
	secureCookies bool
	sessionTTL    time.Duration
	workspace     string
	channel       string
}

func (x *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Category:    "Server",
			Value:       ":8080",
			Sources:     cli.EnvVars("WAVELENGTH_ADDR"),
			Destination: &x.addr,
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "Shared secret for signing session tokens",
			Category:    "Server",
			Required:    true,
			Sources:     cli.EnvVars("WAVELENGTH_JWT_SECRET"),
			Destination: &x.jwtSecret,
		},
		&cli.BoolFlag{
			Name:        "secure-cookies",
			Usage:       "Mark session cookies Secure (requires TLS)",
			Category:    "Server",
			Sources:     cli.EnvVars("WAVELENGTH_SECURE_COOKIES"),
			Destination: &x.secureCookies,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Lifetime of issued session tokens",
			Category:    "Server",
			Value:       httpctrl.DefaultSessionTTL,
			Sources:     cli.EnvVars("WAVELENGTH_SESSION_TTL"),
			Destination: &x.sessionTTL,
		},
		&cli.StringFlag{
			Name:        "workspace",
			Usage:       "Workspace to create at startup",
			Category:    "Server",
			Value:       "wavelength",
			Sources:     cli.EnvVars("WAVELENGTH_WORKSPACE"),
			Destination: &x.workspace,
		},
		&cli.StringFlag{
			Name:        "channel",
			Usage:       "Channel to create in the startup workspace",
			Category:    "Server",
			Value:       "general",
			Sources:     cli.EnvVars("WAVELENGTH_CHANNEL"),
			Destination: &x.channel,
		},
	}
}

func (x Server) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", x.addr),
		slog.Int("jwt-secret.len", len(x.jwtSecret)),
		slog.Bool("secure-cookies", x.secureCookies),
		slog.Duration("session-ttl", x.sessionTTL),
		slog.String("workspace", x.workspace),
		slog.String("channel", x.channel),
	)
}

func (x *Server) Addr() string { return x.addr }

func (x *Server) SecureCookies() bool { return x.secureCookies }

func (x *Server) Workspace() string { return x.workspace }

func (x *Server) Channel() string { return x.channel }

// Issuer builds the session issuer from the configured secret
func (x *Server) Issuer() (*httpctrl.SessionIssuer, error) {
	return httpctrl.NewSessionIssuer([]byte(x.jwtSecret), x.sessionTTL)
}
