package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/wavelength-chat/wavelength/pkg/cli/config"
	httpctrl "github.com/wavelength-chat/wavelength/pkg/controller/http"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
	"github.com/wavelength-chat/wavelength/pkg/repository/memory"
	"github.com/wavelength-chat/wavelength/pkg/usecase"
	"github.com/wavelength-chat/wavelength/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var serverCfg config.Server

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the reference sync backend",
		Flags:   serverCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logging.Default().Info("Configuring server", "server", serverCfg)

			repo := memory.New()
			if err := seedWorkspace(ctx, repo, serverCfg.Workspace(), serverCfg.Channel()); err != nil {
				return goerr.Wrap(err, "failed to seed initial workspace")
			}

			hub := httpctrl.NewHub()
			uc := usecase.New(repo, usecase.WithPublisher(hub))

			issuer, err := serverCfg.Issuer()
			if err != nil {
				return goerr.Wrap(err, "failed to configure session issuer")
			}

			srv, err := httpctrl.New(uc, hub, issuer,
				httpctrl.WithSecureCookies(serverCfg.SecureCookies()),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}

			server := &http.Server{
				Addr:              serverCfg.Addr(),
				Handler:           srv,
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server",
					"addr", serverCfg.Addr(),
					"workspace", serverCfg.Workspace(),
					"channel", serverCfg.Channel(),
				)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}

// seedWorkspace creates the default workspace and channel so a fresh
// server is immediately usable by clients.
func seedWorkspace(ctx context.Context, repo *memory.Memory, workspace, channel string) error {
	ws, err := repo.Workspaces().Create(ctx, &model.Workspace{
		ID:        types.WorkspaceID(workspace),
		Name:      workspace,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	if _, err := repo.Workspaces().CreateChannel(ctx, &model.Channel{
		ID:          types.ChannelID(channel),
		WorkspaceID: ws.ID,
		Name:        channel,
		Type:        types.ChannelTypeChat,
		CreatedAt:   time.Now(),
	}); err != nil {
		return err
	}
	return nil
}
