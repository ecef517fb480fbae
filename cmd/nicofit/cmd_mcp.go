package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/nicoschmidtj/nicofit2/internal/mcp"
	"github.com/nicoschmidtj/nicofit2/internal/storage"
)

func newMCPCmd(configPath *string) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the workout tools over MCP on stdin/stdout",
		Long: `mcp runs a Model Context Protocol server on stdio. By default it reads the
local state; --remote queries the mirror server's read API instead, which
needs remote.backend: http.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ds, err := dataSource(ctx, a, remote)
			if err != nil {
				return err
			}

			user := a.store.UserID(ctx)
			s := server.NewStdioServer(mcp.New(ds, a.catalog, Version, a.log))
			s.SetErrorLogger(slog.NewLogLogger(a.log.Handler(), slog.LevelError))
			s.SetContextFunc(func(ctx context.Context) context.Context {
				return mcp.WithUserID(ctx, user)
			})

			a.log.Info("mcp server listening on stdio", "user", user, "remote", remote)
			if err := s.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "query the mirror server instead of the local state")
	return cmd
}

// dataSource picks the local state or the mirror's read API.
func dataSource(ctx context.Context, a *app, remote bool) (mcp.DataSource, error) {
	if !remote {
		return mcp.NewLocalSource(a.store, a.advisor), nil
	}
	if a.cfg.Remote.Backend != storage.BackendHTTP {
		return nil, fmt.Errorf("--remote needs remote.backend %q, have %q", storage.BackendHTTP, a.cfg.Remote.Backend)
	}
	return mcp.NewHTTPClient(a.cfg.Remote.URL, a.cfg.Remote.APIKey, a.store.UserID(ctx)), nil
}
