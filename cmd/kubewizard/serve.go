package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kubewizard/kubewizard/internal/provider"
	"github.com/kubewizard/kubewizard/internal/server"
)

func newServeCmd(verbose *bool) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (chat, memory, health, LINE webhook)",
		Long: `serve exposes the agent over HTTP. Mutating cluster commands still
require approval on this process's terminal, so keep the terminal attended
or leave mutations to console sessions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd, *verbose)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = rt.cfg.ListenAddr
			}

			srv, err := server.New(server.Options{
				Agent:             rt.agent,
				Store:             rt.store,
				Checks:            healthChecks(rt),
				LineChannelSecret: rt.cfg.LineChannelSecret,
				LineChannelToken:  rt.cfg.LineChannelToken,
				Logger:            rt.log,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to KW_LISTEN_ADDR)")
	return cmd
}

func healthChecks(rt *runtime) map[string]server.CheckFunc {
	return map[string]server.CheckFunc{
		"completion": provider.Healthcheck(rt.client),
		"memory": func(ctx context.Context) error {
			return rt.store.Ping(ctx)
		},
		"kubernetes": func(ctx context.Context) error {
			handle, err := rt.resolver.Resolve()
			if err != nil {
				return err
			}
			return handle.Ping(ctx)
		},
	}
}
