package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kubewizard/kubewizard/internal/agent"
	"github.com/kubewizard/kubewizard/internal/approval"
	"github.com/kubewizard/kubewizard/internal/config"
	"github.com/kubewizard/kubewizard/internal/execution"
	"github.com/kubewizard/kubewizard/internal/kube"
	"github.com/kubewizard/kubewizard/internal/memory"
	"github.com/kubewizard/kubewizard/internal/provider"
	"github.com/kubewizard/kubewizard/tools"
)

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "kubewizard",
		Short: "Conversational agent for operating Kubernetes clusters",
		Long: `kubewizard answers questions about a Kubernetes cluster and runs kubectl
and helm commands on your behalf. Mutating commands require interactive
approval before they execute.

Run without a subcommand for an interactive console session.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd, verbose)
			if err != nil {
				return err
			}
			return runConsole(cmd.Context(), rt)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log reasoning steps and debug detail")
	root.AddCommand(newServeCmd(&verbose))
	return root
}

// runtime bundles everything a frontend (console or HTTP) needs.
type runtime struct {
	cfg      config.Settings
	log      zerolog.Logger
	store    *memory.Store
	agent    *agent.Agent
	resolver *kube.Resolver
	client   *anthropic.Client
}

// buildRuntime assembles the full stack: config, credentials, executor,
// capability registry, memory and the agent. Approval and ask-human are
// bound to the terminal in both modes.
func buildRuntime(cmd *cobra.Command, verbose bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}

	log := newLogger(cfg)

	resolver := kube.NewResolver(cfg.KubeconfigPath, log)
	executor := execution.New(resolver, cfg.CommandTimeout, log)
	gate := approval.NewGate(&approval.TerminalApprover{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()})

	askHuman := func(prompt string) (string, error) {
		if _, err := cmd.OutOrStdout().Write([]byte(prompt + "\n> ")); err != nil {
			return "", err
		}
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if !scanner.Scan() {
			return "", errors.New("no input available")
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	defs := tools.Registry(tools.Deps{
		Runner:   executor,
		Gate:     gate,
		AskHuman: askHuman,
	})

	var clientOpts []option.RequestOption
	if cfg.AnthropicAPIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.AnthropicAPIKey))
	}
	client := provider.NewClient(clientOpts...)
	model := anthropic.Model(cfg.Model)

	store := memory.New(memory.Options{
		RedisURL:         cfg.RedisURL,
		TTL:              cfg.MemoryTTL,
		CompactThreshold: cfg.CompactThreshold,
		Summarizer: memory.SummarizerFunc(func(ctx context.Context, transcript string) (string, error) {
			return provider.Summarize(ctx, client, model, transcript)
		}),
		Logger: log,
	})

	return &runtime{
		cfg: cfg,
		log: log,
		store: store,
		agent: agent.New(agent.Options{
			Client:        client,
			Model:         model,
			Tools:         defs,
			MaxIterations: cfg.MaxIterations,
			TokenBudget:   cfg.TokenBudget,
			Verbose:       cfg.Verbose,
			Logger:        log,
		}),
		resolver: resolver,
		client:   client,
	}, nil
}

func newLogger(cfg config.Settings) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
