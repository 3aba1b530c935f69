package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doublevcodes/bot/internal/chat"
	"github.com/doublevcodes/bot/internal/config"
	"github.com/doublevcodes/bot/internal/evalapi"
	"github.com/doublevcodes/bot/internal/format"
	"github.com/doublevcodes/bot/internal/gateway"
	"github.com/doublevcodes/bot/internal/paste"
	"github.com/doublevcodes/bot/internal/policy"
	"github.com/doublevcodes/bot/internal/server"
	"github.com/doublevcodes/bot/internal/session"
	"github.com/doublevcodes/bot/internal/storage/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the chat gateway and serve evaluation commands",
	Long: `Connect to the chat platform's gateway and handle !eval and !timeit
commands until interrupted.

When server.port is set in the config, an admin API with health, stats,
and job history is served on that port.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is not configured")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	pol, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	events := chat.NewDispatcher()
	transport := gateway.NewTransport(cfg.Gateway.APIBase, cfg.Gateway.Token)
	formatter := format.New(paste.New(cfg.Paste.URL), logger)
	registry := session.NewRegistry()

	svc := session.New(
		transport,
		events,
		evalapi.New(cfg.Eval.URL),
		formatter,
		registry,
		store,
		pol,
		logger,
		session.Options{Prefix: cfg.Gateway.Prefix},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	if cfg.Server.Port > 0 {
		admin := server.New(store, registry, logger)
		go func() {
			if err := admin.Start(cfg.Server.Port); err != nil {
				logger.Error("admin server stopped", slog.String("error", err.Error()))
			}
		}()
		defer admin.Shutdown(context.Background())
	}

	client := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Token, events, svc.HandleMessage, logger)
	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

func loadPolicy(cfg *config.Config) (*policy.Policy, error) {
	if cfg.Policy.File == "" {
		return policy.New(policy.Config{})
	}
	pol, err := policy.Load(cfg.Policy.File)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	return pol, nil
}
