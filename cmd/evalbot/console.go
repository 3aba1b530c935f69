package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/doublevcodes/bot/internal/chat"
	"github.com/doublevcodes/bot/internal/config"
	"github.com/doublevcodes/bot/internal/console"
	"github.com/doublevcodes/bot/internal/evalapi"
	"github.com/doublevcodes/bot/internal/format"
	"github.com/doublevcodes/bot/internal/paste"
	"github.com/doublevcodes/bot/internal/session"
	"github.com/doublevcodes/bot/internal/storage/sqlite"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run evaluation commands from a local terminal",
	Long: `Run the bot against a local readline prompt instead of the chat
gateway. Useful for trying out the evaluation service and policy config
without a platform connection.

Examples:
  evalbot console
  then: !eval ` + "`print(1+1)`",
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn, // keep the prompt quiet
	}))

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
	formatter := format.New(paste.New(cfg.Paste.URL), logger)
	registry := session.NewRegistry()

	var svc *session.Service
	term := console.New(events, func(ctx context.Context, msg chat.Message) {
		svc.HandleMessage(ctx, msg)
	}, os.Stdout)

	svc = session.New(
		term,
		events,
		evalapi.New(cfg.Eval.URL),
		formatter,
		registry,
		store,
		pol,
		logger,
		session.Options{Prefix: cfg.Gateway.Prefix},
	)

	return term.Run(context.Background())
}
