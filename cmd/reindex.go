package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/celim/oraculo/internal/app"
	"github.com/celim/oraculo/internal/config"
	"github.com/celim/oraculo/internal/log"
)

var reindexRecreate bool

func init() {
	reindexCmd.Flags().BoolVar(&reindexRecreate, "recreate", false,
		"drop each source's prior documents before indexing instead of upserting in place")
	rootCmd.AddCommand(reindexCmd)
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Run one ingestion cycle over all knowledge sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReindex(reindexRecreate)
	},
}

func runReindex(recreate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: slog.LevelInfo})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	results, err := a.Reindex(ctx, recreate)
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Printf("%-10s loaded=%d indexed=%d failed=%d duration=%s status=%s\n",
			r.Source, r.Loaded, r.Indexed, r.Failed, r.Duration, status)
	}
	if err != nil {
		return fmt.Errorf("reindex finished with failures: %w", err)
	}
	return nil
}
