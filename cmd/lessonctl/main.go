// Package main implements lessonctl, the operator CLI that external schedulers call for
// migrations, sweeps, lesson reminders and token issuance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/lessonsync-api/internal/bootstrap"
	"github.com/noah-isme/lessonsync-api/pkg/config"
	"github.com/noah-isme/lessonsync-api/pkg/logger"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lessonctl",
	Short: "Operational commands for the lesson change service",
	Long: `lessonctl runs the housekeeping jobs of the lesson change service against the
configured database. Configuration comes from .env and the environment, the same as the API.`,
	Version:       version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(purgeAvailabilityCmd)
	rootCmd.AddCommand(tokenCmd)
}

// withDeps builds the dependency graph, starts delivery workers and tears everything down
// after fn returns, so queued notifications are flushed before exit.
func withDeps(cmd *cobra.Command, fn func(ctx context.Context, deps *bootstrap.Dependencies) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg, "lessonctl")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer deps.Close()
	deps.Start(ctx)

	return fn(ctx, deps)
}
