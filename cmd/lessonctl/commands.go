package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/lessonsync-api/internal/bootstrap"
	"github.com/noah-isme/lessonsync-api/internal/models"
)

var (
	sweepRetain   time.Duration
	triggerWithin time.Duration
	triggerDate   string
)

func init() {
	sweepCmd.Flags().DurationVar(&sweepRetain, "retain", 30*24*time.Hour, "keep resolved change requests this long; 0 disables purging")
	triggerCmd.Flags().DurationVar(&triggerWithin, "within", 15*time.Minute, "announce lessons starting within this window; 0 means the rest of the day")
	triggerCmd.Flags().StringVar(&triggerDate, "date", "", "list the lessons due on this date instead of announcing")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			applied, err := deps.Migrate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue change requests and purge old resolved ones",
	Long: `Marks every pending change request whose deadline has passed as expired, then deletes
resolved requests older than --retain together with their votes.

Examples:
  # Nightly sweep shortly after midnight
  lessonctl sweep --retain 720h`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			now := deps.Clock.Now()
			expired, err := deps.Engine.ExpireStaleRequests(ctx, now)
			if err != nil {
				return err
			}
			var purged int64
			if sweepRetain > 0 {
				purged, err = deps.Engine.PurgeResolved(ctx, now.Add(-sweepRetain))
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d, purged %d\n", expired, purged)
			return nil
		})
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Remind participants of lessons that are about to start",
	Long: `Announces every lesson that actually runs in the next --within window, taking
cancellations and postponements into account.

Examples:
  # Every 15 minutes from cron
  lessonctl trigger --within 15m

  # Show what runs on a day without notifying anyone
  lessonctl trigger --date 2025-01-10`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var date models.Date
		if triggerDate != "" {
			parsed, err := models.ParseDate(triggerDate)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			date = parsed
		}

		return withDeps(cmd, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			var (
				due []models.DueLesson
				err error
			)
			if date.IsZero() {
				due, err = deps.Trigger.Announce(ctx, deps.Clock.Now(), triggerWithin)
			} else {
				due, err = deps.Trigger.Due(ctx, date)
			}
			if err != nil {
				return err
			}
			printDue(cmd, due)
			return nil
		})
	},
}

var purgeAvailabilityCmd = &cobra.Command{
	Use:   "purge-availability",
	Short: "Delete availability windows dated before today",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			purged, err := deps.Availability.PurgePast(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d availability window(s)\n", purged)
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <chat_id>",
	Short: "Issue an API token for a registered member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd, func(ctx context.Context, deps *bootstrap.Dependencies) error {
			token, expiresAt, err := deps.Auth.Issue(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires %s\n", token, expiresAt.Format(time.RFC3339))
			return nil
		})
	},
}

func printDue(cmd *cobra.Command, due []models.DueLesson) {
	out := cmd.OutOrStdout()
	if len(due) == 0 {
		fmt.Fprintln(out, "no lessons due")
		return
	}
	for _, lesson := range due {
		line := fmt.Sprintf("%s  %-20s %s", lesson.Slot, lesson.Series.Title, lesson.Series.GroupName)
		if lesson.MovedFrom != nil {
			line += "  (moved from " + lesson.MovedFrom.String() + ")"
		}
		fmt.Fprintln(out, line)
	}
}
