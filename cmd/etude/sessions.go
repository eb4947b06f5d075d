package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clearSessions bool
	sessionLimit  int
)

// sessionsCmd lists or clears the practice history
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List or clear practice history",
	Long: `Lists recorded practice sessions, newest first. With --clear the
whole history is deleted; songs and measure groups are kept.

Requires a running server (etude serve).`,
	RunE: runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	api := newAPIClient(cfg)

	if clearSessions {
		n, err := api.ClearSessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear sessions (is 'etude serve' running at %s?): %w", cfg.Client.BaseURL, err)
		}
		fmt.Printf("Cleared %d practice session(s)\n", n)
		return nil
	}

	sessions, err := api.ListSessions(ctx, sessionLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions (is 'etude serve' running at %s?): %w", cfg.Client.BaseURL, err)
	}
	if len(sessions) == 0 {
		fmt.Println("No practice sessions recorded yet.")
		return nil
	}
	for _, sess := range sessions {
		line := fmt.Sprintf("%s  %-6s  %-28s %s",
			sess.PracticedAt.Format("2006-01-02 15:04"), sess.Rating, sess.SongTitle, sess.FragmentID)
		if sess.DurationSeconds > 0 {
			line += fmt.Sprintf("  %ds", sess.DurationSeconds)
		}
		fmt.Println(line)
	}
	return nil
}
