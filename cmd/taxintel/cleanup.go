package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taxintel/taxintel/internal/session"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Deactivate expired sessions and purge stale admin tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		sessions := session.NewManager(store, session.Config{
			TTL:             cfg.SessionTTL.Std(),
			DefaultLanguage: cfg.DefaultLanguage(),
		})

		deactivated, err := sessions.CleanupExpired(ctx)
		if err != nil {
			return fmt.Errorf("session cleanup failed: %w", err)
		}

		purged, err := store.PurgeExpiredTokens(ctx, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("token cleanup failed: %w", err)
		}

		fmt.Printf("Deactivated %d expired sessions, purged %d admin tokens\n", deactivated, purged)
		return nil
	},
}
