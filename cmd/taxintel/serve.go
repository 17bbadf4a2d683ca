package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taxintel/taxintel/internal/assistant"
	"github.com/taxintel/taxintel/internal/server"
	"github.com/taxintel/taxintel/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the tax intelligence API: chat assistant, EITC calculator,
session history, feedback, health checks, and the admin dashboard.
The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sessions := session.NewManager(store, session.Config{
			TTL:             cfg.SessionTTL.Std(),
			DefaultLanguage: cfg.DefaultLanguage(),
		})

		var responder server.Responder
		asst, err := assistant.New(assistant.Config{
			APIKey:        cfg.Assistant.APIKey,
			Model:         cfg.Assistant.Model,
			MaxConcurrent: cfg.Assistant.MaxConcurrent,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: chat assistant disabled: %v\n", err)
		} else {
			responder = asst
		}

		srv := server.New(cfg, store, sessions, responder)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Start(ctx)
	},
}
