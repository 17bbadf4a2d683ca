package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taxintel/taxintel/internal/config"
	"github.com/taxintel/taxintel/internal/storage/sqlite"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taxintel",
	Short: "EITC eligibility service and assistant",
	Long: `taxintel answers Earned Income Tax Credit questions and determines
eligibility and credit amounts from taxpayer facts. It runs as an HTTP
service with an AI chat assistant, or directly from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "taxintel.yaml", "path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(calcCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
}

// openStore opens the configured SQLite database
func openStore() (*sqlite.SQLiteStorage, error) {
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
