package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taxintel/taxintel/internal/rules"
)

var statusDays int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service activity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		now := time.Now().UTC()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== TaxIntel Status ==="))

		fmt.Printf("%s\n", yellow("Configuration:"))
		fmt.Printf("  listen:              %s\n", cfg.Listen)
		fmt.Printf("  database:            %s\n", cfg.DatabasePath)
		fmt.Printf("  default tax year:    %d\n", cfg.DefaultTaxYear)
		fmt.Printf("  supported tax years: %v\n", rules.SupportedYears())
		fmt.Printf("  languages:           %v\n", cfg.SupportedLanguages)
		fmt.Println()

		active, err := store.ActiveSessionCount(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to count sessions: %w", err)
		}

		stats, err := store.GetStats(ctx, now.AddDate(0, 0, -statusDays))
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		fmt.Printf("%s\n", yellow(fmt.Sprintf("Activity (last %d days):", statusDays)))
		fmt.Printf("  active sessions:     %d\n", active)
		fmt.Printf("  conversations:       %d %s\n", stats.RecentConversations,
			gray(fmt.Sprintf("(%d all time)", stats.TotalConversations)))
		fmt.Printf("  unique sessions:     %d\n", stats.UniqueSessions)
		fmt.Printf("  calculations:        %d\n", stats.TotalCalculations)
		if stats.TotalFeedback > 0 {
			fmt.Printf("  average rating:      %.1f/5 %s\n", stats.AverageRating,
				gray(fmt.Sprintf("(%d ratings)", stats.TotalFeedback)))
		} else {
			fmt.Printf("  average rating:      %s\n", gray("no feedback yet"))
		}
		if len(stats.LanguageDistribution) > 0 {
			fmt.Printf("  by language:        ")
			for lang, count := range stats.LanguageDistribution {
				fmt.Printf(" %s=%d", lang, count)
			}
			fmt.Println()
		}
		fmt.Println()
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusDays, "days", 7, "activity window in days")
}
