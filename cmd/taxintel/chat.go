package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taxintel/taxintel/internal/assistant"
	"github.com/taxintel/taxintel/internal/session"
	"github.com/taxintel/taxintel/internal/types"
)

var chatLanguage string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive EITC question session",
	Long: `Start an interactive chat with the tax assistant. Exchanges are
stored under a session like API chats. Type 'exit' or press Ctrl+D to
quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.LanguageSupported(chatLanguage) {
			return fmt.Errorf("unsupported language %q (supported: %s)",
				chatLanguage, strings.Join(cfg.SupportedLanguages, ", "))
		}

		asst, err := assistant.New(assistant.Config{
			APIKey:        cfg.Assistant.APIKey,
			Model:         cfg.Assistant.Model,
			MaxConcurrent: cfg.Assistant.MaxConcurrent,
		})
		if err != nil {
			return fmt.Errorf("chat requires an Anthropic API key: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sessions := session.NewManager(store, session.Config{
			TTL:             cfg.SessionTTL.Std(),
			DefaultLanguage: cfg.DefaultLanguage(),
		})

		ctx := context.Background()
		sess, err := sessions.GetOrCreate(ctx, "", chatLanguage)
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		rl, err := readline.NewEx(&readline.Config{
			Prompt:            "you> ",
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n%s\n\n", cyan("Tax assistant ready."),
			gray("Ask about EITC eligibility, income limits, or qualifying children."))

		for {
			line, err := rl.Readline()
			if err != nil {
				if err == readline.ErrInterrupt {
					continue
				}
				if err == io.EOF {
					fmt.Println("\nGoodbye!")
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				fmt.Println("Goodbye!")
				return nil
			}

			history, err := sessions.History(ctx, sess.ID, 10)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load history: %v\n", err)
			}

			start := time.Now()
			resp, err := asst.Respond(ctx, chatLanguage, history, "", line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}

			fmt.Printf("\n%s\n\n", resp.Text)
			fmt.Printf("%s\n\n", gray(fmt.Sprintf("(%s, %v)", resp.Model, time.Since(start).Round(time.Millisecond))))

			err = sessions.AddExchange(ctx, &types.Conversation{
				SessionID:         sess.ID,
				UserMessage:       line,
				AssistantResponse: resp.Text,
				Language:          chatLanguage,
				ModelUsed:         resp.Model,
				ResponseTimeMs:    resp.ResponseTimeMs,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to record exchange: %v\n", err)
			}
		}
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatLanguage, "language", "en", "chat language")
}
