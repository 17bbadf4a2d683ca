// Package assistant wraps the Anthropic API for the tax help chat. It keeps
// responses grounded with a tax-specific system prompt, limits concurrent
// API calls, and degrades to a canned fallback when the API is unavailable.
package assistant

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/taxintel/taxintel/internal/types"
)

// DefaultModel is the cost-efficient model used for chat responses
const DefaultModel = "claude-3-5-haiku-20241022"

const (
	maxResponseTokens = 1024
	maxHistoryWindow  = 10
	maxRetries        = 3
)

// Config holds assistant settings
type Config struct {
	// APIKey is the Anthropic API key. If empty, ANTHROPIC_API_KEY is used.
	APIKey string
	// Model overrides DefaultModel when set
	Model string
	// MaxConcurrent caps in-flight API calls. <= 0 means 4.
	MaxConcurrent int
}

// Assistant answers tax questions through the Anthropic API
type Assistant struct {
	client *anthropic.Client
	model  string
	sem    *semaphore.Weighted
}

// Response is one assistant answer plus call metadata
type Response struct {
	Text           string
	Model          string
	ResponseTimeMs int64
	Fallback       bool
}

// New creates an assistant. It fails if no API key is available.
func New(cfg Config) (*Assistant, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Assistant{
		client: &client,
		model:  model,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}, nil
}

// Model returns the configured model name
func (a *Assistant) Model() string {
	return a.model
}

// Respond answers a user message. History provides prior exchanges for the
// session (oldest first), and calcContext, when non-empty, carries the
// user's latest determination so the model can reference it.
func (a *Assistant) Respond(ctx context.Context, language string, history []*types.Conversation, calcContext, message string) (*Response, error) {
	start := time.Now()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire API slot: %w", err)
	}
	defer a.sem.Release(1)

	messages := buildMessages(history, message)
	system := systemPrompt(language)
	if calcContext != "" {
		system += "\n\nThe user's most recent eligibility result:\n" + calcContext
	}

	var response *anthropic.Message
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: maxResponseTokens,
			System:    []anthropic.TextBlockParam{{Text: system}},
			Messages:  messages,
		})
		if err != nil {
			lastErr = err
			continue
		}
		response = resp
		break
	}

	if response == nil {
		fmt.Fprintf(os.Stderr, "warning: anthropic API unavailable, using fallback: %v\n", lastErr)
		return &Response{
			Text:           FallbackMessage(language),
			Model:          a.model,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			Fallback:       true,
		}, nil
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Text:           text.String(),
		Model:          a.model,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// buildMessages converts session history plus the new user message into API
// messages, keeping only the most recent exchanges.
func buildMessages(history []*types.Conversation, message string) []anthropic.MessageParam {
	if len(history) > maxHistoryWindow {
		history = history[len(history)-maxHistoryWindow:]
	}

	messages := make([]anthropic.MessageParam, 0, len(history)*2+1)
	for _, conv := range history {
		messages = append(messages,
			anthropic.NewUserMessage(anthropic.NewTextBlock(conv.UserMessage)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(conv.AssistantResponse)),
		)
	}
	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))
}

func systemPrompt(language string) string {
	if language == "es" {
		return `Eres un asistente especializado en el Credito por Ingreso del Trabajo (EITC) del IRS.
Responde en espanol claro y sencillo. Explica los requisitos de elegibilidad, los limites
de ingresos y como se calcula el credito. No des asesoria legal ni prepares declaraciones.
Recuerda al usuario que esto es informacion general y que debe consultar a un profesional
de impuestos o la Publicacion 596 del IRS para su situacion especifica.`
	}
	return `You are a helpful assistant specializing in the Earned Income Tax Credit (EITC).
Answer questions about eligibility requirements, income limits, qualifying children, and
how the credit amount is calculated. Keep answers clear and accessible. Do not give legal
advice or prepare returns. Remind users this is general information and they should
consult a tax professional or IRS Publication 596 for their specific situation.`
}

// FallbackMessage is returned when the API cannot be reached
func FallbackMessage(language string) string {
	if language == "es" {
		return "Lo siento, no puedo responder en este momento. Por favor intente de nuevo mas tarde, o use la calculadora de elegibilidad del EITC."
	}
	return "I'm sorry, I can't answer right now. Please try again later, or use the EITC eligibility calculator."
}
