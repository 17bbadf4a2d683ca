package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxintel/taxintel/internal/types"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(Config{})
	assert.Error(t, err)

	a, err := New(Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, a.Model())
}

func TestNewModelOverride(t *testing.T) {
	a, err := New(Config{APIKey: "test-key", Model: "claude-sonnet-4-5-20250929"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5-20250929", a.Model())
}

func TestBuildMessagesWindowsHistory(t *testing.T) {
	var history []*types.Conversation
	for i := 0; i < 25; i++ {
		history = append(history, &types.Conversation{
			UserMessage:       "question",
			AssistantResponse: "answer",
		})
	}

	messages := buildMessages(history, "final question")
	// 10 exchanges of two messages each, plus the new user message.
	assert.Len(t, messages, maxHistoryWindow*2+1)
}

func TestBuildMessagesEmptyHistory(t *testing.T) {
	messages := buildMessages(nil, "hello")
	assert.Len(t, messages, 1)
}

func TestSystemPromptByLanguage(t *testing.T) {
	en := systemPrompt("en")
	assert.True(t, strings.Contains(en, "Earned Income Tax Credit"))
	assert.True(t, strings.Contains(en, "Publication 596"))

	es := systemPrompt("es")
	assert.True(t, strings.Contains(es, "EITC"))
	assert.True(t, strings.Contains(es, "Publicacion 596"))

	// Unknown languages fall back to English.
	assert.Equal(t, en, systemPrompt("fr"))
}

func TestFallbackMessage(t *testing.T) {
	assert.True(t, strings.Contains(FallbackMessage("en"), "try again later"))
	assert.True(t, strings.Contains(FallbackMessage("es"), "intente de nuevo"))
	assert.Equal(t, FallbackMessage("en"), FallbackMessage("de"))
}
