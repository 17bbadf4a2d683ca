// Package storage defines the persistence interface for sessions,
// conversations, feedback, calculation audit records, and admin tokens.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/taxintel/taxintel/internal/types"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ConversationFilter narrows and paginates conversation listings
type ConversationFilter struct {
	SessionID string
	Language  string
	Page      int // 1-based
	PerPage   int
}

// ConversationPage is one page of conversations plus the unpaginated total
type ConversationPage struct {
	Conversations []*types.Conversation
	Total         int
	Page          int
	PerPage       int
}

// FeedbackFilter narrows and paginates feedback listings
type FeedbackFilter struct {
	Rating  int // 0 means any rating
	Page    int
	PerPage int
}

// FeedbackPage is one page of feedback plus the unpaginated total
type FeedbackPage struct {
	Feedback []*types.Feedback
	Total    int
	Page     int
	PerPage  int
}

// Stats summarizes service activity over a window, for the admin dashboard
type Stats struct {
	PeriodDays           int            `json:"period_days"`
	TotalConversations   int            `json:"total_conversations"`
	RecentConversations  int            `json:"recent_conversations"`
	UniqueSessions       int            `json:"unique_sessions"`
	LanguageDistribution map[string]int `json:"language_distribution"`
	AverageRating        float64        `json:"average_rating"`
	TotalFeedback        int            `json:"total_feedback"`
	TotalCalculations    int            `json:"total_calculations"`
}

// Storage is the persistence interface. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Sessions
	CreateSession(ctx context.Context, session *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error
	IncrementConversationCount(ctx context.Context, id string) error
	DeactivateExpiredSessions(ctx context.Context, now time.Time) (int, error)
	ActiveSessionCount(ctx context.Context, now time.Time) (int, error)

	// Conversations
	AddConversation(ctx context.Context, conv *types.Conversation) error
	GetConversation(ctx context.Context, id int64) (*types.Conversation, error)
	SessionHistory(ctx context.Context, sessionID string, limit int) ([]*types.Conversation, error)
	ListConversations(ctx context.Context, filter ConversationFilter) (*ConversationPage, error)

	// Feedback
	AddFeedback(ctx context.Context, fb *types.Feedback) error
	ListFeedback(ctx context.Context, filter FeedbackFilter) (*FeedbackPage, error)

	// Calculations
	AddCalculation(ctx context.Context, rec *types.CalculationRecord) error
	RecentCalculations(ctx context.Context, limit int) ([]*types.CalculationRecord, error)

	// Admin tokens (stored as SHA-256 hashes)
	SaveAdminToken(ctx context.Context, tokenHash, email string, expiresAt time.Time) error
	ValidateAdminToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int, error)

	// Dashboard
	GetStats(ctx context.Context, since time.Time) (*Stats, error)

	Close() error
}
