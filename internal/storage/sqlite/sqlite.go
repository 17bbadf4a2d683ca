// Package sqlite implements the storage interface on SQLite using the pure
// Go ncruces driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/taxintel/taxintel/internal/storage"
	"github.com/taxintel/taxintel/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id         TEXT PRIMARY KEY,
	language           TEXT NOT NULL DEFAULT 'en',
	is_active          INTEGER NOT NULL DEFAULT 1,
	conversation_count INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMP NOT NULL,
	last_activity      TIMESTAMP NOT NULL,
	expires_at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS conversations (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id         TEXT NOT NULL,
	user_message       TEXT NOT NULL,
	assistant_response TEXT NOT NULL,
	language           TEXT NOT NULL DEFAULT 'en',
	model_used         TEXT,
	response_time_ms   INTEGER,
	safety_flagged     INTEGER NOT NULL DEFAULT 0,
	timestamp          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id);
CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);

CREATE TABLE IF NOT EXISTS feedback (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	rating        INTEGER NOT NULL,
	feedback_text TEXT,
	language      TEXT NOT NULL DEFAULT 'en',
	timestamp     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_timestamp ON feedback(timestamp);

CREATE TABLE IF NOT EXISTS calculations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT,
	tax_year      INTEGER NOT NULL,
	filing_status TEXT NOT NULL,
	eligible      INTEGER NOT NULL,
	credit_amount REAL NOT NULL,
	timestamp     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calculations_timestamp ON calculations(timestamp);

CREATE TABLE IF NOT EXISTS admin_tokens (
	token_hash TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
`

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// Compile-time check that SQLiteStorage implements storage.Storage
var _ storage.Storage = (*SQLiteStorage)(nil)

// New opens (or creates) the database at path, enabling WAL mode and
// initializing the schema.
func New(path string) (*SQLiteStorage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close releases the database handle
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row
func (s *SQLiteStorage) CreateSession(ctx context.Context, session *types.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session_id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, language, is_active, conversation_count, created_at, last_activity, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Language, boolToInt(session.IsActive), session.ConversationCount,
		session.CreatedAt, session.LastActivity, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession fetches a session by ID, storage.ErrNotFound if absent
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var sess types.Session
	var active int
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, language, is_active, conversation_count, created_at, last_activity, expires_at
		FROM sessions WHERE session_id = ?`, id).
		Scan(&sess.ID, &sess.Language, &active, &sess.ConversationCount,
			&sess.CreatedAt, &sess.LastActivity, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	sess.IsActive = active != 0
	return &sess, nil
}

// TouchSession updates a session's activity and expiry timestamps
func (s *SQLiteStorage) TouchSession(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ?, expires_at = ? WHERE session_id = ?`,
		lastActivity, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return requireRow(res)
}

// IncrementConversationCount bumps a session's exchange counter
func (s *SQLiteStorage) IncrementConversationCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET conversation_count = conversation_count + 1 WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment conversation count: %w", err)
	}
	return requireRow(res)
}

// DeactivateExpiredSessions marks expired sessions inactive, returning the
// number affected.
func (s *SQLiteStorage) DeactivateExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE is_active = 1 AND expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deactivated sessions: %w", err)
	}
	return int(n), nil
}

// ActiveSessionCount counts live, unexpired sessions
func (s *SQLiteStorage) ActiveSessionCount(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE is_active = 1 AND expires_at > ?`, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// AddConversation appends an exchange, filling in the generated ID
func (s *SQLiteStorage) AddConversation(ctx context.Context, conv *types.Conversation) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, user_message, assistant_response, language, model_used, response_time_ms, safety_flagged, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.SessionID, conv.UserMessage, conv.AssistantResponse, conv.Language,
		conv.ModelUsed, conv.ResponseTimeMs, boolToInt(conv.SafetyFlagged), conv.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to add conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get conversation id: %w", err)
	}
	conv.ID = id
	return nil
}

// GetConversation fetches one conversation by ID
func (s *SQLiteStorage) GetConversation(ctx context.Context, id int64) (*types.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_message, assistant_response, language, model_used, response_time_ms, safety_flagged, timestamp
		FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// SessionHistory returns a session's conversations in chronological order
func (s *SQLiteStorage) SessionHistory(ctx context.Context, sessionID string, limit int) ([]*types.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_message, assistant_response, language, model_used, response_time_ms, safety_flagged, timestamp
		FROM conversations WHERE session_id = ?
		ORDER BY timestamp ASC, id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()
	return collectConversations(rows)
}

// ListConversations returns a filtered, paginated page of conversations,
// newest first.
func (s *SQLiteStorage) ListConversations(ctx context.Context, filter storage.ConversationFilter) (*storage.ConversationPage, error) {
	page, perPage := normalizePage(filter.Page, filter.PerPage)

	where := "WHERE 1=1"
	args := []interface{}{}
	if filter.SessionID != "" {
		where += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.Language != "" {
		where += " AND language = ?"
		args = append(args, filter.Language)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	query := `SELECT id, session_id, user_message, assistant_response, language, model_used, response_time_ms, safety_flagged, timestamp
		FROM conversations ` + where + ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs, err := collectConversations(rows)
	if err != nil {
		return nil, err
	}
	return &storage.ConversationPage{
		Conversations: convs,
		Total:         total,
		Page:          page,
		PerPage:       perPage,
	}, nil
}

// AddFeedback stores a user rating, filling in the generated ID
func (s *SQLiteStorage) AddFeedback(ctx context.Context, fb *types.Feedback) error {
	if err := fb.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (session_id, rating, feedback_text, language, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		fb.SessionID, fb.Rating, fb.FeedbackText, fb.Language, fb.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to add feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get feedback id: %w", err)
	}
	fb.ID = id
	return nil
}

// ListFeedback returns a filtered, paginated page of feedback, newest first
func (s *SQLiteStorage) ListFeedback(ctx context.Context, filter storage.FeedbackFilter) (*storage.FeedbackPage, error) {
	page, perPage := normalizePage(filter.Page, filter.PerPage)

	where := "WHERE 1=1"
	args := []interface{}{}
	if filter.Rating > 0 {
		where += " AND rating = ?"
		args = append(args, filter.Rating)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}

	query := `SELECT id, session_id, rating, feedback_text, language, timestamp
		FROM feedback ` + where + ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var items []*types.Feedback
	for rows.Next() {
		var fb types.Feedback
		var text sql.NullString
		if err := rows.Scan(&fb.ID, &fb.SessionID, &fb.Rating, &text, &fb.Language, &fb.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.FeedbackText = text.String
		items = append(items, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback: %w", err)
	}
	return &storage.FeedbackPage{Feedback: items, Total: total, Page: page, PerPage: perPage}, nil
}

// AddCalculation stores one determination audit record
func (s *SQLiteStorage) AddCalculation(ctx context.Context, rec *types.CalculationRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO calculations (session_id, tax_year, filing_status, eligible, credit_amount, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.TaxYear, rec.FilingStatus, boolToInt(rec.Eligible), rec.CreditAmount, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to add calculation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get calculation id: %w", err)
	}
	rec.ID = id
	return nil
}

// RecentCalculations returns the newest calculation records
func (s *SQLiteStorage) RecentCalculations(ctx context.Context, limit int) ([]*types.CalculationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, tax_year, filing_status, eligible, credit_amount, timestamp
		FROM calculations ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}
	defer rows.Close()

	var recs []*types.CalculationRecord
	for rows.Next() {
		var rec types.CalculationRecord
		var sessionID sql.NullString
		var eligible int
		if err := rows.Scan(&rec.ID, &sessionID, &rec.TaxYear, &rec.FilingStatus, &eligible, &rec.CreditAmount, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}
		rec.SessionID = sessionID.String
		rec.Eligible = eligible != 0
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calculations: %w", err)
	}
	return recs, nil
}

// SaveAdminToken stores a hashed login token
func (s *SQLiteStorage) SaveAdminToken(ctx context.Context, tokenHash, email string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_tokens (token_hash, email, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(token_hash) DO UPDATE SET email = excluded.email, expires_at = excluded.expires_at`,
		tokenHash, email, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save admin token: %w", err)
	}
	return nil
}

// ValidateAdminToken returns the email for an unexpired token hash, or
// storage.ErrNotFound.
func (s *SQLiteStorage) ValidateAdminToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM admin_tokens WHERE token_hash = ? AND expires_at > ?`, tokenHash, now).Scan(&email)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to validate admin token: %w", err)
	}
	return email, nil
}

// PurgeExpiredTokens deletes expired admin tokens
func (s *SQLiteStorage) PurgeExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admin_tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged tokens: %w", err)
	}
	return int(n), nil
}

// GetStats assembles dashboard statistics for the window starting at since
func (s *SQLiteStorage) GetStats(ctx context.Context, since time.Time) (*storage.Stats, error) {
	stats := &storage.Stats{LanguageDistribution: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&stats.TotalConversations); err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE timestamp >= ?`, since).Scan(&stats.RecentConversations); err != nil {
		return nil, fmt.Errorf("failed to count recent conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_id) FROM conversations WHERE timestamp >= ?`, since).Scan(&stats.UniqueSessions); err != nil {
		return nil, fmt.Errorf("failed to count unique sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT language, COUNT(*) FROM conversations WHERE timestamp >= ? GROUP BY language`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query language distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var count int
		if err := rows.Scan(&lang, &count); err != nil {
			return nil, fmt.Errorf("failed to scan language distribution: %w", err)
		}
		stats.LanguageDistribution[lang] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate language distribution: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(rating) FROM feedback WHERE timestamp >= ?`, since).Scan(&avg); err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}
	stats.AverageRating = avg.Float64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feedback WHERE timestamp >= ?`, since).Scan(&stats.TotalFeedback); err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calculations WHERE timestamp >= ?`, since).Scan(&stats.TotalCalculations); err != nil {
		return nil, fmt.Errorf("failed to count calculations: %w", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*types.Conversation, error) {
	var conv types.Conversation
	var model sql.NullString
	var responseTime sql.NullInt64
	var flagged int
	err := row.Scan(&conv.ID, &conv.SessionID, &conv.UserMessage, &conv.AssistantResponse,
		&conv.Language, &model, &responseTime, &flagged, &conv.Timestamp)
	if err != nil {
		return nil, err
	}
	conv.ModelUsed = model.String
	conv.ResponseTimeMs = responseTime.Int64
	conv.SafetyFlagged = flagged != 0
	return &conv, nil
}

func collectConversations(rows *sql.Rows) ([]*types.Conversation, error) {
	var convs []*types.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return convs, nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
