package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taxintel/taxintel/internal/storage"
)

// adminTokenTTL is how long an admin login token stays valid
const adminTokenTTL = 8 * time.Hour

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	if s.cfg.Admin.Password == "" {
		writeError(w, http.StatusForbidden, "admin login is not configured")
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(req.Email), []byte(s.cfg.Admin.Email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Admin.Password)) == 1
	if !emailOK || !passOK {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token := uuid.New().String()
	expiresAt := time.Now().UTC().Add(adminTokenTTL)
	if err := s.store.SaveAdminToken(r.Context(), hashToken(token), req.Email, expiresAt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// adminOnly requires a valid bearer token issued by handleAdminLogin
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		_, err := s.store.ValidateAdminToken(r.Context(), hashToken(token), time.Now().UTC())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			writeError(w, http.StatusInternalServerError, "token validation failed")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	if days < 1 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	stats, err := s.store.GetStats(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	stats.PeriodDays = days
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminConversations(w http.ResponseWriter, r *http.Request) {
	filter := storage.ConversationFilter{
		SessionID: r.URL.Query().Get("session_id"),
		Language:  r.URL.Query().Get("language"),
		Page:      queryInt(r, "page", 1),
		PerPage:   queryInt(r, "per_page", 20),
	}
	page, err := s.store.ListConversations(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": page.Conversations,
		"total":         page.Total,
		"page":          page.Page,
		"per_page":      page.PerPage,
	})
}

func (s *Server) handleAdminConversation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleAdminFeedback(w http.ResponseWriter, r *http.Request) {
	filter := storage.FeedbackFilter{
		Rating:  queryInt(r, "rating", 0),
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", 20),
	}
	page, err := s.store.ListFeedback(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list feedback")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feedback": page.Feedback,
		"total":    page.Total,
		"page":     page.Page,
		"per_page": page.PerPage,
	})
}
