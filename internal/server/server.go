// Package server exposes the tax intelligence HTTP API: the chat assistant,
// the EITC calculator endpoints, session history, feedback, health checks,
// and the authenticated admin surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/taxintel/taxintel/internal/assistant"
	"github.com/taxintel/taxintel/internal/config"
	"github.com/taxintel/taxintel/internal/safety"
	"github.com/taxintel/taxintel/internal/session"
	"github.com/taxintel/taxintel/internal/storage"
	"github.com/taxintel/taxintel/internal/types"
)

// Responder abstracts the chat assistant so the server can run without an
// API key in tests.
type Responder interface {
	Respond(ctx context.Context, language string, history []*types.Conversation, calcContext, message string) (*assistant.Response, error)
	Model() string
}

// Server wires the HTTP handlers to their backing services
type Server struct {
	cfg       *config.Config
	store     storage.Storage
	sessions  *session.Manager
	assistant Responder
	filter    *safety.Filter
	limiter   *rateLimiter
	startedAt time.Time

	httpServer *http.Server
}

// New assembles a server from its dependencies. The assistant may be nil,
// in which case chat requests get the fallback message.
func New(cfg *config.Config, store storage.Storage, sessions *session.Manager, asst Responder) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		sessions:  sessions,
		assistant: asst,
		startedAt: time.Now(),
	}
	if cfg.Safety.Enabled {
		s.filter = safety.New()
	}
	if cfg.RateLimit.Enabled {
		s.limiter = newRateLimiter(cfg.RateLimit)
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// routes builds the method-routed mux with middleware applied
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/chat", s.limited(classChat, s.handleChat))
	mux.HandleFunc("POST /api/v1/calculate-eitc", s.limited(classCalc, s.handleCalculate))
	mux.HandleFunc("GET /api/v1/income-limits", s.limited(classRead, s.handleIncomeLimits))
	mux.HandleFunc("GET /api/v1/estimate-schedule", s.limited(classRead, s.handleEstimateSchedule))
	mux.HandleFunc("GET /api/v1/session/{id}/history", s.limited(classRead, s.handleSessionHistory))
	mux.HandleFunc("POST /api/v1/feedback", s.limited(classRead, s.handleFeedback))
	mux.HandleFunc("GET /api/v1/languages", s.limited(classRead, s.handleLanguages))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /healthz/live", s.handleLive)
	mux.HandleFunc("GET /healthz/ready", s.handleReady)
	mux.HandleFunc("GET /healthz/detailed", s.handleHealthDetailed)

	if s.cfg.Admin.Enabled {
		mux.HandleFunc("POST /admin/login", s.limited(classRead, s.handleAdminLogin))
		mux.HandleFunc("GET /admin/dashboard/stats", s.adminOnly(s.handleAdminStats))
		mux.HandleFunc("GET /admin/conversations", s.adminOnly(s.handleAdminConversations))
		mux.HandleFunc("GET /admin/conversations/{id}", s.adminOnly(s.handleAdminConversation))
		mux.HandleFunc("GET /admin/feedback", s.adminOnly(s.handleAdminFeedback))
	}

	return securityHeaders(requestLogger(mux))
}

// Handler returns the fully assembled HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", s.cfg.Listen)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Printf("server stopped")
	return nil
}
