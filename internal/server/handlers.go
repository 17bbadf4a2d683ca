package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/taxintel/taxintel/internal/assistant"
	"github.com/taxintel/taxintel/internal/eitc"
	"github.com/taxintel/taxintel/internal/rules"
	"github.com/taxintel/taxintel/internal/storage"
	"github.com/taxintel/taxintel/internal/types"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

type chatResponse struct {
	Response       string `json:"response"`
	SessionID      string `json:"session_id"`
	Language       string `json:"language"`
	Model          string `json:"model,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	SafetyFlagged  bool   `json:"safety_flagged,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Message) > 4000 {
		writeError(w, http.StatusBadRequest, "message too long (max 4000 characters)")
		return
	}

	language, ok := s.resolveLanguage(req.Language)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported language %q (supported: %s)",
			req.Language, strings.Join(s.cfg.SupportedLanguages, ", "))
		return
	}

	sess, err := s.sessions.GetOrCreate(r.Context(), req.SessionID, language)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to establish session")
		return
	}
	if req.Language == "" {
		language = sess.Language
	}

	start := time.Now()
	message := req.Message
	flagged := false

	if s.filter != nil {
		// Mask PII before anything downstream sees or stores the message.
		if s.cfg.Safety.PIIDetection {
			if pii := s.filter.DetectPII(message); pii.HasPII {
				message = s.filter.Sanitize(message)
				flagged = true
			}
		}
		if unsafe := s.filter.DetectUnsafe(message); unsafe.IsUnsafe {
			s.recordExchange(r, sess.ID, message, refusalMessage(language), language, "", start, true)
			writeJSON(w, http.StatusOK, chatResponse{
				Response:       refusalMessage(language),
				SessionID:      sess.ID,
				Language:       language,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				SafetyFlagged:  true,
			})
			return
		}
		if !s.filter.IsTaxRelated(message) {
			s.recordExchange(r, sess.ID, message, offTopicMessage(language), language, "", start, true)
			writeJSON(w, http.StatusOK, chatResponse{
				Response:       offTopicMessage(language),
				SessionID:      sess.ID,
				Language:       language,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				SafetyFlagged:  true,
			})
			return
		}
	}

	var resp *assistant.Response
	if s.assistant != nil {
		history, err := s.sessions.History(r.Context(), sess.ID, 10)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load history for %s: %v\n", sess.ID, err)
		}
		resp, err = s.assistant.Respond(r.Context(), language, history, s.calcContext(r, sess.ID), message)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "assistant unavailable")
			return
		}
		if s.filter != nil {
			if !s.filter.SafeOutput(resp.Text) {
				resp.Text = unsafeOutputMessage(language)
				flagged = true
			} else if !s.filter.HasDisclaimer(resp.Text) {
				resp.Text += "\n\n" + disclaimerNote(language)
			}
		}
	} else {
		resp = &assistant.Response{
			Text:           assistant.FallbackMessage(language),
			ResponseTimeMs: time.Since(start).Milliseconds(),
			Fallback:       true,
		}
	}

	s.recordExchange(r, sess.ID, message, resp.Text, language, resp.Model, start, flagged)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       resp.Text,
		SessionID:      sess.ID,
		Language:       language,
		Model:          resp.Model,
		ResponseTimeMs: resp.ResponseTimeMs,
		SafetyFlagged:  flagged,
	})
}

// recordExchange persists a chat exchange, logging rather than failing the
// request on storage errors.
func (s *Server) recordExchange(r *http.Request, sessionID, userMsg, response, language, model string, start time.Time, flagged bool) {
	conv := &types.Conversation{
		SessionID:         sessionID,
		UserMessage:       userMsg,
		AssistantResponse: response,
		Language:          language,
		ModelUsed:         model,
		ResponseTimeMs:    time.Since(start).Milliseconds(),
		SafetyFlagged:     flagged,
	}
	if err := s.sessions.AddExchange(r.Context(), conv); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record exchange: %v\n", err)
	}
}

func refusalMessage(language string) string {
	if language == "es" {
		return "No puedo ayudar con eso. Puedo responder preguntas sobre el Credito por Ingreso del Trabajo (EITC) y los requisitos de elegibilidad."
	}
	return "I can't help with that. I can answer questions about the Earned Income Tax Credit (EITC) and its eligibility requirements."
}

// unsafeOutputMessage replaces an assistant response that leaked PII or gave
// specific tax advice.
func unsafeOutputMessage(language string) string {
	if language == "es" {
		return "Lo siento, no puedo compartir esa respuesta. Puedo ofrecer informacion general sobre el EITC; consulte a un profesional de impuestos para cifras especificas."
	}
	return "I'm sorry, I can't share that response. I can offer general EITC information; please consult a tax professional for specific figures."
}

func disclaimerNote(language string) string {
	if language == "es" {
		return "Esta es informacion general, no asesoria fiscal. Consulte a un profesional de impuestos o la Publicacion 596 del IRS para su situacion."
	}
	return "This is general information, not tax advice. Consult a tax professional or IRS Publication 596 for your situation."
}

// calcContext summarizes the session's most recent determination so the
// assistant can reference it. Empty when the session has none.
func (s *Server) calcContext(r *http.Request, sessionID string) string {
	recs, err := s.store.RecentCalculations(r.Context(), 50)
	if err != nil {
		return ""
	}
	for _, rec := range recs {
		if rec.SessionID != sessionID {
			continue
		}
		outcome := "not eligible"
		if rec.Eligible {
			outcome = fmt.Sprintf("eligible for an estimated $%.2f", rec.CreditAmount)
		}
		return fmt.Sprintf("Tax year %d, filing status %s: %s.", rec.TaxYear, rec.FilingStatus, outcome)
	}
	return ""
}

func offTopicMessage(language string) string {
	if language == "es" {
		return "Solo puedo ayudar con preguntas relacionadas con impuestos, como el EITC, los limites de ingresos y los requisitos de elegibilidad."
	}
	return "I can only help with tax-related questions, such as the EITC, income limits, and eligibility requirements."
}

// resolveLanguage validates a requested language, defaulting when empty
func (s *Server) resolveLanguage(lang string) (string, bool) {
	if lang == "" {
		return s.cfg.DefaultLanguage(), true
	}
	if !s.cfg.LanguageSupported(lang) {
		return "", false
	}
	return lang, true
}

type calculateRequest struct {
	TaxYear   int    `json:"tax_year"`
	SessionID string `json:"session_id"`
	types.TaxpayerFacts
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	if req.FilingStatus == "" {
		writeError(w, http.StatusBadRequest, "filing_status is required")
		return
	}
	if !req.FilingStatus.IsValid() {
		writeError(w, http.StatusBadRequest,
			"unknown filing_status %q (accepted: single, married_joint, married_filing_jointly, married_separate, married_filing_separately, head_of_household)",
			req.FilingStatus)
		return
	}

	taxYear := req.TaxYear
	if taxYear == 0 {
		taxYear = s.cfg.DefaultTaxYear
	}

	det, err := eitc.Determine(taxYear, req.TaxpayerFacts)
	if err != nil {
		var unsupported *rules.ErrUnsupportedTaxYear
		if errors.As(err, &unsupported) {
			writeError(w, http.StatusBadRequest, "tax year %d is not supported (supported: %v)",
				unsupported.Year, rules.SupportedYears())
			return
		}
		writeError(w, http.StatusInternalServerError, "determination failed")
		return
	}

	rec := &types.CalculationRecord{
		SessionID:    req.SessionID,
		TaxYear:      taxYear,
		FilingStatus: string(req.FilingStatus),
		Eligible:     det.Eligible,
		CreditAmount: det.CreditAmount,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.store.AddCalculation(r.Context(), rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record calculation: %v\n", err)
	}

	writeJSON(w, http.StatusOK, det)
}

func (s *Server) handleIncomeLimits(w http.ResponseWriter, r *http.Request) {
	taxYear, status, children, ok := s.scheduleParams(w, r)
	if !ok {
		return
	}

	limits, err := eitc.IncomeLimits(taxYear, status, children)
	if err != nil {
		var unsupported *rules.ErrUnsupportedTaxYear
		if errors.As(err, &unsupported) {
			writeError(w, http.StatusBadRequest, "tax year %d is not supported (supported: %v)",
				unsupported.Year, rules.SupportedYears())
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tax_year":            taxYear,
		"filing_status":       status,
		"qualifying_children": children,
		"limits":              limits,
	})
}

func (s *Server) handleEstimateSchedule(w http.ResponseWriter, r *http.Request) {
	taxYear, status, children, ok := s.scheduleParams(w, r)
	if !ok {
		return
	}

	maxIncome := queryFloat(r, "max_income", 60000)
	step := queryFloat(r, "step", 2500)
	if maxIncome <= 0 || step <= 0 {
		writeError(w, http.StatusBadRequest, "max_income and step must be positive")
		return
	}
	if maxIncome/step > 500 {
		writeError(w, http.StatusBadRequest, "schedule too large, increase step or lower max_income")
		return
	}

	var incomes []float64
	for income := step; income <= maxIncome; income += step {
		incomes = append(incomes, income)
	}

	points, err := eitc.EstimateByIncome(taxYear, status, children, incomes)
	if err != nil {
		var unsupported *rules.ErrUnsupportedTaxYear
		if errors.As(err, &unsupported) {
			writeError(w, http.StatusBadRequest, "tax year %d is not supported (supported: %v)",
				unsupported.Year, rules.SupportedYears())
			return
		}
		writeError(w, http.StatusInternalServerError, "estimate failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tax_year":            taxYear,
		"filing_status":       status,
		"qualifying_children": children,
		"schedule":            points,
	})
}

// scheduleParams parses the shared query parameters of the limits and
// schedule endpoints, writing the error response itself on failure.
func (s *Server) scheduleParams(w http.ResponseWriter, r *http.Request) (int, types.FilingStatus, int, bool) {
	taxYear := queryInt(r, "tax_year", s.cfg.DefaultTaxYear)

	status := types.FilingStatus(r.URL.Query().Get("filing_status"))
	if status == "" {
		status = types.FilingSingle
	}
	if !status.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown filing_status %q", status)
		return 0, "", 0, false
	}

	children := queryInt(r, "children", 0)
	if children < 0 {
		writeError(w, http.StatusBadRequest, "children cannot be negative")
		return 0, "", 0, false
	}
	return taxYear, status, children, true
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	limit := queryInt(r, "limit", 50)
	history, err := s.sessions.History(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":    sessionID,
		"conversations": history,
		"count":         len(history),
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb types.Feedback
	if err := decodeJSON(r, &fb); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if fb.Language == "" {
		fb.Language = s.cfg.DefaultLanguage()
	}
	fb.Timestamp = time.Now().UTC()

	if err := fb.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := s.store.AddFeedback(r.Context(), &fb); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     fb.ID,
		"status": "received",
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"supported_languages": s.cfg.SupportedLanguages,
		"default_language":    s.cfg.DefaultLanguage(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ActiveSessionCount(r.Context(), time.Now().UTC()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	active, err := s.store.ActiveSessionCount(r.Context(), time.Now().UTC())
	if err != nil {
		dbStatus = "unavailable"
	}

	model := ""
	if s.assistant != nil {
		model = s.assistant.Model()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"uptime":              time.Since(s.startedAt).Round(time.Second).String(),
		"database":            dbStatus,
		"active_sessions":     active,
		"supported_tax_years": rules.SupportedYears(),
		"assistant_model":     model,
		"safety_enabled":      s.filter != nil,
	})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, name string, def float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
