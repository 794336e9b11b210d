package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tomrodww/ai-guessing-game/internal/app"
	"github.com/tomrodww/ai-guessing-game/internal/ratelimit"
	"github.com/tomrodww/ai-guessing-game/internal/sessiontoken"
	"github.com/tomrodww/ai-guessing-game/internal/util"
	"github.com/tomrodww/ai-guessing-game/pkg/auth"
	"github.com/tomrodww/ai-guessing-game/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App    *app.App
	Tokens *sessiontoken.Issuer
	// Limiter is optional; when nil the question endpoint is not rate limited.
	Limiter *ratelimit.Limiter
	// AdminKeyHash enables story-management endpoints when non-empty.
	AdminKeyHash   string
	TrustedProxies *util.TrustedProxies
}

// Server exposes the game HTTP API.
type Server struct {
	app          *app.App
	tokens       *sessiontoken.Issuer
	limiter      *ratelimit.Limiter
	adminKeyHash string
	trusted      *util.TrustedProxies
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:          cfg.App,
		tokens:       cfg.Tokens,
		limiter:      cfg.Limiter,
		adminKeyHash: cfg.AdminKeyHash,
		trusted:      cfg.TrustedProxies,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/stories", s.handleStories)
	s.mux.HandleFunc("/api/stories/", s.handleStoryByID)
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/sessions/", s.handleSessionByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// storySummary is the player-visible projection of a story: premise and
// counts only, never phrase text or the solution.
type storySummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Context     string `json:"context"`
	PhraseCount int    `json:"phraseCount"`
	HintCount   int    `json:"hintCount"`
}

func summarize(story domain.Story) storySummary {
	return storySummary{
		ID:          story.ID,
		Title:       story.Title,
		Context:     story.Context,
		PhraseCount: len(story.Phrases),
		HintCount:   len(story.Hints),
	}
}

func (s *Server) handleStories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		stories, err := s.app.ListStories()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		res := make([]storySummary, 0, len(stories))
		for _, story := range stories {
			res = append(res, summarize(story))
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodPost:
		s.handleCreateStory(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStoryByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/stories/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "story not found")
		return
	}
	story, err := s.app.GetStory(id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(story))
}

type createStoryRequest struct {
	Title    string `json:"title"`
	Context  string `json:"context"`
	Solution string `json:"solution"`
	Phrases  []struct {
		Order int    `json:"order"`
		Text  string `json:"text"`
	} `json:"phrases"`
	Hints  []string `json:"hints"`
	Active *bool    `json:"active"`
}

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	if s.adminKeyHash == "" {
		writeError(w, http.StatusForbidden, "story management disabled")
		return
	}
	if !auth.CheckKey(r.Header.Get("X-Admin-Key"), s.adminKeyHash) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createStoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	story := domain.Story{
		Title:    req.Title,
		Context:  req.Context,
		Solution: req.Solution,
		Hints:    req.Hints,
		Active:   true,
	}
	if req.Active != nil {
		story.Active = *req.Active
	}
	for _, p := range req.Phrases {
		story.Phrases = append(story.Phrases, domain.Phrase{Order: p.Order, Text: p.Text})
	}
	created, err := s.app.CreateStory(story)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, summarize(created))
}

type startSessionRequest struct {
	StoryID string `json:"storyId"`
}

type startSessionResponse struct {
	SessionID     string `json:"sessionId"`
	Token         string `json:"token"`
	Coins         int    `json:"coins"`
	UnlockedHints []int  `json:"unlockedHints"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req startSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.StoryID == "" {
		writeError(w, http.StatusBadRequest, "storyId is required")
		return
	}
	session, err := s.app.StartSession(req.StoryID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	token, err := s.tokens.Issue(session.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{
		SessionID:     session.ID,
		Token:         token,
		Coins:         session.Coins,
		UnlockedHints: session.UnlockedHints,
	})
}

// handleSessionByID dispatches /api/sessions/{id}[/(questions|hints|reveals|phrases)].
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(path, "/")
	if sessionID == "" {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if !s.authorizeSession(w, r, sessionID) {
		return
	}
	switch action {
	case "":
		s.handleSessionState(w, r, sessionID)
	case "questions":
		s.handleAskQuestion(w, r, sessionID)
	case "hints":
		s.handleUnlockHint(w, r, sessionID)
	case "reveals":
		s.handleRevealPhrase(w, r, sessionID)
	case "phrases":
		s.handleRevealedPhrases(w, r, sessionID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// authorizeSession requires a bearer session token bound to the path id.
func (s *Server) authorizeSession(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	subject, err := s.tokens.Verify(token)
	if err != nil || subject != sessionID {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

type sessionStateResponse struct {
	Coins           int                  `json:"coins"`
	UnlockedHints   []int                `json:"unlockedHints"`
	PhrasesRevealed int                  `json:"phrasesRevealedCount"`
	Status          domain.SessionStatus `json:"status"`
	StoryID         string               `json:"storyId"`
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	session, err := s.app.GetSessionState(sessionID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionStateResponse{
		Coins:           session.Coins,
		UnlockedHints:   session.UnlockedHints,
		PhrasesRevealed: len(session.Discovered),
		Status:          session.Status,
		StoryID:         session.StoryID,
	})
}

type askQuestionRequest struct {
	StoryID  string `json:"storyId"`
	Question string `json:"question"`
}

func (s *Server) handleAskQuestion(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.limiter != nil && !s.limiter.Allow(util.ClientIP(r, s.trusted)) {
		writeError(w, http.StatusTooManyRequests, "too many questions, slow down")
		return
	}
	var req askQuestionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.AskQuestion(r.Context(), sessionID, req.StoryID, req.Question)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type unlockHintRequest struct {
	HintIndex int `json:"hintIndex"`
}

func (s *Server) handleUnlockHint(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req unlockHintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.UnlockHint(sessionID, req.HintIndex)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type revealPhraseRequest struct {
	PhraseID string `json:"phraseId"`
}

func (s *Server) handleRevealPhrase(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req revealPhraseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PhraseID == "" {
		writeError(w, http.StatusBadRequest, "phraseId is required")
		return
	}
	result, err := s.app.RevealPhrase(sessionID, req.PhraseID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRevealedPhrases(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	phrases, err := s.app.RevealedPhrases(sessionID, r.URL.Query().Get("storyId"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, phrases)
}

// writeAppError maps core errors onto HTTP statuses. Unexpected errors are
// logged with the request id and surfaced as a generic failure.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrStoryNotFound),
		errors.Is(err, app.ErrUnknownPhrase),
		errors.Is(err, app.ErrUnknownHint):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInsufficientCoins):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrSessionCompleted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
