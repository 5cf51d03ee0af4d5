// Package httptransport exposes the conversation service over HTTP and
// WebSocket.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/internal/service/conversation"
	"github.com/sandevgo/knowbot/pkg/log"
)

const maxBodyBytes = 64 * 1024

type Conversation interface {
	HandleTurn(ctx context.Context, sessionID, userMessage string, notify conversation.Notify) (string, error)
	History(ctx context.Context, sessionID string, limit int) ([]core.StoredMessage, error)
	State(ctx context.Context, sessionID string) (core.SessionState, error)
	Notes(ctx context.Context, sessionID string, limit int) ([]core.Note, error)
}

type Server struct {
	addr   string
	conv   Conversation
	srv    *http.Server
	wsConn *connTracker
}

func NewServer(addr string, conv Conversation) *Server {
	return &Server{
		addr:   addr,
		conv:   conv,
		wsConn: newConnTracker(),
	}
}

// Handler returns the routed and wrapped handler. ctx is the base context
// for WebSocket sessions and carries the logger.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /notes", s.handleNotes)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return chainMiddlewares(mux,
		withCORS,
		withRecover,
		withRequestLogging(ctx),
	)
}

func (s *Server) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.srv = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	// Hijacked WebSocket connections are not tracked by http.Server.
	s.wsConn.closeAll()
	return s.srv.Shutdown(ctx)
}

// ─────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type historyResponse struct {
	History []core.StoredMessage `json:"history"`
}

type stateResponse struct {
	State core.SessionState `json:"state"`
}

type notesResponse struct {
	Notes []core.Note `json:"notes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	sessionID := sessionFrom(r, req.SessionID)
	reply, err := s.conv.HandleTurn(r.Context(), sessionID, req.Message, nil)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	history, err := s.conv.History(r.Context(), sessionFrom(r, ""), limit)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{History: history})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.conv.State(r.Context(), sessionFrom(r, ""))
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: state})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	notes, err := s.conv.Notes(r.Context(), sessionFrom(r, ""), limit)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notesResponse{Notes: notes})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromCtx(r.Context())

	switch {
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		logger.Debug().Err(err).Msg("client disconnected")
	default:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, core.UserFacingError)
	}
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

// sessionFrom prefers the query parameter, then the body, then the default.
func sessionFrom(r *http.Request, fromBody string) string {
	if id := r.URL.Query().Get("sessionId"); id != "" {
		return id
	}
	if fromBody != "" {
		return fromBody
	}
	return core.DefaultSessionID
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
