// Package api exposes the decision engine over HTTP.
// GET endpoints are public. POST /init requires the admin bearer token.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/audit"
	"github.com/talgya/agentmind/internal/engine"
	"github.com/talgya/agentmind/internal/storage"
)

// DecisionLog serves stored audit records.
type DecisionLog interface {
	RecentDecisions(ctx context.Context, avatarID string, limit int) ([]audit.Record, error)
}

// Server serves the engine over HTTP.
type Server struct {
	Engine    *engine.Engine
	Retry     engine.RetryPolicy
	Decisions DecisionLog // optional
	Ping      func(ctx context.Context) error
	Limiter   *RateLimiter // nil disables rate limiting
	AdminKey  string       // empty disables admin endpoints
	Port      int
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/locations", s.handleLocations)
	mux.HandleFunc("GET /api/v1/agents/ready", s.handleReady)
	mux.HandleFunc("GET /api/v1/agents/{id}", s.handleAgent)
	mux.HandleFunc("GET /api/v1/agents/{id}/decisions", s.handleDecisions)
	mux.HandleFunc("POST /api/v1/agents/{id}/tick", s.handleTick)
	mux.HandleFunc("POST /api/v1/agents/{id}/init", s.adminOnly(s.handleInit))

	var h http.Handler = mux
	if s.Limiter != nil {
		h = s.Limiter.Middleware(h)
	}
	return h
}

// Serve listens on Port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("HTTP API stopped")
	return nil
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminKey)) == 1
}

// adminOnly wraps a handler to require the bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeError(w, http.StatusForbidden, "admin endpoints disabled (no AGENTMIND_ADMIN_KEY set)")
			return
		}
		if !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ping != nil {
		if err := s.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.Engine.RequestAction(r.Context(), id, s.Retry)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type agentView struct {
	Presence    *agents.Presence      `json:"presence"`
	Personality *agents.Personality   `json:"personality,omitempty"`
	State       *agents.NeedState     `json:"state,omitempty"`
	Memories    []agents.SocialMemory `json:"social_memories"`
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	store := s.Engine.Store

	p, err := store.GetPresence(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	view := agentView{Presence: p, Memories: []agents.SocialMemory{}}
	if view.Personality, err = store.GetPersonality(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeStoreError(w, err)
		return
	}
	if view.State, err = store.GetState(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeStoreError(w, err)
		return
	}
	mems, err := store.SocialMemories(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(mems) > 0 {
		view.Memories = mems
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.Decisions == nil {
		writeError(w, http.StatusNotImplemented, "decision log not available for this store")
		return
	}
	limit := queryInt(r, "limit", 20)
	recs, err := s.Decisions.RecentDecisions(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.Engine.Store.ListLocations(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if locs == nil {
		locs = []agents.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Store.ReadyAgents(r.Context(), time.Now(), queryInt(r, "limit", 10))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"avatar_ids": ids})
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var personality *agents.Personality
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		personality = &agents.Personality{}
		if err := json.Unmarshal(body, personality); err != nil {
			writeError(w, http.StatusBadRequest, "invalid personality: "+err.Error())
			return
		}
	}

	p, st, err := s.Engine.InitializeAgent(r.Context(), r.PathValue("id"), personality)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"personality": p, "state": st})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// writeStoreError maps engine and store errors onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownAvatar), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, 499, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
