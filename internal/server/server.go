// Package server exposes the query surface and the indexing trigger over
// HTTP as a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/bananaindex/internal/async"
	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/search"
)

const (
	shutdownTimeout = 5 * time.Second
	maxLimit        = 1000
)

// Deps are the collaborators behind the API.
type Deps struct {
	Engine  engine.Engine
	Search  *search.Service
	Tracker *async.Tracker
	Indexer *async.BackgroundIndexer
}

// Server is the HTTP API.
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

// New creates a server and registers its routes.
func New(deps Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /api/search", s.requireEngine(s.handleSearch))
	s.mux.HandleFunc("GET /api/suggestions", s.requireEngine(s.handleSuggestions))
	s.mux.HandleFunc("GET /api/case/{id}", s.requireEngine(s.handleCase))
	s.mux.HandleFunc("GET /api/submodules", s.requireEngine(s.handleSubmodules))
	s.mux.HandleFunc("POST /api/trigger-index", s.handleTrigger)
	s.mux.HandleFunc("GET /api/index-status", s.requireEngine(s.handleIndexStatus))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "failed to listen on "+addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http_server_started", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("http_server_stopped")
	return nil
}

// requireEngine answers 503 when the engine cannot be reached.
func (s *Server) requireEngine(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Engine.Health(r.Context()); err != nil {
			slog.Warn("engine_unavailable", errors.LogAttrs(err)...)
			writeError(w, http.StatusServiceUnavailable, "Search service unavailable")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("q") {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	lang := document.LanguageBoth
	if raw := q.Get("lang"); raw != "" {
		lang = document.ParseLanguage(raw)
		if lang == "" {
			writeError(w, http.StatusBadRequest, "lang must be zh, en or both")
			return
		}
	}

	limit, ok := intParam(w, q.Get("limit"), "limit", 0)
	if !ok {
		return
	}
	offset, ok := intParam(w, q.Get("offset"), "offset", 0)
	if !ok {
		return
	}

	resp := s.deps.Search.Search(r.Context(), search.Request{
		Query:      q.Get("q"),
		Language:   lang,
		Submodules: search.ParseSubmodules(q.Get("submodule")),
		Limit:      limit,
		Offset:     offset,
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("q") {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, ok := intParam(w, q.Get("limit"), "limit", 0)
	if !ok {
		return
	}
	suggestions := s.deps.Search.GetSuggestions(r.Context(), q.Get("q"), limit)
	if suggestions == nil {
		suggestions = []search.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleCase(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.deps.Search.GetCaseByID(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Case not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSubmodules(w http.ResponseWriter, r *http.Request) {
	subs := s.deps.Search.GetSubmodules(r.Context())
	if subs == nil {
		subs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"submodules": subs})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	res, err := s.deps.Indexer.Trigger(r.Context(), force)
	if err != nil {
		if errors.KindOf(err) == errors.KindConnectionFailure {
			writeError(w, http.StatusServiceUnavailable, "Search service unavailable")
			return
		}
		slog.Error("trigger_failed", errors.LogAttrs(err)...)
		writeError(w, http.StatusInternalServerError, "Failed to trigger indexing")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Tracker.Progress(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Engine.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// intParam parses an optional non-negative integer, writing a 400 when it
// is malformed. Limits are capped at maxLimit.
func intParam(w http.ResponseWriter, raw, name string, def int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	if name == "limit" {
		v = min(v, maxLimit)
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response_write_failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}
