package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/roster"
	"github.com/aretw0/roster/internal/logging"
	"github.com/aretw0/roster/pkg/domain"
	"github.com/aretw0/roster/pkg/observability"
	"github.com/aretw0/roster/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry defines what the admin API needs from the session registry.
type Registry interface {
	Stats() domain.Stats
	Infos(keep registry.Predicate) []domain.Info
	FindSessionByID(id uint64) domain.Session
}

// Server serves the administrative API.
type Server struct {
	Registry Registry

	gatherer prometheus.Gatherer
	interval time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer serves /metrics from g instead of a private registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStatsInterval sets how often /ws/stats pushes a sample.
func WithStatsInterval(d time.Duration) Option {
	return func(s *Server) {
		s.interval = d
	}
}

// NewHandler creates the admin HTTP handler for reg.
func NewHandler(reg Registry, opts ...Option) http.Handler {
	s := &Server{
		Registry: reg,
		interval: time.Second,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gatherer == nil {
		private := prometheus.NewRegistry()
		private.MustRegister(observability.NewCollector(reg))
		s.gatherer = private
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/stats", s.GetStats)
	r.Get("/sessions", s.ListSessions)
	r.Get("/sessions/{id}", s.GetSession)
	r.Delete("/sessions/{id}", s.KillSession)
	r.Get("/ws/stats", s.StreamStats)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "roster",
		"version": strings.TrimSpace(roster.Version),
	})
}

// GetStats handles the GET /stats request.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Registry.Stats())
}

// ListSessions handles the GET /sessions request. The optional "user" query
// parameter keeps only the sessions of that user.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	var keep registry.Predicate
	if user := r.URL.Query().Get("user"); user != "" {
		keep = func(sess domain.Session) bool {
			return domain.Describe(sess).User == user
		}
	}
	s.writeJSON(w, http.StatusOK, s.Registry.Infos(keep))
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, domain.Describe(sess))
}

// KillSession handles the DELETE /sessions/{id} request.
func (s *Server) KillSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	k, ok := sess.(domain.Killable)
	if !ok {
		http.Error(w, fmt.Sprintf("session %d cannot be killed", sess.ID()), http.StatusConflict)
		return
	}
	k.Kill()
	s.logger.Info("Session killed by admin", "session_id", sess.ID(), "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, domain.Describe(sess))
}

// StreamStats handles the GET /ws/stats request, pushing a Stats sample on
// connect and then once per interval until the client goes away.
func (s *Server) StreamStats(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("StreamStats: Upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reading is only used to notice the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(s.Registry.Stats()); err != nil {
			s.logger.Debug("StreamStats: Client write failed", "error", err)
			return
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid session id %q", raw), http.StatusBadRequest)
		return nil, false
	}
	sess := s.Registry.FindSessionByID(id)
	if sess == nil {
		err := fmt.Errorf("session %d: %w", id, domain.ErrSessionNotFound)
		http.Error(w, err.Error(), statusFor(err))
		return nil, false
	}
	return sess, true
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}
