package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"famcal/internal/config"
	"famcal/internal/ics"
	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// scheduleCacheTTL bounds how long a default-window response is reused
// before the pipeline runs again. The background refresh keeps the fetch
// layer warm, so rebuilding after expiry is cheap.
const scheduleCacheTTL = 60 * time.Second

// ScheduleProvider produces the aggregated schedule for a window.
// *aggregate.Aggregator is the production implementation.
type ScheduleProvider interface {
	Schedule(ctx context.Context, w ics.Window) (*model.Schedule, error)
	DefaultWindow(now time.Time) ics.Window
}

// Server exposes the schedule API consumed by the display client:
//
//	GET /health              liveness, unauthenticated
//	GET /api/events?from&to  aggregated schedule, x-api-key guarded
type Server struct {
	cfg      *config.Config
	provider ScheduleProvider
	mux      *http.ServeMux

	// Cache for responses to parameterless requests, which is what the
	// display client polls every few minutes.
	cacheMu sync.RWMutex
	cached  *cachedSchedule
}

type cachedSchedule struct {
	schedule  *model.Schedule
	updatedAt time.Time
}

// NewServer constructs a Server around the given provider.
func NewServer(cfg *config.Config, provider ScheduleProvider) *Server {
	s := &Server{
		cfg:      cfg,
		provider: provider,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	return s
}

// Handler returns the server's http.Handler, with API-key auth applied
// when a key is configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg.APIKey != "" {
		h = s.apiKeyMiddleware(h)
	}
	return h
}

// apiKeyMiddleware guards every endpoint except /health with a
// constant-time x-api-key comparison.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	key := s.cfg.APIKey
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if !secureCompare(r.Header.Get("x-api-key"), key) {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents serves the aggregated schedule.
//
// from/to are optional ISO-8601 instants (date-only accepted); the default
// window is [now-past_days, now+future_days).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	fromParam := q.Get("from")
	toParam := q.Get("to")
	explicit := fromParam != "" || toParam != ""

	window := s.provider.DefaultWindow(time.Now())
	if fromParam != "" {
		t, err := parseInstant(fromParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' parameter")
			return
		}
		window.Start = t
	}
	if toParam != "" {
		t, err := parseInstant(toParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' parameter")
			return
		}
		window.End = t
	}
	if !window.Valid() {
		writeError(w, http.StatusBadRequest, "'from' must be before 'to'")
		return
	}

	if !explicit {
		s.cacheMu.RLock()
		c := s.cached
		s.cacheMu.RUnlock()
		if c != nil && time.Since(c.updatedAt) < scheduleCacheTTL {
			writeJSON(w, http.StatusOK, c.schedule)
			return
		}
	}

	schedule, err := s.provider.Schedule(r.Context(), window)
	if err != nil {
		appLog.Error("schedule aggregation failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build schedule")
		return
	}

	if !explicit {
		s.cacheMu.Lock()
		s.cached = &cachedSchedule{schedule: schedule, updatedAt: time.Now()}
		s.cacheMu.Unlock()
	}

	writeJSON(w, http.StatusOK, schedule)
}

// parseInstant accepts RFC3339 instants and bare dates (UTC midnight).
func parseInstant(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
