// Package api exposes the booking engine over an API-key-authenticated
// HTTP interface for voice agents and other machine callers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"zenbook/internal/apikey"
	"zenbook/internal/availability"
	"zenbook/internal/database"
	"zenbook/internal/metrics"
)

type contextKey string

const accountKey contextKey = "account_id"

// HTTPServer serves the public booking API.
type HTTPServer struct {
	db     *database.DB
	engine *availability.Engine
	keys   *apikey.Validator
	log    zerolog.Logger
	server *http.Server

	// Per-account rate limiting. ratePerMinute <= 0 disables it.
	ratePerMinute int
	mu            sync.Mutex
	limiters      map[string]*rate.Limiter
}

// NewHTTPServer wires routes and middleware. Call Start to begin serving.
func NewHTTPServer(addr string, db *database.DB, engine *availability.Engine, keys *apikey.Validator, ratePerMinute int, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		db:            db,
		engine:        engine,
		keys:          keys,
		log:           logger.With().Str("component", "api").Logger(),
		ratePerMinute: ratePerMinute,
		limiters:      make(map[string]*rate.Limiter),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/slots", s.withAuth(s.handleSlots))
	mux.HandleFunc("/api/reservations", s.withAuth(s.handleCreateReservation))
	mux.HandleFunc("/api/reservations/cancel", s.withAuth(s.handleCancelReservation))
	mux.HandleFunc("/api/reservations/export", s.withAuth(s.handleExportReservations))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// withAuth resolves the X-Api-Key header to a salon account and applies the
// per-account rate limit before invoking the handler.
func (s *HTTPServer) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := s.keys.Resolve(r.Context(), r.Header.Get("X-Api-Key"))
		if err != nil {
			if errors.Is(err, apikey.ErrUnknownKey) {
				writeError(w, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
			s.log.Error().Err(err).Msg("API key lookup failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if !s.allow(accountID) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("account", accountID).
			Msg("request")

		ctx := context.WithValue(r.Context(), accountKey, accountID)
		next(w, r.WithContext(ctx))
	}
}

func (s *HTTPServer) allow(accountID string) bool {
	if s.ratePerMinute <= 0 {
		return true
	}
	s.mu.Lock()
	lim, ok := s.limiters[accountID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.ratePerMinute)), s.ratePerMinute)
		s.limiters[accountID] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}

func accountID(r *http.Request) string {
	id, _ := r.Context().Value(accountKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// writeBookingError maps engine and store failures onto HTTP statuses. A
// concurrent insert losing the transactional re-check is the only retryable
// case.
func (s *HTTPServer) writeBookingError(w http.ResponseWriter, err error) {
	var conflict *availability.ConflictError
	switch {
	case errors.As(err, &conflict):
		metrics.IncBookingRejected("slot_conflict")
		writeJSON(w, http.StatusConflict, map[string]any{
			"success":  false,
			"error":    "time slot is not available",
			"conflict": conflict.Blocking.String(),
		})
	case errors.Is(err, availability.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, availability.ErrInvalidStaff):
		metrics.IncBookingRejected("invalid_staff")
		writeError(w, http.StatusBadRequest, "unknown or inactive staff member")
	case errors.Is(err, availability.ErrOutsideWorkingHours):
		metrics.IncBookingRejected("outside_working_hours")
		writeError(w, http.StatusConflict, "requested time is outside working hours")
	case errors.Is(err, availability.ErrConcurrentConflict):
		metrics.IncBookingRejected("concurrent_conflict")
		writeJSON(w, http.StatusConflict, map[string]any{
			"success":   false,
			"error":     "slot was booked concurrently; retry once",
			"retryable": true,
		})
	default:
		s.log.Error().Err(err).Msg("booking request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
