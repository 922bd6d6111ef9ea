// Package api provides the HTTP command surface for wargame sessions.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/wargame/internal/checkpoint"
	"github.com/ashureev/wargame/internal/feed"
	"github.com/ashureev/wargame/internal/session"
	"github.com/ashureev/wargame/internal/wargame"
)

const maxBodyBytes = 1 << 20

// Handler serves the session routes.
type Handler struct {
	svc     *session.Service
	hub     *feed.Hub
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewHandler creates a Handler. hub may be nil to disable the live feed.
func NewHandler(svc *session.Service, hub *feed.Hub, limiter *RateLimiter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, hub: hub, limiter: limiter, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StatusFor maps a service error to an HTTP status. Caller mistakes keep
// their message; everything else is reported generically.
func StatusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, wargame.ErrUserInput):
		return http.StatusBadRequest, true
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, checkpoint.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, wargame.ErrTurnInProgress),
		errors.Is(err, wargame.ErrInactive),
		errors.Is(err, wargame.ErrAlreadyActive):
		return http.StatusConflict, true
	default:
		return http.StatusServiceUnavailable, false
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, public := StatusFor(err)
	if !public {
		h.logger.Error("Request failed", "op", op, "path", r.URL.Path, "error", err)
		Error(w, status, "the facilitator is unavailable, try again later")
		return
	}
	h.logger.Debug("Request rejected", "op", op, "status", status, "error", err)
	Error(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return wargame.UserInputf("invalid request body: %v", err)
	}
	return nil
}
