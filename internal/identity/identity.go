// Package identity resolves which player is making a request.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	// PlayerHeaderName carries the submitting player's name.
	PlayerHeaderName = "X-Wargame-Player"
	playerQueryParam = "player"
)

type contextKey int

const playerIDKey contextKey = iota

var playerIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._ -]{0,63}$`)

// PlayerIDFromContext extracts the player ID from the request context.
// It returns "" for anonymous requests.
func PlayerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(playerIDKey).(string); ok {
		return v
	}
	return ""
}

// WithPlayerID returns a context carrying the player ID.
func WithPlayerID(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, playerIDKey, playerID)
}

// SanitizePlayerID normalizes a player name to the ID used by role
// assignment. Invalid names yield "".
func SanitizePlayerID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	if !playerIDPattern.MatchString(id) {
		return ""
	}
	return id
}

func playerIDFromRequest(r *http.Request) string {
	name := r.Header.Get(PlayerHeaderName)
	if name == "" {
		name = r.URL.Query().Get(playerQueryParam)
	}
	return SanitizePlayerID(name)
}

// Middleware injects the requesting player's ID. Requests without one pass
// through anonymously; handlers that need a player reject them.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := playerIDFromRequest(r); id != "" {
			r = r.WithContext(WithPlayerID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
