// Package feed pushes session events to observers over WebSocket.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/wargame/internal/session"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 10 * time.Second
)

type subscriber struct {
	events chan session.Event
}

// Hub fans session events out to every connected observer of that
// session. Slow observers lose events instead of stalling the publisher.
type Hub struct {
	mu            sync.RWMutex
	subs          map[string]map[*subscriber]struct{}
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(allowedOrigin string, isDev bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:          make(map[string]map[*subscriber]struct{}),
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// Publish implements session.Publisher.
func (h *Hub) Publish(ev session.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.SessionID] {
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("Feed subscriber too slow, dropping event", "session_id", ev.SessionID, "type", ev.Type)
		}
	}
}

// Subscribers returns the number of observers of a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// CloseSession disconnects every observer of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[sessionID] {
		close(sub.events)
	}
	delete(h.subs, sessionID)
}

func (h *Hub) register(sessionID string) *subscriber {
	sub := &subscriber{events: make(chan session.Event, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sessionID]; !ok {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.logger.Info("Feed observer registered", "session_id", sessionID)
	return sub
}

func (h *Hub) unregister(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subs[sessionID]
	if !ok {
		return
	}
	if _, exists := subs[sub]; !exists {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.subs, sessionID)
	}
	h.logger.Info("Feed observer unregistered", "session_id", sessionID)
}

type wsMessage struct {
	Type string `json:"type"`
}

// Serve upgrades the request and streams the session's events until the
// client disconnects or the session is closed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	sub := h.register(sessionID)
	defer h.unregister(sessionID, sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pongs := make(chan struct{}, 1)
	go func() {
		defer cancel()
		h.readLoop(ctx, ws, sessionID, pongs)
	}()

	for {
		select {
		case ev, ok := <-sub.events:
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, ev); err != nil {
				h.logger.Debug("Feed write failed", "error", err, "session_id", sessionID)
				return
			}
		case <-pongs:
			if err := writeJSON(ctx, ws, wsMessage{Type: "pong"}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// readLoop consumes client frames. Observers only send pings.
func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string, pongs chan<- struct{}) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "session_id", sessionID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}
		var msg wsMessage
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
