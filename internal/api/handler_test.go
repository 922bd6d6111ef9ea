//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/wargame/internal/checkpoint"
	"github.com/ashureev/wargame/internal/identity"
	"github.com/ashureev/wargame/internal/llm"
	"github.com/ashureev/wargame/internal/session"
	"github.com/ashureev/wargame/internal/wargame"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantPublic bool
	}{
		{wargame.UserInputf("bad"), http.StatusBadRequest, true},
		{session.ErrSessionNotFound, http.StatusNotFound, true},
		{fmt.Errorf("rollback: %w", checkpoint.ErrNotFound), http.StatusNotFound, true},
		{wargame.ErrTurnInProgress, http.StatusConflict, true},
		{wargame.ErrInactive, http.StatusConflict, true},
		{wargame.ErrAlreadyActive, http.StatusConflict, true},
		{&wargame.BackendError{Stage: "narrate", Err: errors.New("boom")}, http.StatusServiceUnavailable, false},
		{&wargame.ParseError{Stage: "initialize", Reason: "empty reply"}, http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		status, public := StatusFor(tt.err)
		if status != tt.wantStatus || public != tt.wantPublic {
			t.Errorf("StatusFor(%v) = %d,%v; want %d,%v", tt.err, status, public, tt.wantStatus, tt.wantPublic)
		}
	}
}

type stubBackend struct {
	fail bool
}

func (stubBackend) Capabilities() llm.Capabilities { return llm.Capabilities{} }

func (b stubBackend) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	if b.fail {
		return llm.Response{}, errors.New("upstream exploded with secret detail")
	}
	if strings.HasPrefix(req.System, "You forecast") {
		return llm.Response{Text: "# Outcomes\n- 1 | The convoy arrives."}, nil
	}
	return llm.Response{Text: "# Time Offset\nT+1h\n# Narrative\nThe **tension** rises."}, nil
}

func newTestServer(t *testing.T, backend llm.Backend, limit int) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	engine := wargame.NewEngine(backend, wargame.Options{Seed: 1})
	svc := session.NewService(engine, session.NewStore(), checkpoint.NewMemoryStore(), nil)
	h := NewHandler(svc, nil, NewRateLimiter(ctx, limit, time.Minute), nil)

	r := chi.NewRouter()
	r.Use(identity.Middleware)
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func (c client) do(method, path, player, body string) (int, map[string]any) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatal(err)
	}
	if player != "" {
		req.Header.Set(identity.PlayerHeaderName, player)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (c client) startSession() string {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/sessions", "", "")
	if status != http.StatusCreated {
		c.t.Fatalf("create session status = %d", status)
	}
	id := body["id"].(string)
	if status, body := c.do(http.MethodPut, "/api/sessions/"+id+"/roles", "", `{"roles":"Alice: General\nBob: Envoy"}`); status != http.StatusOK {
		c.t.Fatalf("assign roles status = %d: %v", status, body)
	}
	if status, body := c.do(http.MethodPost, "/api/sessions/"+id+"/scenario", "", `{"seed":"Tanks gather at the border."}`); status != http.StatusOK {
		c.t.Fatalf("start scenario status = %d: %v", status, body)
	}
	return id
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()

	c := client{t, newTestServer(t, stubBackend{}, 10)}
	id := c.startSession()
	base := "/api/sessions/" + id

	status, _ := c.do(http.MethodPost, base+"/interactions", "Alice", `{"kind":"action","content":"Send the convoy."}`)
	if status != http.StatusCreated {
		t.Fatalf("enqueue status = %d", status)
	}
	status, body := c.do(http.MethodGet, base+"/interactions", "", "")
	if status != http.StatusOK || len(body["queue"].([]any)) != 1 {
		t.Fatalf("queue = %d %v", status, body)
	}

	status, body = c.do(http.MethodPost, base+"/process", "", "")
	if status != http.StatusOK {
		t.Fatalf("process status = %d: %v", status, body)
	}
	if body["checkpoint_key"] == "" || body["history_length"].(float64) != 4 {
		t.Errorf("process body = %v", body)
	}

	status, body = c.do(http.MethodPost, base+"/checkpoints", "", "")
	if status != http.StatusCreated {
		t.Fatalf("checkpoint status = %d", status)
	}
	key := body["key"].(string)

	status, body = c.do(http.MethodPost, base+"/rollback", "", fmt.Sprintf(`{"key":%q}`, key))
	if status != http.StatusOK || len(body["messages"].([]any)) != 4 {
		t.Fatalf("rollback = %d %v", status, body)
	}

	status, body = c.do(http.MethodGet, base+"/history", "", "")
	if status != http.StatusOK || len(body["messages"].([]any)) != 4 {
		t.Fatalf("history = %d %v", status, body)
	}

	status, body = c.do(http.MethodGet, "/api/sessions", "", "")
	if ids, _ := body["sessions"].([]any); status != http.StatusOK || len(ids) != 1 || ids[0] != id {
		t.Fatalf("list sessions = %d %v", status, body)
	}
}

func TestSessionErrors(t *testing.T) {
	t.Parallel()

	c := client{t, newTestServer(t, stubBackend{}, 10)}
	id := c.startSession()
	base := "/api/sessions/" + id

	tests := []struct {
		name       string
		method     string
		path       string
		player     string
		body       string
		wantStatus int
	}{
		{"unknown session", http.MethodGet, "/api/sessions/nope/history", "", "", http.StatusNotFound},
		{"missing player", http.MethodPost, base + "/interactions", "", `{"kind":"info","content":"x"}`, http.StatusBadRequest},
		{"unassigned player", http.MethodPost, base + "/interactions", "Mallory", `{"kind":"info","content":"x"}`, http.StatusBadRequest},
		{"bad kind", http.MethodPost, base + "/interactions", "Alice", `{"kind":"shout","content":"x"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, base + "/interactions", "Alice", `{`, http.StatusBadRequest},
		{"dequeue out of range", http.MethodDelete, base + "/interactions/5", "", "", http.StatusBadRequest},
		{"dequeue non-integer", http.MethodDelete, base + "/interactions/x", "", "", http.StatusBadRequest},
		{"empty queue", http.MethodPost, base + "/process", "", "", http.StatusBadRequest},
		{"unknown checkpoint", http.MethodPost, base + "/rollback", "", `{"key":"abc"}`, http.StatusNotFound},
		{"missing key", http.MethodPost, base + "/rollback", "", `{}`, http.StatusBadRequest},
		{"restart", http.MethodPost, base + "/scenario", "", `{"seed":"again"}`, http.StatusConflict},
		{"roles while active", http.MethodPut, base + "/roles", "", `{"roles":"Carol: Spy"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		if status, body := c.do(tt.method, tt.path, tt.player, tt.body); status != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d (%v)", tt.name, status, tt.wantStatus, body)
		}
	}
}

func TestBackendFailureIsGeneric(t *testing.T) {
	t.Parallel()

	c := client{t, newTestServer(t, stubBackend{fail: true}, 10)}
	status, body := c.do(http.MethodPost, "/api/sessions", "", "")
	if status != http.StatusCreated {
		t.Fatal(status)
	}
	base := "/api/sessions/" + body["id"].(string)
	c.do(http.MethodPut, base+"/roles", "", `{"roles":"Alice: General"}`)

	status, body = c.do(http.MethodPost, base+"/scenario", "", `{"seed":"x"}`)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
	if strings.Contains(fmt.Sprint(body["error"]), "secret") {
		t.Errorf("error leaked backend detail: %v", body["error"])
	}
}

func TestEnqueueRateLimited(t *testing.T) {
	t.Parallel()

	c := client{t, newTestServer(t, stubBackend{}, 2)}
	base := "/api/sessions/" + c.startSession()

	for i := 0; i < 2; i++ {
		if status, _ := c.do(http.MethodPost, base+"/interactions", "Alice", `{"kind":"info","content":"x"}`); status != http.StatusCreated {
			t.Fatalf("enqueue %d status = %d", i, status)
		}
	}
	if status, _ := c.do(http.MethodPost, base+"/interactions", "Alice", `{"kind":"info","content":"x"}`); status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", status)
	}
	if status, _ := c.do(http.MethodPost, base+"/interactions", "Bob", `{"kind":"info","content":"x"}`); status != http.StatusCreated {
		t.Fatalf("other player status = %d, want 201", status)
	}
}

func TestTranscriptHTML(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, stubBackend{}, 10)
	c := client{t, srv}
	id := c.startSession()

	resp, err := http.Get(srv.URL + "/api/sessions/" + id + "/transcript.html")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q", ct)
	}
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(page), "<strong>tension</strong>") {
		t.Errorf("transcript missing rendered markdown:\n%s", page)
	}
}

func TestRenderTranscriptStripsUnsafeLinks(t *testing.T) {
	t.Parallel()

	page, err := RenderTranscript("s", nil)
	if err != nil || !strings.Contains(string(page), "has not started") {
		t.Fatalf("empty transcript = %q, %v", page, err)
	}
	html := string(renderMarkdown("[click](javascript:alert(1))"))
	if strings.Contains(html, "javascript:") {
		t.Errorf("unsafe href survived: %s", html)
	}
}
