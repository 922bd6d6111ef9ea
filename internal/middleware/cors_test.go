package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantStatus  int
		wantOrigin  string
		wantCredits bool
	}{
		{"explicit origin", []string{"https://game.example"}, "https://game.example", http.MethodGet, http.StatusTeapot, "https://game.example", true},
		{"wildcard", []string{"*"}, "https://any.example", http.MethodGet, http.StatusTeapot, "https://any.example", false},
		{"rejected origin", []string{"https://game.example"}, "https://evil.example", http.MethodGet, http.StatusTeapot, "", false},
		{"preflight", []string{"*"}, "https://any.example", http.MethodOptions, http.StatusOK, "https://any.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/api/sessions", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCredits {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCredits)
			}
			if tt.wantOrigin != "" && !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "X-Wargame-Player") {
				t.Error("Allow-Headers missing player header")
			}
		})
	}
}
