package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObserverHandlerServesIndex(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/", "/observe/unknown"} {
		rec := httptest.NewRecorder()
		ObserverHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Wargame observer") {
			t.Fatalf("%s: body does not contain the observer page", path)
		}
	}
}
