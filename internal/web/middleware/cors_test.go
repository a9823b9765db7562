package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{"empty origin", []string{"*"}, "", false},
		{"wildcard all", []string{"*"}, "https://anything.example", true},
		{"exact match", []string{"https://school.example.com"}, "https://school.example.com", true},
		{"exact with trailing slash", []string{"https://school.example.com/"}, "https://school.example.com", true},
		{"not listed", []string{"https://school.example.com"}, "https://evil.example.com", false},
		{"pattern match", []string{"https://*.example.org"}, "https://app.example.org", true},
		{"pattern other domain", []string{"https://*.example.org"}, "https://app.example.com", false},
		{"localhost always", nil, "http://localhost:3000", true},
		{"localhost lookalike", nil, "http://localhost.evil.com", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := parseAllowedOrigins(tc.origins)
			if got := m.isOriginAllowed(tc.origin); got != tc.want {
				t.Errorf("isOriginAllowed(%q) with %v = %v, want %v", tc.origin, tc.origins, got, tc.want)
			}
		})
	}
}

func TestCORS_Headers(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := CORS([]string{"https://school.example.com"})(next)

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Origin", "https://school.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected request to reach next handler, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://school.example.com" {
		t.Errorf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin should get no allow header, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h := CORS([]string{"*"})(next)

	req := httptest.NewRequest(http.MethodOptions, "/verify_pickup", nil)
	req.Header.Set("Origin", "https://kiosk.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}
	if called {
		t.Error("preflight must not reach the next handler")
	}
}
