package middleware

import (
	"net/http"
	"path"
	"strings"
)

// originMatcher decides whether a request origin may receive CORS headers.
type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	patterns []string
}

// parseAllowedOrigins builds a matcher from configured origins. "*" allows
// every origin; entries containing * are glob patterns such as
// "https://*.example.org".
func parseAllowedOrigins(origins []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "":
		case o == "*":
			m.any = true
		case strings.Contains(o, "*"):
			m.patterns = append(m.patterns, o)
		default:
			m.exact[o] = struct{}{}
		}
	}
	return m
}

// isLocalhostOrigin returns true if the origin is http(s)://localhost:<port>.
func isLocalhostOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost:", "https://localhost:"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return origin == "http://localhost" || origin == "https://localhost"
}

// isOriginAllowed checks whether a request origin should receive CORS headers.
func (m originMatcher) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if m.any || isLocalhostOrigin(origin) {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, p := range m.patterns {
		// path.Match never lets * cross a /
		if ok, err := path.Match(p, origin); err == nil && ok {
			return true
		}
	}
	return false
}

// CORS returns middleware that handles CORS headers with an origin whitelist.
// Localhost origins are always permitted for development convenience.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := parseAllowedOrigins(origins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed.isOriginAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders returns middleware that sets basic security headers.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}
