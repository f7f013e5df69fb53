package server

import (
	"net/http"
	"net/url"
	"strings"
)

// corsMiddleware adds CORS headers based on allowed origins configuration.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if allowed, wildcard := s.isOriginAllowed(origin); allowed {
				if wildcard {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds standard security headers to responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isOriginAllowed(origin string) (allowed bool, wildcard bool) {
	origin = strings.TrimSpace(origin)
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false, false
	}
	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)

	wildcardPresent := false
	for _, allowedOrigin := range s.cfg.AllowedOrigins {
		allowedOrigin = strings.TrimSpace(allowedOrigin)
		switch {
		case allowedOrigin == "":
		case allowedOrigin == "*":
			wildcardPresent = true
		case strings.EqualFold(strings.TrimRight(allowedOrigin, "/"), normalized):
			return true, false
		}
	}
	return wildcardPresent, wildcardPresent
}

// originPatterns converts the allow-list to websocket host patterns.
func (s *Server) originPatterns() (patterns []string, anyOrigin bool) {
	for _, allowedOrigin := range s.cfg.AllowedOrigins {
		allowedOrigin = strings.TrimSpace(allowedOrigin)
		if allowedOrigin == "*" {
			return nil, true
		}
		if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns, false
}
