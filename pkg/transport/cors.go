package transport

import (
	"net/http"
	"slices"
	"strings"
)

// CORSConfig controls the cross-origin headers emitted by CORS.
type CORSConfig struct {
	Origins     []string
	Methods     []string
	Credentials bool
}

// CORS returns middleware that answers preflight requests and adds the
// Access-Control-* headers for allowed origins. A single "*" origin allows
// every origin; with credentials enabled the request origin is echoed.
func CORS(cfg CORSConfig, allowHeaders ...string) Middleware {
	methods := strings.Join(cfg.Methods, ", ")
	headers := strings.Join(append([]string{"Content-Type", RequestIDHeader}, allowHeaders...), ", ")
	wildcard := slices.Contains(cfg.Origins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || slices.Contains(cfg.Origins, origin)) {
				h := w.Header()
				if wildcard && !cfg.Credentials {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				if cfg.Credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Expose-Headers", RequestIDHeader+", Content-Disposition")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds response headers that are safe defaults for a JSON
// API serving untrusted uploads.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}
