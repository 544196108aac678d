package middleware

import (
	"net/http"
	"strings"

	"exam-portal/config"
)

const (
	corsAllowMethods = "POST, OPTIONS"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// EnableCORS answers pre-flight requests and adds CORS headers to every
// response. Only POST and OPTIONS reach next.
func EnableCORS(next http.HandlerFunc) http.HandlerFunc {
	return CORS(config.AppConfig.CORSAllowOrigin, corsAllowMethods)(next)
}

// CORS builds a CORS wrapper for the given origin and method list.
func CORS(origin, methods string) func(http.HandlerFunc) http.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			if origin != "*" {
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}
}

// Methods rejects requests whose method is not listed.
func Methods(next http.HandlerFunc, methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				next(w, r)
				return
			}
		}
		w.Header().Set("Allow", strings.Join(methods, ", "))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"ok":false,"error":"method_not_allowed"}` + "\n"))
	}
}
