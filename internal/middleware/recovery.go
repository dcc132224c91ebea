package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// RecoverPanic creates a middleware that recovers from panics in HTTP handlers.
//
// The panic value and stack are logged; the client only receives a generic
// JSON 500 so internals never leak.
//
// Parameters:
//   - logger: structured logger instance for logging panic details
//
// Returns a middleware function that wraps an http.Handler.
func RecoverPanic(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
						"stack", string(debug.Stack()),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
