package middleware

import (
	"net/http"
	"strconv"

	"github.com/rampantspark/sitecounter/internal/ratelimit"
)

// RateLimit creates a middleware that enforces rate limiting per client.
//
// Rejected requests get a JSON 429 with a Retry-After header.
//
// Parameters:
//   - limiter: the rate limiter instance
//   - clientKey: function to extract the client key (usually the address) from a request
//
// Returns a middleware function that wraps an http.Handler.
func RateLimit(limiter *ratelimit.Limiter, clientKey func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfter()))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
