// Package identity resolves a stable anonymous identifier for each request.
//
// Two strategies exist and a deployment uses exactly one of them:
//   - cookie: a random UUID kept in the visitor_id cookie for 30 days
//   - network: the client address paired with the user agent, recomputed
//     on every request
package identity

import (
	"fmt"
	"net/http"
	"strings"
)

// Mode names an identity strategy.
type Mode string

const (
	ModeCookie  Mode = "cookie"
	ModeNetwork Mode = "network"
)

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCookie:
		return ModeCookie, nil
	case ModeNetwork:
		return ModeNetwork, nil
	default:
		return "", fmt.Errorf("unknown identity mode %q (want %q or %q)", s, ModeCookie, ModeNetwork)
	}
}

// Identity is the resolved identifier for one request.
type Identity struct {
	ID    string
	IsNew bool // Freshly generated token; always false in network mode
	Mode  Mode
}

// Short returns the identifier truncated for logging.
func (id Identity) Short() string {
	return Truncate(id.ID)
}

// Resolver produces an Identity from an inbound request.
//
// Resolve never fails: missing data degrades to defined fallback values.
type Resolver interface {
	Resolve(r *http.Request) Identity
	// Persist stores whatever the client must send back next time.
	Persist(w http.ResponseWriter, id Identity)
	Mode() Mode
}

// Options configures the strategies.
type Options struct {
	TrustProxy   bool // Use X-Forwarded-For in network mode
	SecureCookie bool // Set the Secure flag on the visitor cookie
}

// New returns the resolver for mode.
func New(mode Mode, opts Options) (Resolver, error) {
	switch mode {
	case ModeCookie:
		return NewCookieResolver(opts.SecureCookie), nil
	case ModeNetwork:
		return NewNetworkResolver(opts.TrustProxy), nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", mode)
	}
}

// Truncate shortens an identifier to its first 8 characters for logs.
func Truncate(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
