package identity

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// UnknownValue replaces a missing client address or user agent.
const UnknownValue = "unknown"

// MaxUserAgentLength bounds the user agent part of a network identity, in
// bytes.
const MaxUserAgentLength = 512

// NetworkResolver identifies visitors by client address and user agent.
type NetworkResolver struct {
	trustProxy bool
}

// NewNetworkResolver creates a network composite resolver.
//
// Parameters:
//   - trustProxy: whether to take the address from X-Forwarded-For
//
// Returns a new NetworkResolver instance.
func NewNetworkResolver(trustProxy bool) *NetworkResolver {
	return &NetworkResolver{
		trustProxy: trustProxy,
	}
}

// Resolve pairs the client address with the user agent.
func (n *NetworkResolver) Resolve(r *http.Request) Identity {
	return Identity{
		ID:   Composite(ClientIP(r, n.trustProxy), UserAgent(r)),
		Mode: ModeNetwork,
	}
}

// Persist is a no-op: network identities are recomputed per request.
func (n *NetworkResolver) Persist(http.ResponseWriter, Identity) {}

func (n *NetworkResolver) Mode() Mode {
	return ModeNetwork
}

// Composite joins an address and a user agent into one identifier.
func Composite(ip, userAgent string) string {
	return ip + "|" + userAgent
}

// ClientIP extracts the client address from the request.
//
// When trustProxy is set, the first comma-separated entry of
// X-Forwarded-For is used, then X-Real-IP. Header values that are not valid
// IP addresses are ignored. Otherwise the transport peer address is used
// with the port removed.
//
// Parameters:
//   - r: the HTTP request
//   - trustProxy: whether to honour proxy headers
//
// Returns the client address, or "unknown" when none is available.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return UnknownValue
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// UserAgent returns the User-Agent header cut to MaxUserAgentLength bytes,
// or "unknown" when absent.
func UserAgent(r *http.Request) string {
	if ua := strings.TrimSpace(r.Header.Get("User-Agent")); ua != "" {
		return clip(ua, MaxUserAgentLength)
	}
	return UnknownValue
}

// clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
