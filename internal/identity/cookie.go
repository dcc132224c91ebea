package identity

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Cookie settings
const (
	CookieName   = "visitor_id"
	CookieMaxAge = 30 * 24 * time.Hour

	// MaxTokenLength is the longest cookie value accepted as a visitor
	// token. Issued tokens are 36 character UUIDs.
	MaxTokenLength = 128
)

// CookieResolver identifies visitors by a random token kept in a cookie.
type CookieResolver struct {
	secure bool
	newID  func() string
}

// NewCookieResolver creates a cookie based resolver.
//
// Parameters:
//   - secure: whether the cookie is only sent over HTTPS
//
// Returns a new CookieResolver instance.
func NewCookieResolver(secure bool) *CookieResolver {
	return &CookieResolver{
		secure: secure,
		newID:  uuid.NewString,
	}
}

// Resolve returns the token from the visitor_id cookie, or a fresh UUID when
// the cookie is missing, empty or longer than MaxTokenLength. The fresh token
// replaces the bad cookie once persisted.
func (c *CookieResolver) Resolve(r *http.Request) Identity {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" && len(cookie.Value) <= MaxTokenLength {
		return Identity{ID: cookie.Value, Mode: ModeCookie}
	}
	return Identity{ID: c.newID(), IsNew: true, Mode: ModeCookie}
}

// Persist sets the visitor cookie. Sending it on every response keeps the
// 30 day expiry sliding for returning visitors.
func (c *CookieResolver) Persist(w http.ResponseWriter, id Identity) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id.ID,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.secure,
	})
}

func (c *CookieResolver) Mode() Mode {
	return ModeCookie
}
