package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/oakmont/insights-api/internal/service"
)

// SessionCookieName carries the signed session credential. SameSite is Lax
// on every path: the OAuth provider returns via a top-level GET redirect,
// which Lax permits, so the callback still sees the cookie.
const SessionCookieName = "insights_session"

// setSessionCookie writes the credential cookie with an expiry matching the
// credential's own.
func setSessionCookie(w http.ResponseWriter, r *http.Request, domain string, sess *service.IssuedSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Domain:   domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(sess.Credential.ExpiresAt).Seconds()),
	})
}

// clearSessionCookie expires the credential cookie, mirroring the attributes
// used when setting it so browsers actually drop it.
func clearSessionCookie(w http.ResponseWriter, r *http.Request, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

// sessionToken reads the credential from the request cookie. Empty when
// absent.
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
