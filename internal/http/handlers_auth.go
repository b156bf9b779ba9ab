package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/service"
)

// AuthHandlers provides HTTP handlers for the three login paths, the shared
// OAuth callback, and session lifecycle operations.
type AuthHandlers struct {
	Auth         *service.AuthService
	Google       *service.GoogleService
	Deletion     *service.DeletionService
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LocalLogin handles email/password authentication.
// POST /auth/login.
func (h *AuthHandlers) LocalLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	sess, err := h.Auth.LocalLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	setSessionCookie(w, r, h.CookieDomain, sess)
	WriteJSON(w, http.StatusOK, sessionPayload(sess))
}

type directoryLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// DirectoryLogin handles directory username/password authentication.
// POST /auth/ldap-login.
func (h *AuthHandlers) DirectoryLogin(w http.ResponseWriter, r *http.Request) {
	var req directoryLoginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	sess, err := h.Auth.DirectoryLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	setSessionCookie(w, r, h.CookieDomain, sess)
	WriteJSON(w, http.StatusOK, sessionPayload(sess))
}

// GoogleLogin redirects an anonymous visitor to the identity-scope consent
// screen.
// GET /auth/google.
func (h *AuthHandlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.Google.BeginLogin()
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if authURL == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "google_login_unavailable",
			Err:     errors.New("google authentication is not configured"),
		})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// GoogleSync redirects an authenticated federated principal to the
// elevated-scope consent screen.
// GET /auth/google/sync.
func (h *AuthHandlers) GoogleSync(w http.ResponseWriter, r *http.Request) {
	req := SessionFromContext(r.Context())
	if req == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	authURL, err := h.Google.BeginSync(req.Principal)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if authURL == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "google_sync_unavailable",
			Err:     errors.New("google authentication is not configured"),
		})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// GoogleCallback completes whichever flow the state payload identifies.
// GET /auth/google/callback?code=<code>&state=<state>.
func (h *AuthHandlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}

	result, err := h.Google.HandleCallback(r.Context(), state, code)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if result.Unsaved {
		h.logger().WarnContext(r.Context(), "login proceeding on unsaved principal",
			"subject", result.Session.Credential.Subject.String())
	}

	setSessionCookie(w, r, h.CookieDomain, result.Session)
	http.Redirect(w, r, postCallbackRedirect(result), http.StatusFound)
}

// postCallbackRedirect picks the landing page by flow. A fresh federated
// login that has not completed onboarding lands on the onboarding page.
func postCallbackRedirect(result *service.CallbackResult) string {
	if result.IsSync {
		return "/settings/mail-sync"
	}
	if fp, ok := result.Session.Principal.(identity.FederatedPrincipal); ok && !fp.OnboardingComplete {
		return "/onboarding"
	}
	return "/"
}

// SkipOnboarding marks onboarding complete without granting mail access.
// POST /auth/google/skip.
func (h *AuthHandlers) SkipOnboarding(w http.ResponseWriter, r *http.Request) {
	req := SessionFromContext(r.Context())
	if req == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	p, err := h.Google.SkipOnboarding(r.Context(), req.Principal)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"onboarding_complete": p.OnboardingComplete,
		"mail_synced":         p.MailSynced,
	})
}

// Logout revokes the presented credential and clears the cookie.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.Auth.Logout(r.Context(), token); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	clearSessionCookie(w, r, h.CookieDomain)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	req, err := h.Auth.Authenticate(r.Context(), token)
	if err != nil {
		clearSessionCookie(w, r, h.CookieDomain)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	if req.Refreshed != nil {
		setSessionCookie(w, r, h.CookieDomain, req.Refreshed)
	}

	payload := map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"subject": req.Credential.Subject.String(),
			"email":   req.Principal.PrincipalEmail(),
			"role":    req.Principal.PrincipalRole(),
		},
		"expires_at": req.Credential.ExpiresAt,
	}
	if fp, ok := req.Principal.(identity.FederatedPrincipal); ok {
		payload["onboarding_complete"] = fp.OnboardingComplete
		payload["mail_synced"] = fp.MailSynced
	}

	// Manager references are informational; a failed lookup degrades to an
	// empty list rather than failing the status check.
	managers, err := h.Auth.Managers(r.Context(), req.Credential.Subject)
	if err != nil {
		h.logger().WarnContext(r.Context(), "manager lookup failed",
			"subject", req.Credential.Subject.String(), "error", err)
		managers = nil
	}
	if managers == nil {
		managers = []identity.ManagerReference{}
	}
	payload["managers"] = managers

	WriteJSON(w, http.StatusOK, payload)
}

// DeleteAccount removes the calling principal's identity record.
// DELETE /api/account.
func (h *AuthHandlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	req := SessionFromContext(r.Context())
	if req == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	if err := h.Deletion.Delete(r.Context(), req.Principal); err != nil {
		WriteAppError(w, err)
		return
	}
	clearSessionCookie(w, r, h.CookieDomain)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// sessionPayload shapes the login response body.
func sessionPayload(sess *service.IssuedSession) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"subject": sess.Credential.Subject.String(),
			"email":   sess.Principal.PrincipalEmail(),
			"role":    sess.Principal.PrincipalRole(),
		},
		"expires_at": sess.Credential.ExpiresAt,
	}
}
