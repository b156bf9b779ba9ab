package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/oakmont/insights-api/internal/domain/identity"
	"github.com/oakmont/insights-api/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionConfig groups the dependencies of the session middlewares.
type SessionConfig struct {
	Auth         *service.AuthService
	CookieDomain string
}

// RequireSession returns a middleware that authenticates the credential
// cookie. When the service hands back a refreshed credential, the cookie is
// reissued on the response while the request proceeds on the old claims.
func RequireSession(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := authenticateRequest(w, r, cfg)
			if !ok {
				return
			}
			ctx := SetSessionInContext(r.Context(), req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns a middleware that requires the session's role to meet
// the threshold.
func RequireRole(cfg SessionConfig, required identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := authenticateRequest(w, r, cfg)
			if !ok {
				return
			}
			if !req.Principal.PrincipalRole().AtLeast(required) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			ctx := SetSessionInContext(r.Context(), req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticateRequest verifies the cookie credential, writing the error
// response itself on failure.
func authenticateRequest(w http.ResponseWriter, r *http.Request, cfg SessionConfig) (*service.AuthenticatedRequest, bool) {
	token := sessionToken(r)
	if token == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return nil, false
	}

	req, err := cfg.Auth.Authenticate(r.Context(), token)
	if err != nil {
		clearSessionCookie(w, r, cfg.CookieDomain)
		WriteAppError(w, err)
		return nil, false
	}

	if req.Refreshed != nil {
		setSessionCookie(w, r, cfg.CookieDomain, req.Refreshed)
	}
	return req, true
}
