package httpx

import (
	"log/slog"
	"net/http"

	"github.com/oakmont/insights-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth         *service.AuthService
	Google       *service.GoogleService
	Dashboard    *service.DashboardService
	Deletion     *service.DeletionService
	CookieDomain string
	Logger       *slog.Logger // Logger for request and panic logging (optional)
}

// NewRouter creates and configures a new HTTP router. Logging and panic
// recovery are applied by the caller so test routers stay quiet.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Auth:         services.Auth,
		Google:       services.Google,
		Deletion:     services.Deletion,
		CookieDomain: services.CookieDomain,
		Logger:       logger,
	}
	dashboardHandlers := &DashboardHandlers{Svc: services.Dashboard}

	sessionCfg := SessionConfig{Auth: services.Auth, CookieDomain: services.CookieDomain}
	requireSession := RequireSession(sessionCfg)

	registerAuthRoutes(mux, authHandlers, requireSession)
	registerAPIRoutes(mux, authHandlers, dashboardHandlers, requireSession)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, requireSession func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /auth/login", h.LocalLogin)
	mux.HandleFunc("POST /auth/ldap-login", h.DirectoryLogin)
	mux.HandleFunc("GET /auth/google", h.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", h.GoogleCallback)
	mux.Handle("GET /auth/google/sync", requireSession(http.HandlerFunc(h.GoogleSync)))
	mux.Handle("POST /auth/google/skip", requireSession(http.HandlerFunc(h.SkipOnboarding)))
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

func registerAPIRoutes(
	mux *http.ServeMux,
	auth *AuthHandlers,
	dashboard *DashboardHandlers,
	requireSession func(http.Handler) http.Handler,
) {
	mux.Handle("GET /api/dashboard", requireSession(http.HandlerFunc(dashboard.GetDashboard)))
	mux.Handle("DELETE /api/account", requireSession(http.HandlerFunc(auth.DeleteAccount)))
}
