package httpx

import (
	"context"

	"github.com/oakmont/insights-api/internal/service"
)

// sessionContextKey is an unexported context key type for the authenticated
// request.
type sessionContextKey struct{}

// SetSessionInContext stores the authenticated request in the context.
func SetSessionInContext(ctx context.Context, req *service.AuthenticatedRequest) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, req)
}

// SessionFromContext retrieves the authenticated request set by the session
// middleware. Nil when the request was not authenticated.
func SessionFromContext(ctx context.Context) *service.AuthenticatedRequest {
	req, _ := ctx.Value(sessionContextKey{}).(*service.AuthenticatedRequest)
	return req
}
