package httpx

import (
	"errors"
	"net/http"

	"github.com/oakmont/insights-api/internal/service"
)

// DashboardHandlers provides HTTP handlers for the tenant-scoped dashboard
// read path.
type DashboardHandlers struct {
	Svc *service.DashboardService
}

// GetDashboard returns the dataset for the calling principal's tenant. A
// principal with no tenant mapping gets an empty dataset, not an error.
// GET /api/dashboard.
func (h *DashboardHandlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	req := SessionFromContext(r.Context())
	if req == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	ds, err := h.Svc.GetDashboard(r.Context(), req.Principal)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ds)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		return
	}
}
