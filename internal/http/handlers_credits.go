package httpx

import (
	"errors"
	"net/http"

	"github.com/interviewlens/lens-api/internal/service"
)

// CreditHandlers exposes the caller's credit balance.
type CreditHandlers struct {
	Svc *service.CreditService
}

// Balance handles GET /v1/credits.
func (h *CreditHandlers) Balance(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	}

	balance, err := h.Svc.Balance(r.Context(), user.ID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]float64{"credits": balance})
}
