package accounts

import (
	"errors"
	"net/http"

	"github.com/wolfman30/mediq-platform/internal/auth"
	"github.com/wolfman30/mediq-platform/internal/http/respond"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

// Handler serves the caller's own account.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an accounts handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type accountResponse struct {
	*Account
	EffectivePlan Plan `json:"effective_plan"`
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}
	a, err := h.svc.Get(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, accountResponse{Account: a, EffectivePlan: a.EffectivePlan(h.svc.now())})
}

// Upgrade handles POST /subscription/upgrade.
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}
	a, err := h.svc.Upgrade(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, accountResponse{Account: a, EffectivePlan: a.EffectivePlan(h.svc.now())})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "not_found", "account not found")
		return
	}
	h.logger.Error("account request failed", "path", r.URL.Path, "error", err)
	respond.Error(w, http.StatusInternalServerError, "internal", "internal error")
}
