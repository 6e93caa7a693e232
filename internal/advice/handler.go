package advice

import (
	"errors"
	"net/http"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/auth"
	"github.com/wolfman30/mediq-platform/internal/http/respond"
	"github.com/wolfman30/mediq-platform/internal/quota"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type askRequest struct {
	Message string `json:"message"`
}

// Ask handles POST /advice.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return
	}
	var req askRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	answer, err := h.svc.Ask(r.Context(), p.UserID, req.Message)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, answer)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, quota.ErrQuotaExceeded):
		respond.Error(w, http.StatusForbidden, "quota_exceeded", "Free plan daily limit reached. Upgrade to Premium for unlimited questions.")
	case errors.Is(err, quota.ErrRateLimited):
		respond.Error(w, http.StatusTooManyRequests, "rate_limited", "Too many questions in the last hour. Please take a break.")
	case errors.Is(err, accounts.ErrNotFound), errors.Is(err, quota.ErrUnknownUser):
		respond.Error(w, http.StatusNotFound, "not_found", "account not found")
	default:
		h.logger.Error("advice request failed", "user_id", p.UserID, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
