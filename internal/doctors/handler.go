package doctors

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/mediq-platform/internal/auth"
	"github.com/wolfman30/mediq-platform/internal/http/respond"
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

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not_found", "doctor not found")
	case errors.Is(err, ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		h.logger.Error("doctors request failed", "path", r.URL.Path, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// List handles GET /doctors?specialty=&limit=&offset=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Specialty: q.Get("specialty")}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	list, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"doctors": list})
}

// Get handles GET /doctors/{doctorID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_input", "invalid doctorID")
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

func doctorID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok || p.Role != auth.RoleDoctor || p.DoctorID == uuid.Nil {
		respond.Error(w, http.StatusForbidden, "forbidden", "doctor profile required")
		return uuid.Nil, false
	}
	return p.DoctorID, true
}

// Stats handles GET /doctor/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := doctorID(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Stats(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

// UpdateMe handles PUT /doctor/me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := doctorID(w, r)
	if !ok {
		return
	}
	var u ProfileUpdate
	if err := respond.Decode(r, &u); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}
	d, err := h.svc.UpdateProfile(r.Context(), id, u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}
