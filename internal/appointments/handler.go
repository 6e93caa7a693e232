package appointments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/auth"
	"github.com/wolfman30/mediq-platform/internal/http/respond"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

// PlanLookup resolves the subscription tier in force for a user.
type PlanLookup interface {
	PlanFor(ctx context.Context, userID uuid.UUID) (accounts.Plan, error)
}

// Handler exposes booking, queue and lifecycle endpoints.
type Handler struct {
	svc    *Service
	plans  PlanLookup
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(svc *Service, plans PlanLookup, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, plans: plans, logger: logger}
}

// WriteError maps domain errors onto the JSON error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, ErrAlreadyClaimed):
		respond.Error(w, http.StatusConflict, "already_claimed", "appointment already claimed")
	case errors.Is(err, ErrSlotUnavailable):
		respond.Error(w, http.StatusConflict, "slot_unavailable", "slot is not available")
	case errors.Is(err, ErrNotFound), errors.Is(err, accounts.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, "forbidden", "not allowed for this appointment")
	case errors.Is(err, ErrInvalidState):
		respond.Error(w, http.StatusConflict, "invalid_state", "appointment status does not allow this action")
	case errors.Is(err, ErrDuplicateReview):
		respond.Error(w, http.StatusConflict, "duplicate_review", "appointment already reviewed")
	case errors.Is(err, ErrConflict):
		respond.Error(w, http.StatusConflict, "conflict", "appointment changed concurrently")
	case errors.Is(err, ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		logger.Error("appointments request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, h.logger, err)
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
	}
	return p, ok
}

func doctorPrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return p, false
	}
	if p.Role != auth.RoleDoctor || p.DoctorID == uuid.Nil {
		respond.Error(w, http.StatusForbidden, "forbidden", "doctor profile required")
		return p, false
	}
	return p, true
}

func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_input", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

type createSlotRequest struct {
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	StartTime time.Time  `json:"start_time"`
}

// CreateSlot handles POST /slots. Doctors publish for themselves; admins name the doctor.
func (h *Handler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req createSlotRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}
	doctorID := p.DoctorID
	if p.Role == auth.RoleAdmin {
		if req.DoctorID == nil {
			respond.Error(w, http.StatusBadRequest, "invalid_input", "doctor_id required")
			return
		}
		doctorID = *req.DoctorID
	} else if req.DoctorID != nil && *req.DoctorID != p.DoctorID {
		respond.Error(w, http.StatusForbidden, "forbidden", "cannot publish slots for another doctor")
		return
	}
	slot, err := h.svc.CreateSlot(r.Context(), doctorID, req.StartTime)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, slot)
}

// ListSlots handles GET /doctors/{doctorID}/slots.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := urlUUID(w, r, "doctorID")
	if !ok {
		return
	}
	slots, err := h.svc.ListOpenSlots(r.Context(), doctorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"slots": slots})
}

type bookRequest struct {
	SlotID uuid.UUID `json:"slot_id"`
	Notes  string    `json:"notes"`
}

// Book handles POST /appointments/book.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if err := respond.Decode(r, &req); err != nil || req.SlotID == uuid.Nil {
		respond.Error(w, http.StatusBadRequest, "invalid_input", "slot_id required")
		return
	}
	a, err := h.svc.BookSlot(r.Context(), req.SlotID, p.UserID, req.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, a)
}

type bookGeneralRequest struct {
	Notes string `json:"notes"`
}

// BookGeneral handles POST /appointments/book-general.
func (h *Handler) BookGeneral(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req bookGeneralRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}
	plan := accounts.PlanFree
	if h.plans != nil {
		resolved, err := h.plans.PlanFor(r.Context(), p.UserID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		plan = resolved
	}
	a, err := h.svc.BookGeneral(r.Context(), p.UserID, req.Notes, plan)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, a)
}

// ListMine handles GET /appointments/my.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	views, err := h.svc.ListMyAppointments(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"appointments": views})
}

// Pay handles PUT /appointments/{id}/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	h.patientAction(w, r, h.svc.Pay)
}

// Cancel handles PUT /appointments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.patientAction(w, r, h.svc.CancelByPatient)
}

type actionFunc func(ctx context.Context, appointmentID, actorID uuid.UUID) (*Appointment, error)

func (h *Handler) patientAction(w http.ResponseWriter, r *http.Request, fn actionFunc) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	a, err := fn(r.Context(), id, p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

type reviewRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
}

// SubmitReview handles POST /reviews.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := respond.Decode(r, &req); err != nil || req.AppointmentID == uuid.Nil {
		respond.Error(w, http.StatusBadRequest, "invalid_input", "appointment_id and rating required")
		return
	}
	rv, err := h.svc.SubmitReview(r.Context(), req.AppointmentID, p.UserID, req.Rating, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, rv)
}

// Queue handles GET /doctor/queue.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	if _, ok := doctorPrincipal(w, r); !ok {
		return
	}
	views, err := h.svc.ListDoctorQueue(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"appointments": views})
}

// Requests handles GET /doctor/requests.
func (h *Handler) Requests(w http.ResponseWriter, r *http.Request) {
	p, ok := doctorPrincipal(w, r)
	if !ok {
		return
	}
	views, err := h.svc.ListDoctorRequests(r.Context(), p.DoctorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"appointments": views})
}

// Confirmed handles GET /doctor/appointments.
func (h *Handler) Confirmed(w http.ResponseWriter, r *http.Request) {
	p, ok := doctorPrincipal(w, r)
	if !ok {
		return
	}
	views, err := h.svc.ListDoctorConfirmed(r.Context(), p.DoctorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"appointments": views})
}

// Claim handles PUT /doctor/queue/{id}/claim.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	h.doctorAction(w, r, h.svc.Claim)
}

// DoctorAction handles PUT /doctor/appointments/{id}/{action}.
func (h *Handler) DoctorAction(w http.ResponseWriter, r *http.Request) {
	var fn actionFunc
	switch chi.URLParam(r, "action") {
	case "accept":
		fn = h.svc.Accept
	case "decline":
		fn = h.svc.Decline
	case "cancel":
		fn = h.svc.CancelByDoctor
	case "complete":
		fn = h.svc.Complete
	default:
		respond.Error(w, http.StatusNotFound, "not_found", "unknown action")
		return
	}
	h.doctorAction(w, r, fn)
}

func (h *Handler) doctorAction(w http.ResponseWriter, r *http.Request, fn actionFunc) {
	p, ok := doctorPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	a, err := fn(r.Context(), id, p.DoctorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}
