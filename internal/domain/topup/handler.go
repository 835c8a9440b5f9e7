package topup

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/middleware"
	"github.com/printhub/printhub-api/internal/pkg/errorhandler"
	"github.com/printhub/printhub-api/internal/pkg/response"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
	"github.com/printhub/printhub-api/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid top-up ID")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /topups
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTopUpRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	t, err := h.service.CreateTopUp(r.Context(), middleware.GetUserID(r.Context()), req.ToInput())
	if err != nil {
		h.writeError(w, r, "topup.create", err)
		return
	}
	response.Created(w, t)
}

// ListMine handles GET /topups
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.list(w, r, &userID)
}

// ListAll handles GET /admin/topups?status=pending&user_id=
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	var userID *uuid.UUID
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid user_id")
			return
		}
		userID = &id
	}
	h.list(w, r, userID)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, userID *uuid.UUID) {
	filter := Filter{UserID: userID}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := strings.TrimSpace(part)
			if err := validator.ValidateVar(st, "topup_status"); err != nil {
				response.ValidationError(w, map[string]string{"status": "Invalid top-up status"})
				return
			}
			filter.Statuses = append(filter.Statuses, Status(st))
		}
	}

	page, limit := response.ParsePagination(r)
	items, total, err := h.service.ListTopUps(r.Context(), filter, Pagination{Page: page, Limit: limit})
	if err != nil {
		h.writeError(w, r, "topup.list", err)
		return
	}
	response.WithMeta(w, ListResponse{TopUps: items}, response.NewMeta(total, page, limit))
}

// Get handles GET /topups/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTopUp(r.Context(), id, middleware.GetUserID(r.Context()), middleware.IsStaff(r.Context()))
	if err != nil {
		h.writeError(w, r, "topup.get", err)
		return
	}
	response.OK(w, t)
}

// Approve handles POST /admin/topups/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := h.service.ApproveTopUp(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, "topup.approve", err)
		return
	}
	response.OK(w, t)
}

// Reject handles POST /admin/topups/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req RejectRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	t, err := h.service.RejectTopUp(r.Context(), id, middleware.GetUserID(r.Context()), req.Note)
	if err != nil {
		h.writeError(w, r, "topup.reject", err)
		return
	}
	response.OK(w, t)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrTopUpNotFound):
		response.NotFound(w, "Top-up not found")
	case errors.Is(err, ErrNotYourTopUp):
		response.Forbidden(w, "NOT_YOUR_TOPUP", "Top-up belongs to another customer")
	case errors.Is(err, ErrTopUpFinalized):
		response.Conflict(w, "TOPUP_FINALIZED", "Top-up was already approved")
	case errors.Is(err, ErrEmptyTopUp):
		response.ValidationError(w, map[string]string{"hours": "Top-up must add hours or at least one filament item"})
	case errors.Is(err, ErrTopUpPrecision):
		response.ValidationError(w, map[string]string{"hours": "Hours and grams allow at most 4 decimal places and 10 integer digits"})
	case errors.Is(err, txretry.ErrConflict):
		response.TransientConflict(w)
	default:
		errorhandler.Internal(r.Context(), w, op, err)
	}
}

// Routes returns the customer top-up router. limit guards creation.
func (h *Handler) Routes(limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListMine)
	r.Get("/{id}", h.Get)
	r.With(limit).Post("/", h.Create)
	return r
}

// AdminRoutes returns the staff top-up router.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListAll)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	return r
}
