package printjob

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/domain/wallet"
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

func actorFrom(r *http.Request) Actor {
	return Actor{ID: middleware.GetUserID(r.Context()), Staff: middleware.IsStaff(r.Context())}
}

// decode reads an optional JSON body and validates it. It writes the error
// response and returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := response.DecodeJSON(r.Body, req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid JSON body")
		return false
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return false
	}
	return true
}

func jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /jobs
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !decode(w, r, &req) {
		return
	}

	job, err := h.service.CreateJob(r.Context(), middleware.GetUserID(r.Context()), req.ToInput())
	if err != nil {
		h.writeError(w, r, "printjob.create", err)
		return
	}
	response.Created(w, job)
}

// ListMine handles GET /jobs
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.list(w, r, &userID)
}

// ListAll handles GET /admin/jobs?status=a,b&user_id=
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
			st := Status(strings.TrimSpace(part))
			if !st.Valid() {
				response.ValidationError(w, map[string]string{"status": "Invalid job status"})
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	page, limit := response.ParsePagination(r)
	jobs, total, err := h.service.ListJobs(r.Context(), filter, Pagination{Page: page, Limit: limit})
	if err != nil {
		h.writeError(w, r, "printjob.list", err)
		return
	}
	response.WithMeta(w, ListResponse{Jobs: jobs}, response.NewMeta(total, page, limit))
}

// Get handles GET /jobs/{id} and GET /admin/jobs/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	job, err := h.service.GetJob(r.Context(), id, actorFrom(r))
	if err != nil {
		h.writeError(w, r, "printjob.get", err)
		return
	}
	response.OK(w, job)
}

// Decide handles POST /jobs/{id}/decision
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.service.SetUserDecision(r.Context(), id, middleware.GetUserID(r.Context()), DecisionState(req.Decision), req.Message)
	if err != nil {
		h.writeError(w, r, "printjob.decide", err)
		return
	}
	response.OK(w, job)
}

// Approve handles POST /jobs/{id}/approve. It charges a job whose decision
// was already recorded as approved and exists for callers retrying a charge
// that failed after the decision, or for older clients that record the
// decision separately. New clients use POST /jobs/{id}/decision.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	job, err := h.service.ApproveAndCharge(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, "printjob.approve", err)
		return
	}
	response.OK(w, job)
}

// Cancel handles POST /jobs/{id}/cancel and POST /admin/jobs/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.service.CancelJob(r.Context(), id, actorFrom(r), req.Reason)
	if err != nil {
		h.writeError(w, r, "printjob.cancel", err)
		return
	}
	response.OK(w, job)
}

// Quote handles POST /admin/jobs/{id}/quote
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	var req QuoteRequest
	if !decode(w, r, &req) {
		return
	}
	staffID := middleware.GetUserID(r.Context())
	job, err := h.service.SetQuote(r.Context(), id, staffID, req.ToQuote(staffID))
	if err != nil {
		h.writeError(w, r, "printjob.quote", err)
		return
	}
	response.OK(w, job)
}

// Start handles POST /admin/jobs/{id}/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	var req StartRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.service.StartJob(r.Context(), id, req.ResourceID)
	if err != nil {
		h.writeError(w, r, "printjob.start", err)
		return
	}
	response.OK(w, job)
}

// Complete handles POST /admin/jobs/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	var req CompleteRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.service.CompleteJob(r.Context(), id, middleware.GetUserID(r.Context()), Actuals{
		Hours:  req.Hours,
		Grams:  req.Grams,
		Photos: req.Photos,
	})
	if err != nil {
		h.writeError(w, r, "printjob.complete", err)
		return
	}
	response.OK(w, job)
}

// MarkError handles POST /admin/jobs/{id}/error
func (h *Handler) MarkError(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	var req ErrorRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.service.MarkError(r.Context(), id, req.Message)
	if err != nil {
		h.writeError(w, r, "printjob.error", err)
		return
	}
	response.OK(w, job)
}

// Refund handles POST /admin/jobs/{id}/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	var req RefundRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.service.RefundJob(r.Context(), id, middleware.GetUserID(r.Context()), req.Note)
	if err != nil {
		h.writeError(w, r, "printjob.refund", err)
		return
	}
	response.OK(w, job)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verrs ValidationErrors
	var bucketErr *wallet.BucketError

	switch {
	case errors.As(err, &verrs):
		response.ValidationError(w, verrs)
	case errors.Is(err, ErrJobNotFound):
		response.NotFound(w, "Job not found")
	case errors.Is(err, ErrNotYourJob):
		response.Forbidden(w, "NOT_YOUR_JOB", "Job belongs to another customer")
	case errors.Is(err, ErrStaffOnly):
		response.Forbidden(w, "STAFF_ONLY", "Only staff can perform this action")
	case errors.Is(err, ErrNotQuoted):
		response.Conflict(w, "NOT_QUOTED", "Job is not awaiting a decision")
	case errors.Is(err, ErrNotApproved):
		response.Conflict(w, "NOT_APPROVED", "Quote has not been approved")
	case errors.Is(err, ErrQuoteDecided):
		response.Conflict(w, "QUOTE_DECIDED", "Customer already decided on this quote")
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(w, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, ErrAlreadyRefunded):
		response.Conflict(w, "ALREADY_REFUNDED", "Job was already refunded")
	case errors.Is(err, ErrNotRefundable):
		response.Conflict(w, "NOT_REFUNDABLE", "Job has no refundable charge")
	case errors.Is(err, ErrResourceRequired):
		response.ValidationError(w, map[string]string{"resource_id": "This field is required"})
	case errors.Is(err, wallet.ErrInsufficientHours):
		response.PaymentRequired(w, "INSUFFICIENT_HOURS", err.Error())
	case errors.As(err, &bucketErr), errors.Is(err, wallet.ErrInsufficientFilament):
		response.PaymentRequired(w, "INSUFFICIENT_FILAMENT", err.Error())
	case errors.Is(err, wallet.ErrWalletNotFound):
		response.PaymentRequired(w, "WALLET_NOT_FOUND", "No funded wallet, please top up first")
	case errors.Is(err, txretry.ErrConflict):
		response.TransientConflict(w)
	default:
		errorhandler.Internal(r.Context(), w, op, err)
	}
}
