package wallet

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/middleware"
	"github.com/printhub/printhub-api/internal/pkg/errorhandler"
	"github.com/printhub/printhub-api/internal/pkg/logger"
	"github.com/printhub/printhub-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get handles GET /wallet
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.writeWallet(w, r, middleware.GetUserID(r.Context()))
}

// Ledger handles GET /wallet/ledger
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	h.writeLedger(w, r, middleware.GetUserID(r.Context()))
}

// GetForUser handles GET /admin/wallets/{userId}
func (h *Handler) GetForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	h.writeWallet(w, r, userID)
}

// LedgerForUser handles GET /admin/wallets/{userId}/ledger
func (h *Handler) LedgerForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	h.writeLedger(w, r, userID)
}

// Reconcile handles GET /admin/wallets/{userId}/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Reconcile(r.Context(), userID)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "wallet.reconcile", err)
		return
	}
	if !rec.Balanced {
		logger.FromContext(r.Context()).Error().
			Str("user_id", userID.String()).
			Interface("buckets", rec.Buckets).
			Msg("wallet does not reconcile with ledger")
	}
	response.OK(w, rec)
}

func (h *Handler) writeWallet(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	wal, err := h.svc.GetWallet(r.Context(), userID)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "wallet.get", err)
		return
	}
	response.OK(w, ToResponse(wal))
}

func (h *Handler) writeLedger(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	page, limit := response.ParsePagination(r)
	entries, total, err := h.svc.ListLedger(r.Context(), userID, Pagination{Page: page, Limit: limit})
	if err != nil {
		errorhandler.Internal(r.Context(), w, "wallet.ledger", err)
		return
	}
	response.WithMeta(w, entries, response.NewMeta(total, page, limit))
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return uuid.Nil, false
	}
	return id, true
}

// Routes mounts the caller's own wallet endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Get("/ledger", h.Ledger)
	return r
}

// AdminRoutes mounts staff wallet inspection endpoints.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{userId}", h.GetForUser)
	r.Get("/{userId}/ledger", h.LedgerForUser)
	r.Get("/{userId}/reconcile", h.Reconcile)
	return r
}
