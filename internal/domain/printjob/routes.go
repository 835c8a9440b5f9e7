package printjob

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the customer job router. limit guards mutating endpoints.
func (h *Handler) Routes(limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListMine)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/", h.Create)
		r.Post("/{id}/decision", h.Decide)
		r.Post("/{id}/approve", h.Approve) // charge retry for stored approvals
		r.Post("/{id}/cancel", h.Cancel)
	})

	return r
}

// AdminRoutes returns the staff job router.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListAll)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/quote", h.Quote)
	r.Post("/{id}/start", h.Start)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/error", h.MarkError)
	r.Post("/{id}/refund", h.Refund)

	return r
}
