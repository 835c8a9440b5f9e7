package upload

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printhub/printhub-api/internal/middleware"
	"github.com/printhub/printhub-api/internal/pkg/errorhandler"
	"github.com/printhub/printhub-api/internal/pkg/response"
	"github.com/printhub/printhub-api/internal/pkg/storage"
	"github.com/printhub/printhub-api/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Init handles POST /uploads/models
func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	out, err := h.service.Init(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		h.writeError(w, r, "upload.init", err)
		return
	}
	response.Created(w, out)
}

// Confirm handles POST /uploads/models/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	out, err := h.service.Confirm(r.Context(), middleware.GetUserID(r.Context()), req.StoragePath)
	if err != nil {
		h.writeError(w, r, "upload.confirm", err)
		return
	}
	if !out.Uploaded {
		response.NotFound(w, "Model has not been uploaded yet")
		return
	}
	response.OK(w, out)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrEmptyFile):
		response.ValidationError(w, map[string]string{"size": "File is empty"})
	case errors.Is(err, storage.ErrFileTooLarge):
		response.ValidationError(w, map[string]string{"size": "File exceeds the 200 MB limit"})
	case errors.Is(err, storage.ErrUnsupportedModel):
		response.ValidationError(w, map[string]string{"filename": "Allowed types: stl, 3mf, obj, step, stp, gcode"})
	case errors.Is(err, storage.ErrForeignStoragePath):
		response.Forbidden(w, "NOT_YOUR_UPLOAD", "Storage path belongs to another customer")
	case errors.Is(err, ErrStorageUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Model uploads are disabled")
	default:
		errorhandler.Internal(r.Context(), w, op, err)
	}
}

// Routes returns the upload router. limit guards signing.
func (h *Handler) Routes(limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(limit).Post("/models", h.Init)
	r.Post("/models/confirm", h.Confirm)
	return r
}
