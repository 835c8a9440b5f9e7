package upload

import (
	"time"

	"github.com/printhub/printhub-api/internal/domain/printjob"
)

// InitRequest declares a model file the client is about to upload.
type InitRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
	Size     int64  `json:"size" validate:"required,gt=0"`
}

// InitResponse carries the signed upload and the descriptor to submit with
// the job once the upload finished.
type InitResponse struct {
	UploadURL string              `json:"upload_url"`
	Method    string              `json:"method"`
	Headers   map[string][]string `json:"headers,omitempty"`
	ExpiresAt time.Time           `json:"expires_at"`
	Model     printjob.Model      `json:"model"`
}

type ConfirmRequest struct {
	StoragePath string `json:"storage_path" validate:"required"`
}

type ConfirmResponse struct {
	Model    printjob.Model `json:"model"`
	Uploaded bool           `json:"uploaded"`
}
