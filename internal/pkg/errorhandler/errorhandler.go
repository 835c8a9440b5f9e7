// Package errorhandler logs failed requests and writes the error envelope.
package errorhandler

import (
	"context"
	"net/http"

	"github.com/printhub/printhub-api/internal/pkg/logger"
	"github.com/printhub/printhub-api/internal/pkg/response"
)

// Internal logs err and sends a generic 500.
func Internal(ctx context.Context, w http.ResponseWriter, op string, err error) {
	logger.FromContext(ctx).Error().
		Err(err).
		Str("op", op).
		Int("status_code", http.StatusInternalServerError).
		Msg("Request error")

	response.InternalError(w)
}

// Panic logs a recovered panic with its stack and sends a generic 500.
func Panic(ctx context.Context, w http.ResponseWriter, recovered interface{}, stack string) {
	logger.FromContext(ctx).Error().
		Interface("panic", recovered).
		Str("stack", stack).
		Msg("Request panic")

	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}
