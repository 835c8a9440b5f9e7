package storage

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when no object store was set up.
var ErrNotConfigured = errors.New("object storage not configured")

// Config holds S3-compatible connection settings. Endpoint is empty for AWS
// and set for MinIO or R2.
type Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PublicURL  string
	PresignTTL time.Duration
}

// Enabled reports whether enough is configured to build a client.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// PresignedRequest is a URL the client uploads to directly.
type PresignedRequest struct {
	URL       string      `json:"url"`
	Method    string      `json:"method"`
	Headers   http.Header `json:"headers,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Storage is the object store used for model assets.
type Storage interface {
	// PresignPut returns a signed PUT for key, valid for the configured TTL.
	PresignPut(ctx context.Context, key, contentType string) (*PresignedRequest, error)

	// Exists reports whether key has been uploaded.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for key.
	GetURL(key string) string
}
