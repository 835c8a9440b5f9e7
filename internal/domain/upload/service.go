package upload

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/pkg/logger"
	"github.com/printhub/printhub-api/internal/pkg/storage"
)

// Service hands out signed model uploads. Objects are never proxied through
// the API.
type Service struct {
	storage storage.Storage
	now     func() time.Time
}

// NewService creates upload service. st may be nil when no bucket is
// configured; every call then fails with ErrStorageUnavailable.
func NewService(st storage.Storage) *Service {
	return &Service{
		storage: st,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Init validates the declared file and signs a PUT under the user's prefix.
func (s *Service) Init(ctx context.Context, userID uuid.UUID, req InitRequest) (*InitResponse, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	contentType, err := storage.ValidateModel(req.Filename, req.Size)
	if err != nil {
		return nil, err
	}

	key := storage.ModelKey(userID, req.Filename, s.now())
	signed, err := s.storage.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("user_id", userID.String()).
		Str("storage_path", key).
		Int64("size", req.Size).
		Msg("model upload signed")

	return &InitResponse{
		UploadURL: signed.URL,
		Method:    signed.Method,
		Headers:   signed.Headers,
		ExpiresAt: signed.ExpiresAt,
		Model:     s.descriptor(key),
	}, nil
}

// Confirm reports whether an upload under the user's prefix has landed.
func (s *Service) Confirm(ctx context.Context, userID uuid.UUID, key string) (*ConfirmResponse, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if err := storage.CheckOwnedKey(userID, key); err != nil {
		return nil, err
	}
	ok, err := s.storage.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ConfirmResponse{Model: s.descriptor(key), Uploaded: ok}, nil
}

func (s *Service) descriptor(key string) printjob.Model {
	return printjob.Model{
		Filename:    path.Base(key),
		StoragePath: key,
		PublicURL:   s.storage.GetURL(key),
	}
}
