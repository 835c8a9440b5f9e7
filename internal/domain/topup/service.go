package topup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
	"github.com/printhub/printhub-api/internal/pkg/events"
	"github.com/printhub/printhub-api/internal/pkg/logger"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
)

// Crediter applies an approved top-up to the wallet atomically. applied is
// false when the request was no longer pending.
type Crediter interface {
	ApproveTopUp(ctx context.Context, topUpID, approverID uuid.UUID) (t *TopUp, applied bool, err error)
}

type Service struct {
	store     Store
	crediter  Crediter
	publisher events.Publisher
	retry     txretry.Policy
	now       func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store:     store,
		publisher: events.Noop{},
		retry:     txretry.DefaultPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetCrediter(c Crediter) {
	s.crediter = c
}

func (s *Service) SetPublisher(p events.Publisher) {
	if p != nil {
		s.publisher = p
	}
}

func (s *Service) SetRetryPolicy(p txretry.Policy) {
	s.retry = p
}

// CreateTopUp stores a pending request. Item buckets are normalized here so
// credits land in the same buckets jobs are charged from.
func (s *Service) CreateTopUp(ctx context.Context, userID uuid.UUID, in CreateInput) (*TopUp, error) {
	if in.Hours.IsNegative() || in.AmountMinor < 0 {
		return nil, ErrEmptyTopUp
	}
	if !filament.FitsColumn(in.Hours) {
		return nil, ErrTopUpPrecision
	}

	merged := map[filament.Bucket]decimal.Decimal{}
	var order []filament.Bucket
	for _, it := range in.Items {
		if !it.Grams.IsPositive() {
			return nil, ErrEmptyTopUp
		}
		b := filament.Normalize(it.Material, it.Color)
		if _, seen := merged[b]; !seen {
			order = append(order, b)
		}
		merged[b] = merged[b].Add(it.Grams)
		if !filament.FitsColumn(it.Grams) || !filament.FitsColumn(merged[b]) {
			return nil, ErrTopUpPrecision
		}
	}
	if !in.Hours.IsPositive() && len(order) == 0 {
		return nil, ErrEmptyTopUp
	}

	items := make([]Item, 0, len(order))
	for _, b := range order {
		items = append(items, Item{Material: b.Material, Color: b.Color, Grams: merged[b]})
	}

	now := s.now()
	t := &TopUp{
		ID:          uuid.New(),
		UserID:      userID,
		Hours:       in.Hours,
		Items:       items,
		AmountMinor: in.AmountMinor,
		Status:      StatusPending,
		Note:        in.Note,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.TopUps().Create(ctx, t); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("topup_id", t.ID.String()).
		Str("user_id", userID.String()).
		Str("hours", t.Hours.String()).
		Int("items", len(t.Items)).
		Msg("top-up requested")
	events.Emit(ctx, s.publisher, events.TopUpCreated, t)
	return t, nil
}

// ApproveTopUp credits the wallet once. Approving a finalized request
// returns it unchanged.
func (s *Service) ApproveTopUp(ctx context.Context, id, approverID uuid.UUID) (*TopUp, error) {
	if s.crediter == nil {
		return nil, ErrCrediterUnavailable
	}
	t, applied, err := s.crediter.ApproveTopUp(ctx, id, approverID)
	if err != nil {
		return nil, err
	}
	if applied {
		events.Emit(ctx, s.publisher, events.TopUpApproved, t)
	}
	return t, nil
}

// RejectTopUp finalizes a pending request with no balance effect.
func (s *Service) RejectTopUp(ctx context.Context, id, approverID uuid.UUID, note string) (*TopUp, error) {
	var (
		out     *TopUp
		applied bool
	)
	err := txretry.Do(ctx, s.retry, "topup.reject", func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, topups Repository) error {
			t, err := topups.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			ok, err := t.Reject(approverID, note, s.now())
			if err != nil {
				return err
			}
			if ok {
				if err := topups.Update(ctx, t); err != nil {
					return err
				}
			}
			out, applied = t, ok
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if applied {
		logger.FromContext(ctx).Info().
			Str("topup_id", id.String()).
			Str("rejected_by", approverID.String()).
			Msg("top-up rejected")
		events.Emit(ctx, s.publisher, events.TopUpRejected, out)
	}
	return out, nil
}

// GetTopUp returns a request visible to the caller.
func (s *Service) GetTopUp(ctx context.Context, id, callerID uuid.UUID, staff bool) (*TopUp, error) {
	t, err := s.store.TopUps().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !staff && t.UserID != callerID {
		return nil, ErrNotYourTopUp
	}
	return t, nil
}

// ListTopUps returns requests newest first.
func (s *Service) ListTopUps(ctx context.Context, filter Filter, pagination Pagination) ([]*TopUp, int, error) {
	return s.store.TopUps().List(ctx, filter, pagination)
}
