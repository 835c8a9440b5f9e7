package printjob

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/domain/filament"
	"github.com/printhub/printhub-api/internal/pkg/events"
	"github.com/printhub/printhub-api/internal/pkg/logger"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
)

// Charger moves value between wallets and jobs atomically.
type Charger interface {
	ApproveAndCharge(ctx context.Context, jobID, userID uuid.UUID) (*Job, error)
	DecideAndCharge(ctx context.Context, jobID, userID uuid.UUID, message string) (*Job, error)
	RefundJob(ctx context.Context, jobID, staffID uuid.UUID, note string) (*Job, error)
}

// Service is the job lifecycle controller. Every status change runs inside a
// store transaction with the job row locked.
type Service struct {
	store     Store
	charger   Charger
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

// SetCharger wires the balance transfer protocol.
func (s *Service) SetCharger(c Charger) {
	s.charger = c
}

func (s *Service) SetPublisher(p events.Publisher) {
	if p != nil {
		s.publisher = p
	}
}

func (s *Service) SetRetryPolicy(p txretry.Policy) {
	s.retry = p
}

// CreateJob stores a new submitted job.
func (s *Service) CreateJob(ctx context.Context, userID uuid.UUID, in CreateJobInput) (*Job, error) {
	errs := ValidationErrors{}
	if in.Model.Filename == "" {
		errs["model.filename"] = "This field is required"
	}
	if in.Model.StoragePath == "" {
		errs["model.storage_path"] = "This field is required"
	}
	if in.Quantity < 1 || in.Quantity > 100 {
		errs["quantity"] = "Quantity must be between 1 and 100"
	}
	if err := errs.orNil(); err != nil {
		return nil, err
	}

	now := s.now()
	bucket := filament.Normalize(in.Settings.FilamentType, in.Settings.Color)
	job := &Job{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        StatusSubmitted,
		Model:         in.Model,
		Quantity:      in.Quantity,
		Settings:      in.Settings,
		Notes:         in.Notes,
		MaterialClass: bucket.Material,
		ColorClass:    bucket.Color,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Jobs().Create(ctx, job); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("job_id", job.ID.String()).
		Str("user_id", userID.String()).
		Str("bucket", bucket.String()).
		Msg("job submitted")
	events.Emit(ctx, s.publisher, events.JobCreated, job)
	return job, nil
}

// mutate locks the job, applies fn and saves it, retrying on store conflicts.
func (s *Service) mutate(ctx context.Context, op string, jobID uuid.UUID, fn func(ctx context.Context, jobs Repository, job *Job) error) (*Job, error) {
	var out *Job
	err := txretry.Do(ctx, s.retry, op, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, jobs Repository) error {
			job, err := jobs.GetForUpdate(ctx, jobID)
			if err != nil {
				return err
			}
			if err := fn(ctx, jobs, job); err != nil {
				return err
			}
			if err := jobs.Update(ctx, job); err != nil {
				return err
			}
			out = job
			return nil
		})
	})
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("op", op).Str("job_id", jobID.String()).Msg("job transition rejected")
		return nil, err
	}
	return out, nil
}

// SetQuote quotes a submitted job or re-quotes a quoted one. A first quote
// without an explicit position is placed behind the active jobs.
func (s *Service) SetQuote(ctx context.Context, jobID, staffID uuid.UUID, q Quote) (*Job, error) {
	q.QuotedBy = staffID
	if err := q.Validate(); err != nil {
		return nil, err
	}

	job, err := s.mutate(ctx, "printjob.quote", jobID, func(ctx context.Context, jobs Repository, job *Job) error {
		quote := q
		if quote.QueuePosition == 0 && job.Quote == nil {
			pos, err := NextQueuePosition(ctx, jobs)
			if err != nil {
				return err
			}
			quote.QueuePosition = pos
		}
		return job.ApplyQuote(quote, s.now())
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("job_id", jobID.String()).
		Str("hours", job.Quote.Hours.String()).
		Str("grams", job.Quote.Grams.String()).
		Int("queue_position", job.Quote.QueuePosition).
		Msg("job quoted")
	events.Emit(ctx, s.publisher, events.JobQuoted, job)
	return job, nil
}

// SetUserDecision records the customer's answer. Approval charges the wallet in
// the same transaction; if the charge fails the decision is not recorded.
func (s *Service) SetUserDecision(ctx context.Context, jobID, userID uuid.UUID, state DecisionState, message string) (*Job, error) {
	if !state.Valid() {
		return nil, ValidationErrors{"decision": "Invalid decision"}
	}
	if state == DecisionApproved {
		return s.charge(ctx, jobID, func() (*Job, error) {
			return s.charger.DecideAndCharge(ctx, jobID, userID, message)
		})
	}

	job, err := s.mutate(ctx, "printjob.decide", jobID, func(_ context.Context, _ Repository, job *Job) error {
		return job.Decide(userID, state, message, s.now())
	})
	if err != nil {
		return nil, err
	}

	key := events.JobDecided
	if job.Status == StatusCancelled {
		key = events.JobCancelled
	}
	events.Emit(ctx, s.publisher, key, job)
	return job, nil
}

// ApproveAndCharge charges a job whose approving decision is already stored.
func (s *Service) ApproveAndCharge(ctx context.Context, jobID, userID uuid.UUID) (*Job, error) {
	return s.charge(ctx, jobID, func() (*Job, error) {
		return s.charger.ApproveAndCharge(ctx, jobID, userID)
	})
}

func (s *Service) charge(ctx context.Context, jobID uuid.UUID, fn func() (*Job, error)) (*Job, error) {
	if s.charger == nil {
		return nil, ErrChargerUnavailable
	}
	job, err := fn()
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.publisher, events.JobApproved, job)
	return job, nil
}

// StartJob moves an approved job to processing on a production resource.
func (s *Service) StartJob(ctx context.Context, jobID uuid.UUID, resourceID string) (*Job, error) {
	if resourceID == "" {
		return nil, ErrResourceRequired
	}
	job, err := s.mutate(ctx, "printjob.start", jobID, func(_ context.Context, _ Repository, job *Job) error {
		return job.Start(resourceID, s.now())
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().Str("job_id", jobID.String()).Str("resource_id", resourceID).Msg("job started")
	events.Emit(ctx, s.publisher, events.JobStarted, job)
	return job, nil
}

// CompleteJob records actual consumption and finishes the job.
func (s *Service) CompleteJob(ctx context.Context, jobID, staffID uuid.UUID, actuals Actuals) (*Job, error) {
	if len(actuals.Photos) > 10 {
		return nil, ValidationErrors{"photos": "At most 10 photos"}
	}
	actuals.RecordedBy = staffID
	job, err := s.mutate(ctx, "printjob.complete", jobID, func(_ context.Context, _ Repository, job *Job) error {
		return job.Complete(actuals, s.now())
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().
		Str("job_id", jobID.String()).
		Str("actual_hours", job.Actuals.Hours.String()).
		Str("actual_grams", job.Actuals.Grams.String()).
		Msg("job completed")
	events.Emit(ctx, s.publisher, events.JobCompleted, job)
	return job, nil
}

// CancelJob cancels a job. Locked charges stay debited until RefundJob.
func (s *Service) CancelJob(ctx context.Context, jobID uuid.UUID, actor Actor, reason string) (*Job, error) {
	job, err := s.mutate(ctx, "printjob.cancel", jobID, func(_ context.Context, _ Repository, job *Job) error {
		return job.Cancel(actor, reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().
		Str("job_id", jobID.String()).
		Bool("by_staff", actor.Staff).
		Bool("has_locked_charge", job.Locked != nil).
		Msg("job cancelled")
	events.Emit(ctx, s.publisher, events.JobCancelled, job)
	return job, nil
}

// MarkError records an unrecoverable production failure.
func (s *Service) MarkError(ctx context.Context, jobID uuid.UUID, message string) (*Job, error) {
	job, err := s.mutate(ctx, "printjob.error", jobID, func(_ context.Context, _ Repository, job *Job) error {
		return job.Fail(message, s.now())
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Warn().Str("job_id", jobID.String()).Str("message", message).Msg("job failed")
	events.Emit(ctx, s.publisher, events.JobError, job)
	return job, nil
}

// RefundJob credits a cancelled or failed job's locked charge back once.
func (s *Service) RefundJob(ctx context.Context, jobID, staffID uuid.UUID, note string) (*Job, error) {
	if s.charger == nil {
		return nil, ErrChargerUnavailable
	}
	job, err := s.charger.RefundJob(ctx, jobID, staffID, note)
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.publisher, events.JobRefunded, job)
	return job, nil
}

// GetJob returns a job visible to the actor.
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID, actor Actor) (*Job, error) {
	job, err := s.store.Jobs().GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.Staff && !job.IsOwner(actor.ID) {
		return nil, ErrNotYourJob
	}
	return job, nil
}

// ListJobs returns jobs newest first.
func (s *Service) ListJobs(ctx context.Context, filter Filter, pagination Pagination) ([]*Job, int, error) {
	return s.store.Jobs().List(ctx, filter, pagination)
}
