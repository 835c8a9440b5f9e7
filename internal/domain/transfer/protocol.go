// Package transfer moves value between top-ups, wallets and jobs. Every
// operation is one store transaction over the records it touches plus the
// ledger entries it appends; an error means nothing was written.
//
// Rows are always locked in the same order: the job or top-up first, then the
// wallet.
package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/domain/wallet"
	"github.com/printhub/printhub-api/internal/pkg/logger"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
)

// Tx is the set of repositories bound to one transaction.
type Tx interface {
	Jobs() printjob.Repository
	Wallets() wallet.Repository
	Ledger() wallet.LedgerRepository
	TopUps() topup.Repository
}

// Store runs fn atomically. A conflict with a concurrent writer is reported
// as txretry.ErrConflict.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Protocol struct {
	store Store
	retry txretry.Policy
	now   func() time.Time
}

func New(store Store) *Protocol {
	return &Protocol{
		store: store,
		retry: txretry.DefaultPolicy(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (p *Protocol) SetRetryPolicy(policy txretry.Policy) {
	p.retry = policy
}

func (p *Protocol) run(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	return txretry.Do(ctx, p.retry, op, func() error {
		return p.store.WithinTx(ctx, fn)
	})
}

// ApproveAndCharge debits the quoted amounts for a job whose customer has
// already approved the quote. A retry after success fails with
// printjob.ErrNotQuoted and charges nothing.
func (p *Protocol) ApproveAndCharge(ctx context.Context, jobID, userID uuid.UUID) (*printjob.Job, error) {
	var out *printjob.Job
	err := p.run(ctx, "transfer.approve_and_charge", func(ctx context.Context, tx Tx) error {
		job, err := tx.Jobs().GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if err := job.CheckChargeable(userID); err != nil {
			return err
		}
		if err := p.charge(ctx, tx, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		p.logFailure(ctx, "approve_and_charge", jobID, err)
		return nil, err
	}
	p.logCharge(ctx, out)
	return out, nil
}

// DecideAndCharge records the customer's approval and charges the job in one
// transaction. On failure the decision is not recorded.
func (p *Protocol) DecideAndCharge(ctx context.Context, jobID, userID uuid.UUID, message string) (*printjob.Job, error) {
	var out *printjob.Job
	err := p.run(ctx, "transfer.decide_and_charge", func(ctx context.Context, tx Tx) error {
		job, err := tx.Jobs().GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if err := job.Decide(userID, printjob.DecisionApproved, message, p.now()); err != nil {
			return err
		}
		if err := job.CheckChargeable(userID); err != nil {
			return err
		}
		if err := p.charge(ctx, tx, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		p.logFailure(ctx, "decide_and_charge", jobID, err)
		return nil, err
	}
	p.logCharge(ctx, out)
	return out, nil
}

// charge runs inside the transaction with the job already locked.
func (p *Protocol) charge(ctx context.Context, tx Tx, job *printjob.Job) error {
	now := p.now()
	q := job.Quote
	bucket := job.Bucket()

	w, err := tx.Wallets().GetForUpdate(ctx, job.UserID)
	if err != nil {
		return err
	}
	if err := w.Debit(q.Hours, q.Grams, bucket, now); err != nil {
		return err
	}

	entry := &wallet.LedgerEntry{
		ID:         uuid.New(),
		UserID:     job.UserID,
		Kind:       wallet.EntryDebit,
		JobID:      &job.ID,
		DeltaHours: q.Hours.Neg(),
		DeltaGrams: q.Grams.Neg(),
		Material:   bucket.Material,
		Color:      bucket.Color,
		At:         now,
		Note:       "job charge",
	}
	if err := tx.Wallets().Save(ctx, w); err != nil {
		return err
	}
	if err := tx.Ledger().Append(ctx, entry); err != nil {
		return err
	}

	if err := job.Lock(printjob.Charge{
		Hours:         q.Hours,
		Grams:         q.Grams,
		AmountMinor:   q.AmountMinor,
		Material:      bucket.Material,
		Color:         bucket.Color,
		LedgerEntryID: entry.ID,
	}, now); err != nil {
		return err
	}
	return tx.Jobs().Update(ctx, job)
}

// ApproveTopUp credits a pending top-up to the customer's wallet, creating
// the wallet on first funding. applied is false when the request was already
// finalized; nothing is written in that case.
func (p *Protocol) ApproveTopUp(ctx context.Context, topUpID, approverID uuid.UUID) (*topup.TopUp, bool, error) {
	var (
		out     *topup.TopUp
		applied bool
	)
	err := p.run(ctx, "transfer.approve_topup", func(ctx context.Context, tx Tx) error {
		applied = false
		now := p.now()

		t, err := tx.TopUps().GetForUpdate(ctx, topUpID)
		if err != nil {
			return err
		}
		out = t
		if !t.Approve(approverID, now) {
			return nil
		}

		w, err := tx.Wallets().GetOrCreateForUpdate(ctx, t.UserID)
		if err != nil {
			return err
		}
		entries, err := creditTopUp(w, t, now)
		if err != nil {
			return err
		}

		if err := tx.Wallets().Save(ctx, w); err != nil {
			return err
		}
		for _, e := range entries {
			if err := tx.Ledger().Append(ctx, e); err != nil {
				return err
			}
		}
		if err := tx.TopUps().Update(ctx, t); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("topup_id", topUpID.String()).Msg("top-up approval failed")
		return nil, false, err
	}

	l := logger.FromContext(ctx)
	if applied {
		l.Info().
			Str("topup_id", topUpID.String()).
			Str("user_id", out.UserID.String()).
			Str("hours", out.Hours.String()).
			Int("items", len(out.Items)).
			Msg("top-up credited")
	} else {
		l.Info().Str("topup_id", topUpID.String()).Str("status", string(out.Status)).Msg("top-up already finalized, nothing credited")
	}
	return out, applied, nil
}

// creditTopUp applies t to w and returns one ledger entry per item line. The
// hours delta rides on the first entry; a request without items yields a
// single hours-only entry.
func creditTopUp(w *wallet.Wallet, t *topup.TopUp, now time.Time) ([]*wallet.LedgerEntry, error) {
	if err := w.Credit(t.Hours, now); err != nil {
		return nil, err
	}

	newEntry := func() *wallet.LedgerEntry {
		return &wallet.LedgerEntry{
			ID:      uuid.New(),
			UserID:  t.UserID,
			Kind:    wallet.EntryCredit,
			TopUpID: &t.ID,
			At:      now,
			Note:    "top-up",
		}
	}

	if len(t.Items) == 0 {
		e := newEntry()
		e.DeltaHours = t.Hours
		return []*wallet.LedgerEntry{e}, nil
	}

	entries := make([]*wallet.LedgerEntry, 0, len(t.Items))
	for i, it := range t.Items {
		if err := w.CreditFilament(it.Bucket(), it.Grams, now); err != nil {
			return nil, err
		}
		e := newEntry()
		if i == 0 {
			e.DeltaHours = t.Hours
		}
		e.DeltaGrams = it.Grams
		e.Material = it.Material
		e.Color = it.Color
		entries = append(entries, e)
	}
	return entries, nil
}

// RefundJob credits a cancelled or failed job's locked charge back to the
// bucket it was taken from. A second refund fails with
// printjob.ErrAlreadyRefunded.
func (p *Protocol) RefundJob(ctx context.Context, jobID, staffID uuid.UUID, note string) (*printjob.Job, error) {
	var out *printjob.Job
	err := p.run(ctx, "transfer.refund_job", func(ctx context.Context, tx Tx) error {
		now := p.now()

		job, err := tx.Jobs().GetForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if err := job.CheckRefundable(); err != nil {
			return err
		}

		w, err := tx.Wallets().GetOrCreateForUpdate(ctx, job.UserID)
		if err != nil {
			return err
		}
		charge := job.Charge
		bucket := job.Bucket()
		if charge.Material != "" {
			bucket.Material, bucket.Color = charge.Material, charge.Color
		}

		if err := w.Credit(job.Locked.Hours, now); err != nil {
			return err
		}
		if job.Locked.Grams.IsPositive() {
			if err := w.CreditFilament(bucket, job.Locked.Grams, now); err != nil {
				return err
			}
		}

		entry := &wallet.LedgerEntry{
			ID:         uuid.New(),
			UserID:     job.UserID,
			Kind:       wallet.EntryRefund,
			JobID:      &job.ID,
			DeltaHours: job.Locked.Hours,
			DeltaGrams: job.Locked.Grams,
			Material:   bucket.Material,
			Color:      bucket.Color,
			At:         now,
			Note:       note,
		}
		if err := tx.Wallets().Save(ctx, w); err != nil {
			return err
		}
		if err := tx.Ledger().Append(ctx, entry); err != nil {
			return err
		}

		job.MarkRefunded(staffID, note, entry.ID, now)
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		p.logFailure(ctx, "refund_job", jobID, err)
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("job_id", jobID.String()).
		Str("user_id", out.UserID.String()).
		Str("hours", out.Locked.Hours.String()).
		Str("grams", out.Locked.Grams.String()).
		Str("refunded_by", staffID.String()).
		Msg("job refunded")
	return out, nil
}

func (p *Protocol) logCharge(ctx context.Context, job *printjob.Job) {
	logger.FromContext(ctx).Info().
		Str("job_id", job.ID.String()).
		Str("user_id", job.UserID.String()).
		Str("hours", job.Locked.Hours.String()).
		Str("grams", job.Locked.Grams.String()).
		Str("bucket", job.Bucket().String()).
		Int64("amount_minor", job.Locked.AmountMinor).
		Msg("job charged")
}

func (p *Protocol) logFailure(ctx context.Context, op string, jobID uuid.UUID, err error) {
	l := logger.FromContext(ctx)
	event := l.Warn()
	if !isBusinessError(err) {
		event = l.Error()
	}
	event.Err(err).Str("op", op).Str("job_id", jobID.String()).Msg("transfer rejected")
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		wallet.ErrInsufficientHours,
		wallet.ErrInsufficientFilament,
		wallet.ErrWalletNotFound,
		printjob.ErrJobNotFound,
		printjob.ErrNotYourJob,
		printjob.ErrNotQuoted,
		printjob.ErrNotApproved,
		printjob.ErrAlreadyRefunded,
		printjob.ErrNotRefundable,
		txretry.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
