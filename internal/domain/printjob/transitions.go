package printjob

import (
	"time"

	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/domain/filament"
)

var transitions = map[Status][]Status{
	StatusSubmitted:  {StatusQuoted, StatusCancelled},
	StatusQuoted:     {StatusQuoted, StatusApproved, StatusCancelled},
	StatusApproved:   {StatusProcessing, StatusCancelled, StatusError},
	StatusProcessing: {StatusCompleted, StatusCancelled, StatusError},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (j *Job) moveTo(to Status, now time.Time) error {
	if !CanTransition(j.Status, to) {
		return &TransitionError{From: j.Status, To: to}
	}
	j.Status = to
	j.UpdatedAt = now
	return nil
}

// ApplyQuote sets or replaces the quote. A re-quote is only allowed while the
// customer has not decided or asked for changes, and keeps the queue position
// unless a new one is given.
func (j *Job) ApplyQuote(q Quote, now time.Time) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if j.Status == StatusQuoted && j.Decision != nil && j.Decision.State != DecisionChangesRequested {
		return ErrQuoteDecided
	}
	if q.QueuePosition == 0 && j.Quote != nil {
		q.QueuePosition = j.Quote.QueuePosition
	}
	if q.QueuePosition < 1 {
		return ValidationErrors{"queue_position": "Queue position must be assigned"}
	}
	if err := j.moveTo(StatusQuoted, now); err != nil {
		return err
	}
	q.QuotedAt = now
	j.Quote = &q
	j.Decision = nil
	return nil
}

// Decide records a non-approving decision. Approval goes through the charge
// path so the debit and the decision commit together.
func (j *Job) Decide(userID uuid.UUID, state DecisionState, message string, now time.Time) error {
	if !j.IsOwner(userID) {
		return ErrNotYourJob
	}
	if j.Status != StatusQuoted {
		return ErrNotQuoted
	}
	switch state {
	case DecisionCancelled:
		if err := j.moveTo(StatusCancelled, now); err != nil {
			return err
		}
		j.CancelReason = message
		j.CancelledAt = &now
	case DecisionChangesRequested:
		j.UpdatedAt = now
	case DecisionApproved:
		j.UpdatedAt = now
	default:
		return ValidationErrors{"decision": "Invalid decision"}
	}
	j.Decision = &Decision{State: state, At: now, Message: message}
	return nil
}

// CheckChargeable verifies the preconditions of approve-and-charge.
func (j *Job) CheckChargeable(userID uuid.UUID) error {
	if !j.IsOwner(userID) {
		return ErrNotYourJob
	}
	if j.Status != StatusQuoted {
		return ErrNotQuoted
	}
	if j.Decision == nil || j.Decision.State != DecisionApproved {
		return ErrNotApproved
	}
	if j.Quote == nil {
		return &MalformedError{JobID: j.ID, Reason: "quoted job without quote"}
	}
	return nil
}

// Lock freezes the quoted amounts as the charge and moves the job to approved.
func (j *Job) Lock(charge Charge, now time.Time) error {
	if j.Locked != nil {
		return &MalformedError{JobID: j.ID, Reason: "charge already locked"}
	}
	if err := j.moveTo(StatusApproved, now); err != nil {
		return err
	}
	j.Locked = &Locked{Hours: charge.Hours, Grams: charge.Grams, AmountMinor: charge.AmountMinor}
	charge.At = now
	j.Charge = &charge
	return nil
}

// Start assigns a production resource and begins printing.
func (j *Job) Start(resourceID string, now time.Time) error {
	if resourceID == "" {
		return ErrResourceRequired
	}
	if err := j.moveTo(StatusProcessing, now); err != nil {
		return err
	}
	j.ResourceID = resourceID
	j.StartedAt = &now
	return nil
}

// Complete records what was actually consumed.
func (j *Job) Complete(a Actuals, now time.Time) error {
	if a.Hours.IsNegative() || a.Grams.IsNegative() {
		return ValidationErrors{"actuals": "Actual hours and grams must not be negative"}
	}
	if !filament.FitsColumn(a.Hours) || !filament.FitsColumn(a.Grams) {
		return ValidationErrors{"actuals": "Actual hours and grams exceed 4 decimal places or 10 integer digits"}
	}
	if err := j.moveTo(StatusCompleted, now); err != nil {
		return err
	}
	a.RecordedAt = now
	j.Actuals = &a
	return nil
}

// Actor identifies who is acting on a job.
type Actor struct {
	ID    uuid.UUID
	Staff bool
}

// Cancel cancels the job. Customers may cancel their own job before it is
// approved; staff may cancel any non-terminal job. No refund happens here.
func (j *Job) Cancel(actor Actor, reason string, now time.Time) error {
	if !actor.Staff {
		if !j.IsOwner(actor.ID) {
			return ErrNotYourJob
		}
		switch j.Status {
		case StatusSubmitted:
		case StatusQuoted:
			return j.Decide(actor.ID, DecisionCancelled, reason, now)
		default:
			if !j.Status.Terminal() {
				return ErrStaffOnly
			}
		}
	}
	if err := j.moveTo(StatusCancelled, now); err != nil {
		return err
	}
	j.CancelReason = reason
	j.CancelledAt = &now
	return nil
}

// Fail marks an unrecoverable production failure.
func (j *Job) Fail(message string, now time.Time) error {
	if message == "" {
		return ValidationErrors{"message": "Error message is required"}
	}
	if err := j.moveTo(StatusError, now); err != nil {
		return err
	}
	j.ErrorMessage = message
	j.FailedAt = &now
	return nil
}

// CheckRefundable verifies that the locked charge may be credited back.
func (j *Job) CheckRefundable() error {
	if j.Refund != nil {
		return ErrAlreadyRefunded
	}
	if j.Locked == nil || j.Charge == nil {
		return ErrNotRefundable
	}
	if j.Status != StatusCancelled && j.Status != StatusError {
		return ErrNotRefundable
	}
	return nil
}

// MarkRefunded stamps the refund audit record.
func (j *Job) MarkRefunded(by uuid.UUID, note string, entryID uuid.UUID, now time.Time) {
	j.Refund = &Refund{By: by, At: now, Note: note, LedgerEntryID: entryID}
	j.UpdatedAt = now
}

// Validate checks quote numbers.
func (q Quote) Validate() error {
	errs := ValidationErrors{}
	if q.Hours.IsNegative() {
		errs["hours"] = "Hours must not be negative"
	}
	if q.Grams.IsNegative() {
		errs["grams"] = "Grams must not be negative"
	}
	if !filament.FitsColumn(q.Hours) {
		errs["hours"] = "Hours exceed 4 decimal places or 10 integer digits"
	}
	if !filament.FitsColumn(q.Grams) {
		errs["grams"] = "Grams exceed 4 decimal places or 10 integer digits"
	}
	if q.AmountMinor < 0 {
		errs["amount_minor"] = "Amount must not be negative"
	}
	if !q.Hours.IsPositive() && !q.Grams.IsPositive() && len(errs) == 0 {
		errs["hours"] = "Quote must charge hours or grams"
	}
	if q.QueuePosition < 0 {
		errs["queue_position"] = "Queue position must be at least 1"
	}
	if q.QuotedBy == uuid.Nil {
		errs["quoted_by"] = "Quoting staff member is required"
	}
	return errs.orNil()
}
