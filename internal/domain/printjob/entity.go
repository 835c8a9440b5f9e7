package printjob

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
)

// Status represents a job's lifecycle state.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusQuoted     Status = "quoted"
	StatusApproved   Status = "approved"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusError      Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusQuoted, StatusApproved, StatusProcessing,
		StatusCompleted, StatusCancelled, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

// Model is the uploaded asset descriptor. Stored opaquely.
type Model struct {
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	PublicURL   string `json:"public_url,omitempty"`
}

// Settings are the customer's free-text print settings.
type Settings struct {
	FilamentType  string          `json:"filament_type"`
	Color         string          `json:"color"`
	LayerHeight   decimal.Decimal `json:"layer_height"`
	InfillPercent int             `json:"infill_percent"`
	Supports      bool            `json:"supports"`
}

// Quote is the staff estimate a customer decides on.
type Quote struct {
	Hours         decimal.Decimal `json:"hours"`
	Grams         decimal.Decimal `json:"grams"`
	AmountMinor   int64           `json:"amount_minor"`
	QueuePosition int             `json:"queue_position"`
	Notes         string          `json:"notes,omitempty"`
	QuotedBy      uuid.UUID       `json:"quoted_by"`
	QuotedAt      time.Time       `json:"quoted_at"`
}

// DecisionState is the customer's answer to a quote.
type DecisionState string

const (
	DecisionApproved         DecisionState = "approved"
	DecisionCancelled        DecisionState = "cancelled"
	DecisionChangesRequested DecisionState = "changes_requested"
)

func (d DecisionState) Valid() bool {
	return d == DecisionApproved || d == DecisionCancelled || d == DecisionChangesRequested
}

type Decision struct {
	State   DecisionState `json:"state"`
	At      time.Time     `json:"at"`
	Message string        `json:"message,omitempty"`
}

// Locked is what was actually debited at approval. Set once, never changed.
type Locked struct {
	Hours       decimal.Decimal `json:"hours"`
	Grams       decimal.Decimal `json:"grams"`
	AmountMinor int64           `json:"amount_minor"`
}

// Charge records where a locked amount was taken from.
type Charge struct {
	Hours         decimal.Decimal   `json:"hours"`
	Grams         decimal.Decimal   `json:"grams"`
	AmountMinor   int64             `json:"amount_minor"`
	Material      filament.Material `json:"material"`
	Color         filament.Color    `json:"color"`
	LedgerEntryID uuid.UUID         `json:"ledger_entry_id"`
	At            time.Time         `json:"at"`
}

// Actuals are recorded by staff on completion.
type Actuals struct {
	Hours      decimal.Decimal `json:"hours"`
	Grams      decimal.Decimal `json:"grams"`
	Photos     []string        `json:"photos,omitempty"`
	RecordedBy uuid.UUID       `json:"recorded_by"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Refund records a locked charge being credited back.
type Refund struct {
	By            uuid.UUID `json:"by"`
	At            time.Time `json:"at"`
	Note          string    `json:"note,omitempty"`
	LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
}

// Job is one print job.
type Job struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	Status        Status            `json:"status"`
	Model         Model             `json:"model"`
	Quantity      int               `json:"quantity"`
	Settings      Settings          `json:"settings"`
	Notes         string            `json:"notes,omitempty"`
	MaterialClass filament.Material `json:"material_class"`
	ColorClass    filament.Color    `json:"color_class"`

	Quote    *Quote    `json:"quote,omitempty"`
	Decision *Decision `json:"user_decision,omitempty"`
	Locked   *Locked   `json:"locked,omitempty"`
	Charge   *Charge   `json:"wallet_charge,omitempty"`
	Actuals  *Actuals  `json:"actuals,omitempty"`
	Refund   *Refund   `json:"refund,omitempty"`

	ResourceID   string `json:"resource_id,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// Bucket is the wallet bucket this job is charged against.
func (j *Job) Bucket() filament.Bucket {
	return filament.Bucket{Material: j.MaterialClass, Color: j.ColorClass}
}

// IsOwner reports whether userID submitted the job.
func (j *Job) IsOwner(userID uuid.UUID) bool {
	return j.UserID == userID
}

// Validate checks the structural invariants of a stored job.
func (j *Job) Validate() error {
	fail := func(reason string) error { return &MalformedError{JobID: j.ID, Reason: reason} }

	if j.ID == uuid.Nil || j.UserID == uuid.Nil {
		return fail("missing id or owner")
	}
	if !j.Status.Valid() {
		return fail("unknown status " + string(j.Status))
	}
	if !j.Bucket().Valid() {
		return fail("bucket not normalized")
	}

	switch j.Status {
	case StatusSubmitted:
		if j.Quote != nil {
			return fail("submitted job has a quote")
		}
	case StatusQuoted, StatusApproved, StatusProcessing, StatusCompleted, StatusError:
		if j.Quote == nil {
			return fail("quote missing")
		}
	}

	switch j.Status {
	case StatusSubmitted, StatusQuoted:
		if j.Locked != nil {
			return fail("locked charge before approval")
		}
	case StatusApproved, StatusProcessing, StatusCompleted, StatusError:
		if j.Locked == nil {
			return fail("locked charge missing")
		}
	}
	if (j.Locked == nil) != (j.Charge == nil) {
		return fail("locked and wallet charge disagree")
	}
	if j.Locked != nil && j.Quote == nil {
		return fail("locked charge without quote")
	}

	if (j.Status == StatusProcessing || j.Status == StatusCompleted) && j.ResourceID == "" {
		return fail("resource id missing")
	}
	if j.Status == StatusCompleted && j.Actuals == nil {
		return fail("actuals missing")
	}
	if j.Refund != nil {
		if j.Locked == nil || (j.Status != StatusCancelled && j.Status != StatusError) {
			return fail("refund on a job that cannot be refunded")
		}
	}
	return nil
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Quote != nil {
		q := *j.Quote
		cp.Quote = &q
	}
	if j.Decision != nil {
		d := *j.Decision
		cp.Decision = &d
	}
	if j.Locked != nil {
		l := *j.Locked
		cp.Locked = &l
	}
	if j.Charge != nil {
		c := *j.Charge
		cp.Charge = &c
	}
	if j.Actuals != nil {
		a := *j.Actuals
		a.Photos = append([]string(nil), j.Actuals.Photos...)
		cp.Actuals = &a
	}
	if j.Refund != nil {
		r := *j.Refund
		cp.Refund = &r
	}
	cp.StartedAt = cloneTime(j.StartedAt)
	cp.CancelledAt = cloneTime(j.CancelledAt)
	cp.FailedAt = cloneTime(j.FailedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
