package topup

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
)

// Status of a top-up request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Item is one filament line. Material and Color are normalized at creation.
type Item struct {
	Material filament.Material `json:"material"`
	Color    filament.Color    `json:"color"`
	Grams    decimal.Decimal   `json:"grams"`
}

func (i Item) Bucket() filament.Bucket {
	return filament.Bucket{Material: i.Material, Color: i.Color}
}

// TopUp is a customer request to fund their wallet.
type TopUp struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Hours         decimal.Decimal `json:"hours"`
	Items         []Item          `json:"items"`
	AmountMinor   int64           `json:"amount_minor"`
	Status        Status          `json:"status"`
	Note          string          `json:"note,omitempty"`
	ApprovedBy    *uuid.UUID      `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	RejectedBy    *uuid.UUID      `json:"rejected_by,omitempty"`
	RejectedAt    *time.Time      `json:"rejected_at,omitempty"`
	RejectionNote string          `json:"rejection_note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Approve finalizes a pending request. It reports false, changing nothing,
// when the request is no longer pending.
func (t *TopUp) Approve(by uuid.UUID, now time.Time) bool {
	if t.Status != StatusPending {
		return false
	}
	t.Status = StatusApproved
	t.ApprovedBy = &by
	t.ApprovedAt = &now
	t.UpdatedAt = now
	return true
}

// Reject finalizes a pending request without touching balances. Rejecting a
// rejected request is a no-op; rejecting an approved one fails.
func (t *TopUp) Reject(by uuid.UUID, note string, now time.Time) (bool, error) {
	switch t.Status {
	case StatusRejected:
		return false, nil
	case StatusApproved:
		return false, ErrTopUpFinalized
	}
	t.Status = StatusRejected
	t.RejectedBy = &by
	t.RejectedAt = &now
	t.RejectionNote = note
	t.UpdatedAt = now
	return true, nil
}

// Validate checks stored invariants.
func (t *TopUp) Validate() error {
	fail := func(reason string) error { return &MalformedError{TopUpID: t.ID, Reason: reason} }

	if t.ID == uuid.Nil || t.UserID == uuid.Nil {
		return fail("missing id or owner")
	}
	if !t.Status.Valid() {
		return fail("unknown status " + string(t.Status))
	}
	if t.Hours.IsNegative() || t.AmountMinor < 0 {
		return fail("negative amount")
	}
	for _, it := range t.Items {
		if !it.Bucket().Valid() || !it.Grams.IsPositive() {
			return fail("invalid item")
		}
	}
	switch t.Status {
	case StatusPending:
		if t.ApprovedAt != nil || t.RejectedAt != nil {
			return fail("pending request has audit stamps")
		}
	case StatusApproved:
		if t.ApprovedAt == nil || t.ApprovedBy == nil || t.RejectedAt != nil {
			return fail("approved request audit mismatch")
		}
	case StatusRejected:
		if t.RejectedAt == nil || t.RejectedBy == nil || t.ApprovedAt != nil {
			return fail("rejected request audit mismatch")
		}
	}
	return nil
}

func (t *TopUp) Clone() *TopUp {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Items = append([]Item(nil), t.Items...)
	if t.ApprovedBy != nil {
		v := *t.ApprovedBy
		cp.ApprovedBy = &v
	}
	if t.ApprovedAt != nil {
		v := *t.ApprovedAt
		cp.ApprovedAt = &v
	}
	if t.RejectedBy != nil {
		v := *t.RejectedBy
		cp.RejectedBy = &v
	}
	if t.RejectedAt != nil {
		v := *t.RejectedAt
		cp.RejectedAt = &v
	}
	return &cp
}
