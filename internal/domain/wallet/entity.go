package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
)

// Filament holds grams per material and color.
type Filament map[filament.Material]map[filament.Color]decimal.Decimal

// Wallet is the prepaid balance of one customer.
type Wallet struct {
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Hours     decimal.Decimal `db:"hours" json:"hours"`
	Filament  Filament        `db:"-" json:"filament"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// New returns an empty wallet.
func New(userID uuid.UUID, now time.Time) *Wallet {
	return &Wallet{
		UserID:    userID,
		Hours:     decimal.Zero,
		Filament:  Filament{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Grams returns the balance of a bucket, zero when absent.
func (w *Wallet) Grams(b filament.Bucket) decimal.Decimal {
	colors, ok := w.Filament[b.Material]
	if !ok {
		return decimal.Zero
	}
	g, ok := colors[b.Color]
	if !ok {
		return decimal.Zero
	}
	return g
}

func (w *Wallet) setGrams(b filament.Bucket, grams decimal.Decimal) {
	if w.Filament == nil {
		w.Filament = Filament{}
	}
	colors, ok := w.Filament[b.Material]
	if !ok {
		colors = map[filament.Color]decimal.Decimal{}
		w.Filament[b.Material] = colors
	}
	colors[b.Color] = grams
}

// CheckDebit reports whether hours and grams from bucket b can be taken.
// Hours are checked first. A bucket that is not debitable fails whenever grams > 0.
func (w *Wallet) CheckDebit(hours, grams decimal.Decimal, b filament.Bucket) error {
	if hours.IsNegative() || grams.IsNegative() {
		return ErrInvalidAmount
	}
	if w.Hours.LessThan(hours) {
		return &HoursError{Available: w.Hours, Required: hours}
	}
	if !grams.IsPositive() {
		return nil
	}
	if !b.Debitable() {
		return &BucketError{Bucket: b, Available: w.Grams(b), Required: grams, Undebitable: true}
	}
	if avail := w.Grams(b); avail.LessThan(grams) {
		return &BucketError{Bucket: b, Available: avail, Required: grams}
	}
	return nil
}

// Debit takes hours and grams. Nothing is changed when it fails.
func (w *Wallet) Debit(hours, grams decimal.Decimal, b filament.Bucket, now time.Time) error {
	if err := w.CheckDebit(hours, grams, b); err != nil {
		return err
	}
	w.Hours = w.Hours.Sub(hours)
	if grams.IsPositive() {
		w.setGrams(b, w.Grams(b).Sub(grams))
	}
	w.UpdatedAt = now
	return nil
}

// Credit adds hours.
func (w *Wallet) Credit(hours decimal.Decimal, now time.Time) error {
	if hours.IsNegative() {
		return ErrInvalidAmount
	}
	w.Hours = w.Hours.Add(hours)
	w.UpdatedAt = now
	return nil
}

// CreditFilament adds grams to a bucket. OTHER buckets are credited and tracked too.
func (w *Wallet) CreditFilament(b filament.Bucket, grams decimal.Decimal, now time.Time) error {
	if grams.IsNegative() {
		return ErrInvalidAmount
	}
	w.setGrams(b, w.Grams(b).Add(grams))
	w.UpdatedAt = now
	return nil
}

// Buckets returns every bucket present in the wallet in canonical order.
func (w *Wallet) Buckets() []filament.Bucket {
	var out []filament.Bucket
	for _, m := range filament.Materials {
		for _, c := range filament.Colors {
			if _, ok := w.Filament[m][c]; ok {
				out = append(out, filament.Bucket{Material: m, Color: c})
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	cp := *w
	cp.Filament = make(Filament, len(w.Filament))
	for m, colors := range w.Filament {
		inner := make(map[filament.Color]decimal.Decimal, len(colors))
		for c, g := range colors {
			inner[c] = g
		}
		cp.Filament[m] = inner
	}
	return &cp
}

// EntryKind is the kind of a ledger entry.
type EntryKind string

const (
	EntryCredit EntryKind = "credit"
	EntryDebit  EntryKind = "debit"
	EntryRefund EntryKind = "refund"
)

// LedgerEntry is one immutable, signed balance change.
// Material and Color are empty for hours-only entries.
type LedgerEntry struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	Seq        int64             `db:"seq" json:"seq"`
	UserID     uuid.UUID         `db:"user_id" json:"user_id"`
	Kind       EntryKind         `db:"kind" json:"kind"`
	JobID      *uuid.UUID        `db:"job_id" json:"job_id,omitempty"`
	TopUpID    *uuid.UUID        `db:"topup_id" json:"topup_id,omitempty"`
	DeltaHours decimal.Decimal   `db:"delta_hours" json:"delta_hours"`
	DeltaGrams decimal.Decimal   `db:"delta_grams" json:"delta_grams"`
	Material   filament.Material `db:"material" json:"material,omitempty"`
	Color      filament.Color    `db:"color" json:"color,omitempty"`
	At         time.Time         `db:"at" json:"at"`
	Note       string            `db:"note" json:"note,omitempty"`
}

// Bucket returns the entry's bucket and whether it has one.
func (e *LedgerEntry) Bucket() (filament.Bucket, bool) {
	if e.Material == "" {
		return filament.Bucket{}, false
	}
	return filament.Bucket{Material: e.Material, Color: e.Color}, true
}

// Validate rejects entries that would break reconciliation.
func (e *LedgerEntry) Validate() error {
	switch e.Kind {
	case EntryCredit, EntryRefund:
		if e.DeltaHours.IsNegative() || e.DeltaGrams.IsNegative() {
			return ErrInvalidEntry
		}
	case EntryDebit:
		if e.DeltaHours.IsPositive() || e.DeltaGrams.IsPositive() {
			return ErrInvalidEntry
		}
	default:
		return ErrInvalidEntry
	}
	if !e.DeltaGrams.IsZero() && e.Material == "" {
		return ErrInvalidEntry
	}
	if b, ok := e.Bucket(); ok && !b.Valid() {
		return ErrInvalidEntry
	}
	if e.Material == "" && e.Color != "" {
		return ErrInvalidEntry
	}
	if e.UserID == uuid.Nil {
		return ErrInvalidEntry
	}
	return nil
}
