package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
)

// BucketBalance compares one filament bucket against the ledger.
type BucketBalance struct {
	Material filament.Material `json:"material"`
	Color    filament.Color    `json:"color"`
	Wallet   decimal.Decimal   `json:"wallet"`
	Ledger   decimal.Decimal   `json:"ledger"`
	Balanced bool              `json:"balanced"`
}

// Reconciliation is the result of replaying a customer's ledger.
type Reconciliation struct {
	UserID        uuid.UUID       `json:"user_id"`
	WalletHours   decimal.Decimal `json:"wallet_hours"`
	LedgerHours   decimal.Decimal `json:"ledger_hours"`
	HoursBalanced bool            `json:"hours_balanced"`
	Buckets       []BucketBalance `json:"buckets"`
	Entries       int             `json:"entries"`
	Balanced      bool            `json:"balanced"`
	CheckedAt     time.Time       `json:"checked_at"`
}

// Reconcile sums the signed ledger deltas and compares them with the wallet.
// A nil wallet is treated as empty.
func Reconcile(userID uuid.UUID, w *Wallet, entries []*LedgerEntry, now time.Time) *Reconciliation {
	if w == nil {
		w = New(userID, now)
	}

	ledgerHours := decimal.Zero
	ledgerGrams := map[filament.Bucket]decimal.Decimal{}
	for _, e := range entries {
		ledgerHours = ledgerHours.Add(e.DeltaHours)
		if b, ok := e.Bucket(); ok {
			ledgerGrams[b] = ledgerGrams[b].Add(e.DeltaGrams)
		}
	}

	rec := &Reconciliation{
		UserID:        userID,
		WalletHours:   w.Hours,
		LedgerHours:   ledgerHours,
		HoursBalanced: w.Hours.Equal(ledgerHours),
		Entries:       len(entries),
		CheckedAt:     now,
	}
	rec.Balanced = rec.HoursBalanced

	for _, m := range filament.Materials {
		for _, c := range filament.Colors {
			b := filament.Bucket{Material: m, Color: c}
			_, inWallet := w.Filament[m][c]
			fromLedger, inLedger := ledgerGrams[b]
			if !inWallet && !inLedger {
				continue
			}
			bb := BucketBalance{
				Material: m,
				Color:    c,
				Wallet:   w.Grams(b),
				Ledger:   fromLedger,
			}
			bb.Balanced = bb.Wallet.Equal(bb.Ledger)
			rec.Balanced = rec.Balanced && bb.Balanced
			rec.Buckets = append(rec.Buckets, bb)
		}
	}
	return rec
}
