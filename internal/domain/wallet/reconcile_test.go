package wallet

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReconcileBalanced(t *testing.T) {
	uid := uuid.New()
	w := New(uid, time.Now())
	_ = w.Credit(d("5"), time.Now())
	_ = w.CreditFilament(plaWhite, d("500"), time.Now())
	_ = w.Debit(d("2"), d("300"), plaWhite, time.Now())

	entries := []*LedgerEntry{
		{UserID: uid, Kind: EntryCredit, DeltaHours: d("5"), DeltaGrams: d("500"), Material: plaWhite.Material, Color: plaWhite.Color},
		{UserID: uid, Kind: EntryDebit, DeltaHours: d("-2"), DeltaGrams: d("-300"), Material: plaWhite.Material, Color: plaWhite.Color},
	}

	rec := Reconcile(uid, w, entries, time.Now())
	if !rec.Balanced || !rec.HoursBalanced {
		t.Fatalf("expected balanced, got %+v", rec)
	}
	if len(rec.Buckets) != 1 || !rec.Buckets[0].Ledger.Equal(d("200")) {
		t.Fatalf("unexpected buckets: %+v", rec.Buckets)
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	uid := uuid.New()
	w := New(uid, time.Now())
	_ = w.Credit(d("5"), time.Now())
	_ = w.CreditFilament(plaWhite, d("500"), time.Now())

	entries := []*LedgerEntry{
		{UserID: uid, Kind: EntryCredit, DeltaHours: d("5")},
	}

	rec := Reconcile(uid, w, entries, time.Now())
	if rec.Balanced {
		t.Fatal("expected drift to be reported")
	}
	if !rec.HoursBalanced {
		t.Fatal("hours should balance")
	}
	if rec.Buckets[0].Balanced {
		t.Fatal("bucket should not balance")
	}
}

func TestReconcileMissingWallet(t *testing.T) {
	rec := Reconcile(uuid.New(), nil, nil, time.Now())
	if !rec.Balanced || rec.Entries != 0 {
		t.Fatalf("empty wallet with empty ledger must balance: %+v", rec)
	}
}
