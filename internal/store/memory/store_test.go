package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/domain/transfer"
	"github.com/printhub/printhub-api/internal/domain/wallet"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
)

var plaWhite = filament.Bucket{Material: filament.MaterialPLA, Color: filament.ColorWhite}

func newJob(userID uuid.UUID, created time.Time) *printjob.Job {
	return &printjob.Job{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        printjob.StatusSubmitted,
		Model:         printjob.Model{Filename: "a.stl", StoragePath: "models/a.stl"},
		Quantity:      1,
		Settings:      printjob.Settings{FilamentType: "PLA", Color: "White"},
		MaterialClass: filament.MaterialPLA,
		ColorClass:    filament.ColorWhite,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx transfer.Tx) error {
		w, err := tx.Wallets().GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := w.Credit(decimal.NewFromInt(5), time.Now()); err != nil {
			return err
		}
		if err := tx.Wallets().Save(ctx, w); err != nil {
			return err
		}
		if err := tx.Ledger().Append(ctx, &wallet.LedgerEntry{UserID: userID, Kind: wallet.EntryCredit, DeltaHours: decimal.NewFromInt(5)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := s.WalletStore().Wallets().GetByUserID(ctx, userID); !errors.Is(err, wallet.ErrWalletNotFound) {
		t.Fatalf("expected rolled back wallet, got %v", err)
	}
	entries, err := s.WalletStore().Ledger().ListAllByUser(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(entries))
	}
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()

	err := s.WithinTx(ctx, func(ctx context.Context, tx transfer.Tx) error {
		w, err := tx.Wallets().GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := w.CreditFilament(plaWhite, decimal.NewFromInt(300), time.Now()); err != nil {
			return err
		}
		if err := tx.Wallets().Save(ctx, w); err != nil {
			return err
		}
		return tx.Ledger().Append(ctx, &wallet.LedgerEntry{
			UserID:     userID,
			Kind:       wallet.EntryCredit,
			DeltaGrams: decimal.NewFromInt(300),
			Material:   plaWhite.Material,
			Color:      plaWhite.Color,
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w, err := s.WalletStore().Wallets().GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Grams(plaWhite).Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected 300g, got %s", w.Grams(plaWhite))
	}
	entries, _ := s.WalletStore().Ledger().ListAllByUser(ctx, userID)
	if len(entries) != 1 || entries[0].Seq != 1 || entries[0].ID == uuid.Nil {
		t.Fatalf("unexpected ledger: %+v", entries)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	job := newJob(uuid.New(), time.Now())
	if err := s.JobStore().Jobs().Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.JobStore().Jobs().GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = printjob.StatusCancelled

	again, _ := s.JobStore().Jobs().GetByID(ctx, job.ID)
	if again.Status != printjob.StatusSubmitted {
		t.Fatalf("stored job mutated through a read: %s", again.Status)
	}
}

func TestInjectConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.InjectConflicts(1)

	calls := 0
	err := s.WithinTx(ctx, func(context.Context, transfer.Tx) error {
		calls++
		return nil
	})
	if !errors.Is(err, txretry.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if calls != 0 {
		t.Fatal("callback ran despite conflict")
	}

	if err := s.WithinTx(ctx, func(context.Context, transfer.Tx) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestJobList_FiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, bob := uuid.New(), uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i, owner := range []uuid.UUID{alice, bob, alice, alice} {
		j := newJob(owner, base.Add(time.Duration(i)*time.Hour))
		if err := s.JobStore().Jobs().Create(ctx, j); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, j.ID)
	}

	jobs, total, err := s.JobStore().Jobs().List(ctx, printjob.Filter{UserID: &alice}, printjob.Pagination{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(jobs) != 2 || jobs[0].ID != ids[3] || jobs[1].ID != ids[2] {
		t.Fatalf("expected newest first page")
	}

	jobs, _, _ = s.JobStore().Jobs().List(ctx, printjob.Filter{UserID: &alice}, printjob.Pagination{Page: 2, Limit: 2})
	if len(jobs) != 1 || jobs[0].ID != ids[0] {
		t.Fatalf("expected oldest job on page 2")
	}

	jobs, total, _ = s.JobStore().Jobs().List(ctx, printjob.Filter{Statuses: []printjob.Status{printjob.StatusQuoted}}, printjob.Pagination{Page: 1, Limit: 10})
	if total != 0 || len(jobs) != 0 {
		t.Fatalf("expected no quoted jobs, got %d", total)
	}
}

func TestTopUpUpdate_RequiresPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	tp := &topup.TopUp{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Hours:     decimal.NewFromInt(1),
		Status:    topup.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	repo := s.TopUpStore().TopUps()
	if err := repo.Create(ctx, tp); err != nil {
		t.Fatalf("create: %v", err)
	}

	tp.Approve(uuid.New(), now)
	if err := repo.Update(ctx, tp); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := repo.Update(ctx, tp); !errors.Is(err, topup.ErrTopUpFinalized) {
		t.Fatalf("expected ErrTopUpFinalized, got %v", err)
	}
}

func TestRejectsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	s := New()

	job := newJob(uuid.New(), time.Now())
	job.Status = printjob.StatusApproved
	if err := s.JobStore().Jobs().Create(ctx, job); !errors.Is(err, printjob.ErrMalformedJob) {
		t.Fatalf("expected malformed job error, got %v", err)
	}

	err := s.WalletStore().Ledger().Append(ctx, &wallet.LedgerEntry{
		UserID:     uuid.New(),
		Kind:       wallet.EntryDebit,
		DeltaHours: decimal.NewFromInt(1),
	})
	if !errors.Is(err, wallet.ErrInvalidEntry) {
		t.Fatalf("expected invalid entry, got %v", err)
	}
}
