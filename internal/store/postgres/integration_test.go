package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/domain/transfer"
	"github.com/printhub/printhub-api/internal/domain/wallet"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
	"github.com/printhub/printhub-api/internal/store/postgres"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("PRINTHUB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PRINTHUB_TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("db not available: %v", err)
	}

	var exists bool
	if err := db.Get(&exists, `SELECT to_regclass('public.print_jobs') IS NOT NULL`); err != nil {
		t.Fatalf("check schema: %v", err)
	}
	if !exists {
		ddl, err := os.ReadFile("../../../migrations/000001_init.up.sql")
		if err != nil {
			t.Fatalf("read migration: %v", err)
		}
		if _, err := db.Exec(string(ddl)); err != nil {
			t.Fatalf("apply migration: %v", err)
		}
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func cleanupUser(db *sqlx.DB, userID uuid.UUID) {
	db.Exec("DELETE FROM ledger_entries WHERE user_id = $1", userID)
	db.Exec("DELETE FROM print_jobs WHERE user_id = $1", userID)
	db.Exec("DELETE FROM topups WHERE user_id = $1", userID)
	db.Exec("DELETE FROM wallets WHERE user_id = $1", userID)
}

func TestPostgresChargeOnceAndReconcile(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := postgres.New(db)
	policy := txretry.Policy{MaxAttempts: 5, Backoff: 5 * time.Millisecond}

	protocol := transfer.New(store)
	protocol.SetRetryPolicy(policy)
	jobs := printjob.NewService(store.JobStore())
	jobs.SetCharger(protocol)
	topups := topup.NewService(store.TopUpStore())
	topups.SetCrediter(protocol)
	wallets := wallet.NewService(store.WalletStore())

	user, staff := uuid.New(), uuid.New()
	t.Cleanup(func() { cleanupUser(db, user) })

	req, err := topups.CreateTopUp(ctx, user, topup.CreateInput{
		Hours: decimal.NewFromInt(4),
		Items: []topup.ItemInput{{Material: "PLA", Color: "White", Grams: decimal.NewFromInt(300)}},
	})
	if err != nil {
		t.Fatalf("create top-up: %v", err)
	}
	if _, err := topups.ApproveTopUp(ctx, req.ID, staff); err != nil {
		t.Fatalf("approve top-up: %v", err)
	}

	job, err := jobs.CreateJob(ctx, user, printjob.CreateJobInput{
		Model:    printjob.Model{Filename: "gear.stl", StoragePath: "models/" + user.String() + "/gear.stl"},
		Quantity: 1,
		Settings: printjob.Settings{FilamentType: "PLA", Color: "white"},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := jobs.SetQuote(ctx, job.ID, staff, printjob.Quote{Hours: decimal.NewFromInt(1), Grams: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("quote: %v", err)
	}

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := protocol.DecideAndCharge(ctx, job.ID, user, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, printjob.ErrNotQuoted), errors.Is(err, txretry.ErrConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one charge, got %d", successes)
	}

	w, err := wallets.GetWallet(ctx, user)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !w.Hours.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("hours = %s, want 3", w.Hours)
	}

	rec, err := wallets.Reconcile(ctx, user)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Balanced {
		t.Fatalf("wallet does not reconcile: %+v", rec)
	}
}
