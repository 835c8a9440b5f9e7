package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
)

// Pagination for listing
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Repository defines wallet data access.
// GetForUpdate and GetOrCreateForUpdate lock the row until the surrounding transaction ends.
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	GetForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	Save(ctx context.Context, w *Wallet) error
}

// LedgerRepository is append-only.
type LedgerRepository interface {
	Append(ctx context.Context, e *LedgerEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]*LedgerEntry, int, error)
	ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*LedgerEntry, error)
}

// Store exposes wallet reads and a transaction for consistent snapshots.
type Store interface {
	Wallets() Repository
	Ledger() LedgerRepository
	WithinTx(ctx context.Context, fn func(ctx context.Context, wallets Repository, ledger LedgerRepository) error) error
}

type repository struct {
	db sqlx.ExtContext
}

// NewRepository returns a Postgres wallet repository over a DB or a transaction.
func NewRepository(db sqlx.ExtContext) Repository {
	return &repository{db: db}
}

type filamentRow struct {
	Material filament.Material `db:"material"`
	Color    filament.Color    `db:"color"`
	Grams    decimal.Decimal   `db:"grams"`
}

func (r *repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return r.get(ctx, userID, false)
}

func (r *repository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return r.get(ctx, userID, true)
}

func (r *repository) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, hours)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return r.get(ctx, userID, true)
}

func (r *repository) get(ctx context.Context, userID uuid.UUID, forUpdate bool) (*Wallet, error) {
	query := `SELECT user_id, hours, created_at, updated_at FROM wallets WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var w Wallet
	if err := sqlx.GetContext(ctx, r.db, &w, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	var rows []filamentRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT material, color, grams FROM wallet_filament WHERE user_id = $1
	`, userID); err != nil {
		return nil, fmt.Errorf("get wallet filament: %w", err)
	}

	w.Filament = Filament{}
	for _, row := range rows {
		b := filament.Bucket{Material: row.Material, Color: row.Color}
		if !b.Valid() || row.Grams.IsNegative() {
			return nil, fmt.Errorf("%w: user %s bucket %s", ErrMalformedWallet, userID, b)
		}
		w.setGrams(b, row.Grams)
	}
	if w.Hours.IsNegative() {
		return nil, fmt.Errorf("%w: user %s negative hours", ErrMalformedWallet, userID)
	}
	return &w, nil
}

func (r *repository) Save(ctx context.Context, w *Wallet) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET hours = $2, updated_at = $3 WHERE user_id = $1
	`, w.UserID, w.Hours, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWalletNotFound
	}

	for _, b := range w.Buckets() {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO wallet_filament (user_id, material, color, grams)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, material, color) DO UPDATE SET grams = EXCLUDED.grams
		`, w.UserID, b.Material, b.Color, w.Grams(b)); err != nil {
			return fmt.Errorf("save wallet bucket %s: %w", b, err)
		}
	}
	return nil
}

type ledgerRepository struct {
	db sqlx.ExtContext
}

// NewLedgerRepository returns a Postgres ledger over a DB or a transaction.
func NewLedgerRepository(db sqlx.ExtContext) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, e *LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, kind, job_id, topup_id, delta_hours, delta_grams, material, color, at, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq
	`, e.ID, e.UserID, e.Kind, e.JobID, e.TopUpID, e.DeltaHours, e.DeltaGrams, e.Material, e.Color, e.At, e.Note).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

const ledgerColumns = `id, seq, user_id, kind, job_id, topup_id, delta_hours, delta_grams, material, color, at, note`

func (r *ledgerRepository) ListByUser(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]*LedgerEntry, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	entries := []*LedgerEntry{}
	if err := sqlx.SelectContext(ctx, r.db, &entries, `
		SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`, userID, pagination.Limit, pagination.offset()); err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, total, nil
}

func (r *ledgerRepository) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*LedgerEntry, error) {
	entries := []*LedgerEntry{}
	if err := sqlx.SelectContext(ctx, r.db, &entries, `
		SELECT `+ledgerColumns+` FROM ledger_entries WHERE user_id = $1 ORDER BY seq ASC
	`, userID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("ledger entry %s: %w", e.ID, err)
		}
	}
	return entries, nil
}
