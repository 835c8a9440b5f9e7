// Package postgres runs the domain repositories inside database transactions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/domain/transfer"
	"github.com/printhub/printhub-api/internal/domain/wallet"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// Store implements transfer.Store on a connection pool.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WithinTx runs fn in a read-committed transaction. Row locks taken by the
// repositories' ForUpdate reads serialize writers on the same records.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx transfer.Tx) error) error {
	return s.withinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, txView{tx: tx})
	})
}

func (s *Store) withinTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// mapError marks errors a retry can resolve with txretry.ErrConflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return fmt.Errorf("%w: %w", txretry.ErrConflict, err)
	}
	return err
}

type txView struct {
	tx *sqlx.Tx
}

func (v txView) Jobs() printjob.Repository       { return printjob.NewRepository(v.tx) }
func (v txView) Wallets() wallet.Repository      { return wallet.NewRepository(v.tx) }
func (v txView) Ledger() wallet.LedgerRepository { return wallet.NewLedgerRepository(v.tx) }
func (v txView) TopUps() topup.Repository        { return topup.NewRepository(v.tx) }

// JobStore adapts s to printjob.Store.
func (s *Store) JobStore() printjob.Store { return jobStore{s} }

// TopUpStore adapts s to topup.Store.
func (s *Store) TopUpStore() topup.Store { return topUpStore{s} }

// WalletStore adapts s to wallet.Store.
func (s *Store) WalletStore() wallet.Store { return walletStore{s} }

type jobStore struct{ s *Store }

func (a jobStore) Jobs() printjob.Repository { return printjob.NewRepository(a.s.db) }

func (a jobStore) WithinTx(ctx context.Context, fn func(ctx context.Context, jobs printjob.Repository) error) error {
	return a.s.withinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, printjob.NewRepository(tx))
	})
}

type topUpStore struct{ s *Store }

func (a topUpStore) TopUps() topup.Repository { return topup.NewRepository(a.s.db) }

func (a topUpStore) WithinTx(ctx context.Context, fn func(ctx context.Context, topups topup.Repository) error) error {
	return a.s.withinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, topup.NewRepository(tx))
	})
}

type walletStore struct{ s *Store }

func (a walletStore) Wallets() wallet.Repository      { return wallet.NewRepository(a.s.db) }
func (a walletStore) Ledger() wallet.LedgerRepository { return wallet.NewLedgerRepository(a.s.db) }

func (a walletStore) WithinTx(ctx context.Context, fn func(ctx context.Context, wallets wallet.Repository, ledger wallet.LedgerRepository) error) error {
	return a.s.withinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, wallet.NewRepository(tx), wallet.NewLedgerRepository(tx))
	})
}

var _ transfer.Store = (*Store)(nil)
