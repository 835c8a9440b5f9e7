// Package memory is an in-process store with serializable, all-or-nothing
// transactions. Each transaction works on a private copy of the state that
// replaces the committed state only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/domain/transfer"
	"github.com/printhub/printhub-api/internal/domain/wallet"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
)

type state struct {
	jobs    map[uuid.UUID]*printjob.Job
	wallets map[uuid.UUID]*wallet.Wallet
	topups  map[uuid.UUID]*topup.TopUp
	ledger  []wallet.LedgerEntry
	seq     int64
}

func newState() *state {
	return &state{
		jobs:    map[uuid.UUID]*printjob.Job{},
		wallets: map[uuid.UUID]*wallet.Wallet{},
		topups:  map[uuid.UUID]*topup.TopUp{},
	}
}

// clone copies mutable records. Ledger entries are values and never change.
func (s *state) clone() *state {
	cp := &state{
		jobs:    make(map[uuid.UUID]*printjob.Job, len(s.jobs)),
		wallets: make(map[uuid.UUID]*wallet.Wallet, len(s.wallets)),
		topups:  make(map[uuid.UUID]*topup.TopUp, len(s.topups)),
		ledger:  s.ledger[:len(s.ledger):len(s.ledger)],
		seq:     s.seq,
	}
	for id, j := range s.jobs {
		cp.jobs[id] = j.Clone()
	}
	for id, w := range s.wallets {
		cp.wallets[id] = w.Clone()
	}
	for id, t := range s.topups {
		cp.topups[id] = t.Clone()
	}
	return cp
}

// Store implements transfer.Store and, through its adapters, the per-domain stores.
type Store struct {
	mu        sync.RWMutex
	st        *state
	conflicts int
}

func New() *Store {
	return &Store{st: newState()}
}

// InjectConflicts makes the next n transactions fail with txretry.ErrConflict
// before running.
func (s *Store) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

func (s *Store) begin(ctx context.Context) (*state, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.conflicts > 0 {
		s.conflicts--
		return nil, fmt.Errorf("memory store: %w", txretry.ErrConflict)
	}
	return s.st.clone(), nil
}

// WithinTx runs fn with exclusive access to a copy of the state.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx transfer.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, txView{v: view{st: work}}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) withinTx(ctx context.Context, fn func(ctx context.Context, v view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, view{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// view reads and writes either a transaction's private state or, when
// store is set, the committed state under the store lock.
type view struct {
	store *Store
	st    *state
}

func (v view) read(fn func(st *state) error) error {
	if v.store == nil {
		return fn(v.st)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.st)
}

func (v view) write(fn func(st *state) error) error {
	if v.store == nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func (s *Store) committed() view {
	return view{store: s}
}

type txView struct {
	v view
}

func (t txView) Jobs() printjob.Repository       { return jobRepo{t.v} }
func (t txView) Wallets() wallet.Repository      { return walletRepo{t.v} }
func (t txView) Ledger() wallet.LedgerRepository { return ledgerRepo{t.v} }
func (t txView) TopUps() topup.Repository        { return topUpRepo{t.v} }

// JobStore adapts s to printjob.Store.
func (s *Store) JobStore() printjob.Store { return jobStore{s} }

// TopUpStore adapts s to topup.Store.
func (s *Store) TopUpStore() topup.Store { return topUpStore{s} }

// WalletStore adapts s to wallet.Store.
func (s *Store) WalletStore() wallet.Store { return walletStore{s} }

type jobStore struct{ s *Store }

func (a jobStore) Jobs() printjob.Repository { return jobRepo{a.s.committed()} }

func (a jobStore) WithinTx(ctx context.Context, fn func(ctx context.Context, jobs printjob.Repository) error) error {
	return a.s.withinTx(ctx, func(ctx context.Context, v view) error { return fn(ctx, jobRepo{v}) })
}

type topUpStore struct{ s *Store }

func (a topUpStore) TopUps() topup.Repository { return topUpRepo{a.s.committed()} }

func (a topUpStore) WithinTx(ctx context.Context, fn func(ctx context.Context, topups topup.Repository) error) error {
	return a.s.withinTx(ctx, func(ctx context.Context, v view) error { return fn(ctx, topUpRepo{v}) })
}

type walletStore struct{ s *Store }

func (a walletStore) Wallets() wallet.Repository      { return walletRepo{a.s.committed()} }
func (a walletStore) Ledger() wallet.LedgerRepository { return ledgerRepo{a.s.committed()} }

func (a walletStore) WithinTx(ctx context.Context, fn func(ctx context.Context, wallets wallet.Repository, ledger wallet.LedgerRepository) error) error {
	return a.s.withinTx(ctx, func(ctx context.Context, v view) error { return fn(ctx, walletRepo{v}, ledgerRepo{v}) })
}

var _ transfer.Store = (*Store)(nil)
