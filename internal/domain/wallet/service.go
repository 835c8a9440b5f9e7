package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service exposes read-only wallet views. Balances change only through the
// transfer protocol.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// GetWallet returns the customer's wallet. A customer with no wallet yet sees
// zero balances; nothing is persisted.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w, err := s.store.Wallets().GetByUserID(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return New(userID, s.now().UTC()), nil
	}
	return w, err
}

// ListLedger returns entries newest first.
func (s *Service) ListLedger(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]*LedgerEntry, int, error) {
	return s.store.Ledger().ListByUser(ctx, userID, pagination)
}

// Reconcile replays the ledger against the wallet while the wallet row is
// locked, so no transfer can interleave.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.store.WithinTx(ctx, func(ctx context.Context, wallets Repository, ledger LedgerRepository) error {
		w, err := wallets.GetForUpdate(ctx, userID)
		if err != nil && !errors.Is(err, ErrWalletNotFound) {
			return err
		}
		entries, err := ledger.ListAllByUser(ctx, userID)
		if err != nil {
			return err
		}
		rec = Reconcile(userID, w, entries, s.now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
