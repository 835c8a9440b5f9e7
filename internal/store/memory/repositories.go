package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/domain/wallet"
)

func page[T any](items []T, p, limit int) []T {
	if limit <= 0 {
		return items
	}
	start := 0
	if p > 1 {
		start = (p - 1) * limit
	}
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func newestFirst(aAt, bAt time.Time, aID, bID uuid.UUID) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return aID.String() > bID.String()
}

type jobRepo struct{ v view }

func (r jobRepo) Create(_ context.Context, job *printjob.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		st.jobs[job.ID] = job.Clone()
		return nil
	})
}

func (r jobRepo) GetByID(_ context.Context, id uuid.UUID) (*printjob.Job, error) {
	var out *printjob.Job
	err := r.v.read(func(st *state) error {
		j, ok := st.jobs[id]
		if !ok {
			return printjob.ErrJobNotFound
		}
		out = j.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions are serialized.
func (r jobRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*printjob.Job, error) {
	return r.GetByID(ctx, id)
}

func (r jobRepo) Update(_ context.Context, job *printjob.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		prev, ok := st.jobs[job.ID]
		if !ok || prev.UserID != job.UserID {
			return printjob.ErrJobNotFound
		}
		st.jobs[job.ID] = job.Clone()
		return nil
	})
}

func (r jobRepo) CountByStatus(_ context.Context, statuses ...printjob.Status) (int, error) {
	n := 0
	err := r.v.read(func(st *state) error {
		for _, j := range st.jobs {
			for _, s := range statuses {
				if j.Status == s {
					n++
					break
				}
			}
		}
		return nil
	})
	return n, err
}

func (r jobRepo) List(_ context.Context, filter printjob.Filter, p printjob.Pagination) ([]*printjob.Job, int, error) {
	var matched []*printjob.Job
	err := r.v.read(func(st *state) error {
		for _, j := range st.jobs {
			if filter.UserID != nil && j.UserID != *filter.UserID {
				continue
			}
			if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, j.Status) {
				continue
			}
			matched = append(matched, j.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(a, b int) bool {
		return newestFirst(matched[a].CreatedAt, matched[b].CreatedAt, matched[a].ID, matched[b].ID)
	})
	return page(matched, p.Page, p.Limit), len(matched), nil
}

func containsStatus(list []printjob.Status, s printjob.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type walletRepo struct{ v view }

func (r walletRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	var out *wallet.Wallet
	err := r.v.read(func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			return wallet.ErrWalletNotFound
		}
		out = w.Clone()
		return nil
	})
	return out, err
}

func (r walletRepo) GetForUpdate(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r walletRepo) GetOrCreateForUpdate(_ context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	var out *wallet.Wallet
	err := r.v.write(func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			w = wallet.New(userID, time.Now().UTC())
			st.wallets[userID] = w
		}
		out = w.Clone()
		return nil
	})
	return out, err
}

func (r walletRepo) Save(_ context.Context, w *wallet.Wallet) error {
	if w.Hours.IsNegative() {
		return wallet.ErrMalformedWallet
	}
	for _, b := range w.Buckets() {
		if w.Grams(b).IsNegative() {
			return wallet.ErrMalformedWallet
		}
	}
	return r.v.write(func(st *state) error {
		if _, ok := st.wallets[w.UserID]; !ok {
			return wallet.ErrWalletNotFound
		}
		st.wallets[w.UserID] = w.Clone()
		return nil
	})
}

type ledgerRepo struct{ v view }

func (r ledgerRepo) Append(_ context.Context, e *wallet.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.At.IsZero() {
			e.At = time.Now().UTC()
		}
		st.seq++
		e.Seq = st.seq
		st.ledger = append(st.ledger, *e)
		return nil
	})
}

func (r ledgerRepo) entries(userID uuid.UUID) ([]*wallet.LedgerEntry, error) {
	var out []*wallet.LedgerEntry
	err := r.v.read(func(st *state) error {
		for i := range st.ledger {
			if st.ledger[i].UserID == userID {
				e := st.ledger[i]
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

func (r ledgerRepo) ListByUser(_ context.Context, userID uuid.UUID, p wallet.Pagination) ([]*wallet.LedgerEntry, int, error) {
	all, err := r.entries(userID)
	if err != nil {
		return nil, 0, err
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return page(all, p.Page, p.Limit), len(all), nil
}

func (r ledgerRepo) ListAllByUser(_ context.Context, userID uuid.UUID) ([]*wallet.LedgerEntry, error) {
	all, err := r.entries(userID)
	if all == nil {
		all = []*wallet.LedgerEntry{}
	}
	return all, err
}

type topUpRepo struct{ v view }

func (r topUpRepo) Create(_ context.Context, t *topup.TopUp) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		st.topups[t.ID] = t.Clone()
		return nil
	})
}

func (r topUpRepo) GetByID(_ context.Context, id uuid.UUID) (*topup.TopUp, error) {
	var out *topup.TopUp
	err := r.v.read(func(st *state) error {
		t, ok := st.topups[id]
		if !ok {
			return topup.ErrTopUpNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r topUpRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*topup.TopUp, error) {
	return r.GetByID(ctx, id)
}

// Update is conditional on the stored request still being pending.
func (r topUpRepo) Update(_ context.Context, t *topup.TopUp) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		prev, ok := st.topups[t.ID]
		if !ok {
			return topup.ErrTopUpNotFound
		}
		if prev.Status != topup.StatusPending {
			return topup.ErrTopUpFinalized
		}
		st.topups[t.ID] = t.Clone()
		return nil
	})
}

func (r topUpRepo) List(_ context.Context, filter topup.Filter, p topup.Pagination) ([]*topup.TopUp, int, error) {
	var matched []*topup.TopUp
	err := r.v.read(func(st *state) error {
		for _, t := range st.topups {
			if filter.UserID != nil && t.UserID != *filter.UserID {
				continue
			}
			if len(filter.Statuses) > 0 {
				found := false
				for _, s := range filter.Statuses {
					if s == t.Status {
						found = true
						break
					}
				}
				if !found {
					continue
				}
			}
			matched = append(matched, t.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(a, b int) bool {
		return newestFirst(matched[a].CreatedAt, matched[b].CreatedAt, matched[a].ID, matched[b].ID)
	})
	return page(matched, p.Page, p.Limit), len(matched), nil
}
