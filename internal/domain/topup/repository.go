package topup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Filter represents list filters. Zero values match everything.
type Filter struct {
	UserID   *uuid.UUID
	Statuses []Status
}

// Pagination for listing
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Repository defines top-up data access.
type Repository interface {
	Create(ctx context.Context, t *TopUp) error
	GetByID(ctx context.Context, id uuid.UUID) (*TopUp, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*TopUp, error)
	Update(ctx context.Context, t *TopUp) error
	List(ctx context.Context, filter Filter, pagination Pagination) ([]*TopUp, int, error)
}

// Store gives access to top-ups outside and inside a transaction.
type Store interface {
	TopUps() Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, topups Repository) error) error
}

type repository struct {
	db sqlx.ExtContext
}

// NewRepository returns a Postgres top-up repository over a DB or a transaction.
func NewRepository(db sqlx.ExtContext) Repository {
	return &repository{db: db}
}

type topUpRow struct {
	ID            uuid.UUID       `db:"id"`
	UserID        uuid.UUID       `db:"user_id"`
	Hours         decimal.Decimal `db:"hours"`
	Items         []byte          `db:"items"`
	AmountMinor   int64           `db:"amount_minor"`
	Status        Status          `db:"status"`
	Note          string          `db:"note"`
	ApprovedBy    *uuid.UUID      `db:"approved_by"`
	ApprovedAt    *time.Time      `db:"approved_at"`
	RejectedBy    *uuid.UUID      `db:"rejected_by"`
	RejectedAt    *time.Time      `db:"rejected_at"`
	RejectionNote string          `db:"rejection_note"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

const topUpColumns = `id, user_id, hours, items, amount_minor, status, note, approved_by, approved_at,
	rejected_by, rejected_at, rejection_note, created_at, updated_at`

func (row *topUpRow) toTopUp() (*TopUp, error) {
	t := &TopUp{
		ID:            row.ID,
		UserID:        row.UserID,
		Hours:         row.Hours,
		AmountMinor:   row.AmountMinor,
		Status:        row.Status,
		Note:          row.Note,
		ApprovedBy:    row.ApprovedBy,
		ApprovedAt:    row.ApprovedAt,
		RejectedBy:    row.RejectedBy,
		RejectedAt:    row.RejectedAt,
		RejectionNote: row.RejectionNote,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Items, &t.Items); err != nil {
		return nil, &MalformedError{TopUpID: row.ID, Reason: "items: " + err.Error()}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func itemsArg(items []Item) (string, error) {
	if items == nil {
		items = []Item{}
	}
	b, err := json.Marshal(items)
	return string(b), err
}

func (r *repository) Create(ctx context.Context, t *TopUp) error {
	if err := t.Validate(); err != nil {
		return err
	}
	items, err := itemsArg(t.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO topups (id, user_id, hours, items, amount_minor, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.UserID, t.Hours, items, t.AmountMinor, t.Status, t.Note, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create topup: %w", err)
	}
	return nil
}

func (r *repository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*TopUp, error) {
	query := `SELECT ` + topUpColumns + ` FROM topups WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row topUpRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTopUpNotFound
		}
		return nil, fmt.Errorf("get topup: %w", err)
	}
	return row.toTopUp()
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*TopUp, error) {
	return r.get(ctx, id, false)
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*TopUp, error) {
	return r.get(ctx, id, true)
}

// Update only writes the status and audit fields; amounts are immutable.
// The status guard makes it a conditional write on pending requests.
func (r *repository) Update(ctx context.Context, t *TopUp) error {
	if err := t.Validate(); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE topups SET
			status = $2, approved_by = $3, approved_at = $4,
			rejected_by = $5, rejected_at = $6, rejection_note = $7, updated_at = $8
		WHERE id = $1 AND status = 'pending'
	`, t.ID, t.Status, t.ApprovedBy, t.ApprovedAt, t.RejectedBy, t.RejectedAt, t.RejectionNote, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update topup: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTopUpFinalized
	}
	return nil
}

func statusStrings(statuses []Status) pq.StringArray {
	out := make(pq.StringArray, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func (r *repository) List(ctx context.Context, filter Filter, pagination Pagination) ([]*TopUp, int, error) {
	where := `WHERE ($1::uuid IS NULL OR user_id = $1) AND (cardinality($2::text[]) = 0 OR status = ANY($2))`
	args := []interface{}{filter.UserID, statusStrings(filter.Statuses)}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM topups `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count topups: %w", err)
	}

	var rows []topUpRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT `+topUpColumns+` FROM topups `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, append(args, pagination.Limit, pagination.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list topups: %w", err)
	}

	out := make([]*TopUp, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toTopUp()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, nil
}
