package printjob

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

	"github.com/printhub/printhub-api/internal/domain/filament"
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

// Repository defines job data access. GetForUpdate locks the job until the
// surrounding transaction ends.
type Repository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Job, error)
	Update(ctx context.Context, job *Job) error
	CountByStatus(ctx context.Context, statuses ...Status) (int, error)
	List(ctx context.Context, filter Filter, pagination Pagination) ([]*Job, int, error)
}

// Store gives access to jobs outside and inside a transaction.
type Store interface {
	Jobs() Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, jobs Repository) error) error
}

type repository struct {
	db sqlx.ExtContext
}

// NewRepository returns a Postgres job repository over a DB or a transaction.
func NewRepository(db sqlx.ExtContext) Repository {
	return &repository{db: db}
}

type jobRow struct {
	ID            uuid.UUID         `db:"id"`
	UserID        uuid.UUID         `db:"user_id"`
	Status        Status            `db:"status"`
	Model         []byte            `db:"model"`
	Quantity      int               `db:"quantity"`
	Settings      []byte            `db:"settings"`
	Notes         string            `db:"notes"`
	MaterialClass filament.Material `db:"material_class"`
	ColorClass    filament.Color    `db:"color_class"`
	Quote         []byte            `db:"quote"`
	Decision      []byte            `db:"decision"`
	Locked        []byte            `db:"locked"`
	Charge        []byte            `db:"charge"`
	Actuals       []byte            `db:"actuals"`
	Refund        []byte            `db:"refund"`
	ResourceID    string            `db:"resource_id"`
	CancelReason  string            `db:"cancel_reason"`
	ErrorMessage  string            `db:"error_message"`
	CreatedAt     time.Time         `db:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at"`
	StartedAt     *time.Time        `db:"started_at"`
	CancelledAt   *time.Time        `db:"cancelled_at"`
	FailedAt      *time.Time        `db:"failed_at"`
}

const jobColumns = `id, user_id, status, model, quantity, settings, notes, material_class, color_class,
	quote, decision, locked, charge, actuals, refund, resource_id, cancel_reason, error_message,
	created_at, updated_at, started_at, cancelled_at, failed_at`

func decodeOptional[T any](raw []byte, dst **T) error {
	if len(raw) == 0 {
		*dst = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// toJob decodes a row and rejects records that break the job invariants.
func (row *jobRow) toJob() (*Job, error) {
	j := &Job{
		ID:            row.ID,
		UserID:        row.UserID,
		Status:        row.Status,
		Quantity:      row.Quantity,
		Notes:         row.Notes,
		MaterialClass: row.MaterialClass,
		ColorClass:    row.ColorClass,
		ResourceID:    row.ResourceID,
		CancelReason:  row.CancelReason,
		ErrorMessage:  row.ErrorMessage,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		StartedAt:     row.StartedAt,
		CancelledAt:   row.CancelledAt,
		FailedAt:      row.FailedAt,
	}

	malformed := func(field string, err error) error {
		return &MalformedError{JobID: row.ID, Reason: fmt.Sprintf("%s: %v", field, err)}
	}
	if err := json.Unmarshal(row.Model, &j.Model); err != nil {
		return nil, malformed("model", err)
	}
	if err := json.Unmarshal(row.Settings, &j.Settings); err != nil {
		return nil, malformed("settings", err)
	}
	if err := decodeOptional(row.Quote, &j.Quote); err != nil {
		return nil, malformed("quote", err)
	}
	if err := decodeOptional(row.Decision, &j.Decision); err != nil {
		return nil, malformed("decision", err)
	}
	if err := decodeOptional(row.Locked, &j.Locked); err != nil {
		return nil, malformed("locked", err)
	}
	if err := decodeOptional(row.Charge, &j.Charge); err != nil {
		return nil, malformed("charge", err)
	}
	if err := decodeOptional(row.Actuals, &j.Actuals); err != nil {
		return nil, malformed("actuals", err)
	}
	if err := decodeOptional(row.Refund, &j.Refund); err != nil {
		return nil, malformed("refund", err)
	}

	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// jsonArg encodes v for a jsonb parameter; nil pointers become NULL.
func jsonArg(v interface{}, isNil bool) (interface{}, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jobArgs(j *Job) ([]interface{}, error) {
	parts := []struct {
		v     interface{}
		isNil bool
	}{
		{j.Model, false},
		{j.Settings, false},
		{j.Quote, j.Quote == nil},
		{j.Decision, j.Decision == nil},
		{j.Locked, j.Locked == nil},
		{j.Charge, j.Charge == nil},
		{j.Actuals, j.Actuals == nil},
		{j.Refund, j.Refund == nil},
	}
	encoded := make([]interface{}, len(parts))
	for i, p := range parts {
		v, err := jsonArg(p.v, p.isNil)
		if err != nil {
			return nil, fmt.Errorf("encode job %s: %w", j.ID, err)
		}
		encoded[i] = v
	}

	return []interface{}{
		j.ID, j.UserID, j.Status, encoded[0], j.Quantity, encoded[1], j.Notes, j.MaterialClass, j.ColorClass,
		encoded[2], encoded[3], encoded[4], encoded[5], encoded[6], encoded[7],
		j.ResourceID, j.CancelReason, j.ErrorMessage, j.CreatedAt, j.UpdatedAt, j.StartedAt, j.CancelledAt, j.FailedAt,
	}, nil
}

func (r *repository) Create(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	args, err := jobArgs(job)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO print_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`, args...)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *repository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row jobRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return row.toJob()
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	return r.get(ctx, id, false)
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Job, error) {
	return r.get(ctx, id, true)
}

func (r *repository) Update(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	args, err := jobArgs(job)
	if err != nil {
		return err
	}

	// user_id is immutable and guards the update.
	res, err := r.db.ExecContext(ctx, `
		UPDATE print_jobs SET
			status = $3, model = $4, quantity = $5, settings = $6, notes = $7,
			material_class = $8, color_class = $9, quote = $10, decision = $11, locked = $12,
			charge = $13, actuals = $14, refund = $15, resource_id = $16, cancel_reason = $17,
			error_message = $18, created_at = $19, updated_at = $20, started_at = $21,
			cancelled_at = $22, failed_at = $23
		WHERE id = $1 AND user_id = $2
	`, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
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

func (r *repository) CountByStatus(ctx context.Context, statuses ...Status) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, `
		SELECT COUNT(*) FROM print_jobs WHERE status = ANY($1)
	`, statusStrings(statuses)); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

func (r *repository) List(ctx context.Context, filter Filter, pagination Pagination) ([]*Job, int, error) {
	where := `WHERE ($1::uuid IS NULL OR user_id = $1) AND (cardinality($2::text[]) = 0 OR status = ANY($2))`
	args := []interface{}{filter.UserID, statusStrings(filter.Statuses)}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM print_jobs `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	var rows []jobRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT `+jobColumns+` FROM print_jobs `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, append(args, pagination.Limit, pagination.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]*Job, 0, len(rows))
	for i := range rows {
		j, err := rows[i].toJob()
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, j)
	}
	return jobs, total, nil
}
