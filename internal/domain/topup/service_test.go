package topup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/pkg/events"
	"github.com/printhub/printhub-api/internal/store/memory"
)

type stubCrediter struct {
	store   topup.Store
	applied bool
	err     error
}

// ApproveTopUp finalizes the request without touching any wallet.
func (c *stubCrediter) ApproveTopUp(ctx context.Context, id, approverID uuid.UUID) (*topup.TopUp, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	t, err := c.store.TopUps().GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return t, c.applied, nil
}

func newService() (*topup.Service, *stubCrediter, *events.Recorder) {
	store := memory.New().TopUpStore()
	svc := topup.NewService(store)
	crediter := &stubCrediter{store: store, applied: true}
	rec := &events.Recorder{}
	svc.SetCrediter(crediter)
	svc.SetPublisher(rec)
	return svc, crediter, rec
}

func grams(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCreateTopUp_NormalizesAndMerges(t *testing.T) {
	svc, _, rec := newService()
	user := uuid.New()

	got, err := svc.CreateTopUp(context.Background(), user, topup.CreateInput{
		Hours: decimal.NewFromInt(3),
		Items: []topup.ItemInput{
			{Material: "pla", Color: "white", Grams: grams(200)},
			{Material: "PLA+", Color: "WH", Grams: grams(300)},
			{Material: "Nylon", Color: "red", Grams: grams(50)},
		},
		AmountMinor: 150000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.Status != topup.StatusPending || got.UserID != user {
		t.Fatalf("unexpected top-up: %+v", got)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected merged items, got %+v", got.Items)
	}
	first := got.Items[0]
	if first.Material != filament.MaterialPLA || first.Color != filament.ColorWhite || !first.Grams.Equal(grams(500)) {
		t.Fatalf("unexpected first item: %+v", first)
	}
	second := got.Items[1]
	if second.Material != filament.MaterialOther || second.Color != filament.ColorGray {
		t.Fatalf("unexpected second item: %+v", second)
	}
	if types := rec.Types(); len(types) != 1 || types[0] != events.TopUpCreated {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestCreateTopUp_RejectsEmpty(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   topup.CreateInput
	}{
		{name: "nothing", in: topup.CreateInput{}},
		{name: "negative hours", in: topup.CreateInput{Hours: decimal.NewFromInt(-1)}},
		{name: "zero grams item", in: topup.CreateInput{Hours: decimal.NewFromInt(1), Items: []topup.ItemInput{{Material: "PLA", Color: "White"}}}},
		{name: "negative amount", in: topup.CreateInput{Hours: decimal.NewFromInt(1), AmountMinor: -5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateTopUp(ctx, uuid.New(), tc.in); !errors.Is(err, topup.ErrEmptyTopUp) {
				t.Fatalf("expected ErrEmptyTopUp, got %v", err)
			}
		})
	}
}

func TestCreateTopUp_RejectsUnstorablePrecision(t *testing.T) {
	svc, _, rec := newService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   topup.CreateInput
	}{
		{name: "five decimal hours", in: topup.CreateInput{Hours: decimal.RequireFromString("0.00005")}},
		{name: "five decimal grams", in: topup.CreateInput{Items: []topup.ItemInput{{Material: "PLA", Color: "White", Grams: decimal.RequireFromString("100.12345")}}}},
		{name: "hours overflow", in: topup.CreateInput{Hours: decimal.New(1, 10)}},
		{name: "merged grams overflow", in: topup.CreateInput{Items: []topup.ItemInput{
			{Material: "PLA", Color: "White", Grams: decimal.RequireFromString("6000000000")},
			{Material: "pla", Color: "wh", Grams: decimal.RequireFromString("6000000000")},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateTopUp(ctx, uuid.New(), tc.in); !errors.Is(err, topup.ErrTopUpPrecision) {
				t.Fatalf("expected ErrTopUpPrecision, got %v", err)
			}
		})
	}
	if types := rec.Types(); len(types) != 0 {
		t.Fatalf("rejected top-ups must not emit events: %v", types)
	}
}

func TestApproveTopUp_EmitsOnlyWhenApplied(t *testing.T) {
	svc, crediter, rec := newService()
	ctx := context.Background()
	created, _ := svc.CreateTopUp(ctx, uuid.New(), topup.CreateInput{Hours: decimal.NewFromInt(1)})

	if _, err := svc.ApproveTopUp(ctx, created.ID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	crediter.applied = false
	if _, err := svc.ApproveTopUp(ctx, created.ID, uuid.New()); err != nil {
		t.Fatalf("approve again: %v", err)
	}

	approvals := 0
	for _, typ := range rec.Types() {
		if typ == events.TopUpApproved {
			approvals++
		}
	}
	if approvals != 1 {
		t.Fatalf("expected one approval event, got %d", approvals)
	}
}

func TestApproveTopUp_NoCrediter(t *testing.T) {
	svc := topup.NewService(memory.New().TopUpStore())
	if _, err := svc.ApproveTopUp(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, topup.ErrCrediterUnavailable) {
		t.Fatalf("expected ErrCrediterUnavailable, got %v", err)
	}
}

func TestRejectTopUp(t *testing.T) {
	svc, _, rec := newService()
	ctx := context.Background()
	staff := uuid.New()
	created, _ := svc.CreateTopUp(ctx, uuid.New(), topup.CreateInput{Hours: decimal.NewFromInt(1)})

	got, err := svc.RejectTopUp(ctx, created.ID, staff, "no payment")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != topup.StatusRejected || got.RejectionNote != "no payment" || got.RejectedBy == nil || *got.RejectedBy != staff {
		t.Fatalf("unexpected top-up: %+v", got)
	}

	if _, err := svc.RejectTopUp(ctx, created.ID, staff, "again"); err != nil {
		t.Fatalf("second reject should be a no-op, got %v", err)
	}
	rejections := 0
	for _, typ := range rec.Types() {
		if typ == events.TopUpRejected {
			rejections++
		}
	}
	if rejections != 1 {
		t.Fatalf("expected one rejection event, got %d", rejections)
	}
}

func TestRejectTopUp_AfterApproval(t *testing.T) {
	ctx := context.Background()
	store := memory.New().TopUpStore()
	svc := topup.NewService(store)
	created, _ := svc.CreateTopUp(ctx, uuid.New(), topup.CreateInput{Hours: decimal.NewFromInt(1)})

	err := store.WithinTx(ctx, func(ctx context.Context, topups topup.Repository) error {
		tp, err := topups.GetForUpdate(ctx, created.ID)
		if err != nil {
			return err
		}
		tp.Approve(uuid.New(), tp.CreatedAt)
		return topups.Update(ctx, tp)
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := svc.RejectTopUp(ctx, created.ID, uuid.New(), ""); !errors.Is(err, topup.ErrTopUpFinalized) {
		t.Fatalf("expected ErrTopUpFinalized, got %v", err)
	}
}

func TestGetTopUp_Visibility(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	owner := uuid.New()
	created, _ := svc.CreateTopUp(ctx, owner, topup.CreateInput{Hours: decimal.NewFromInt(1)})

	if _, err := svc.GetTopUp(ctx, created.ID, owner, false); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.GetTopUp(ctx, created.ID, uuid.New(), true); err != nil {
		t.Fatalf("staff get: %v", err)
	}
	if _, err := svc.GetTopUp(ctx, created.ID, uuid.New(), false); !errors.Is(err, topup.ErrNotYourTopUp) {
		t.Fatalf("expected ErrNotYourTopUp, got %v", err)
	}
}
