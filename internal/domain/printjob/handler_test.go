package printjob_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/domain/wallet"
	"github.com/printhub/printhub-api/internal/middleware"
	"github.com/printhub/printhub-api/internal/pkg/jwt"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func passthrough(next http.Handler) http.Handler { return next }

func serve(t *testing.T, router http.Handler, method, path, body string, userID uuid.UUID, role string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(middleware.WithIdentity(req.Context(), userID, role))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response: %v (body=%s)", err, rr.Body.String())
	}
	return rr, env
}

func customerRouter(h *harness) http.Handler {
	r := chi.NewRouter()
	r.Mount("/jobs", printjob.NewHandler(h.svc).Routes(passthrough))
	return r
}

func adminRouter(h *harness) http.Handler {
	r := chi.NewRouter()
	r.Mount("/admin/jobs", printjob.NewHandler(h.svc).AdminRoutes())
	return r
}

func TestHandlerCreate(t *testing.T) {
	h := newHarness()
	user := uuid.New()

	body := `{"model":{"filename":"a.stl","storage_path":"models/a.stl"},"quantity":1,"settings":{"filament_type":"tpu","color":"white","layer_height":0.2,"infill_percent":15}}`
	rr, env := serve(t, customerRouter(h), http.MethodPost, "/jobs", body, user, jwt.RoleCustomer)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var job printjob.Job
	if err := json.Unmarshal(env.Data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.UserID != user || job.MaterialClass != filament.MaterialTPU || job.ColorClass != filament.ColorWhite {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestHandlerCreate_Validation(t *testing.T) {
	h := newHarness()
	body := `{"model":{"filename":"a.stl"},"quantity":101,"settings":{"filament_type":"PLA","color":"White"}}`
	rr, env := serve(t, customerRouter(h), http.MethodPost, "/jobs", body, uuid.New(), jwt.RoleCustomer)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
	for _, key := range []string{"model.storage_path", "quantity"} {
		if _, ok := env.Error.Details[key]; !ok {
			t.Errorf("missing detail %q in %v", key, env.Error.Details)
		}
	}
}

func TestHandlerCreate_UnknownField(t *testing.T) {
	h := newHarness()
	rr, _ := serve(t, customerRouter(h), http.MethodPost, "/jobs", `{"price":1}`, uuid.New(), jwt.RoleCustomer)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandlerApprove_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "hours", err: &wallet.HoursError{Available: decimal.NewFromInt(1), Required: decimal.NewFromInt(2)}, wantStatus: http.StatusPaymentRequired, wantCode: "INSUFFICIENT_HOURS"},
		{name: "filament", err: &wallet.BucketError{Available: decimal.Zero, Required: decimal.NewFromInt(5)}, wantStatus: http.StatusPaymentRequired, wantCode: "INSUFFICIENT_FILAMENT"},
		{name: "no wallet", err: wallet.ErrWalletNotFound, wantStatus: http.StatusPaymentRequired, wantCode: "WALLET_NOT_FOUND"},
		{name: "not quoted", err: printjob.ErrNotQuoted, wantStatus: http.StatusConflict, wantCode: "NOT_QUOTED"},
		{name: "not approved", err: printjob.ErrNotApproved, wantStatus: http.StatusConflict, wantCode: "NOT_APPROVED"},
		{name: "not yours", err: printjob.ErrNotYourJob, wantStatus: http.StatusForbidden, wantCode: "NOT_YOUR_JOB"},
		{name: "missing", err: printjob.ErrJobNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "conflict", err: txretry.ErrConflict, wantStatus: http.StatusServiceUnavailable, wantCode: "TRANSIENT_CONFLICT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.charger.err = tc.err
			rr, env := serve(t, customerRouter(h), http.MethodPost, "/jobs/"+uuid.NewString()+"/approve", "", uuid.New(), jwt.RoleCustomer)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d body=%s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if env.Error == nil || env.Error.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %+v", tc.wantCode, env.Error)
			}
		})
	}
}

func TestHandlerCancel_StaffOnlyAfterApproval(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := uuid.New()
	job, _ := h.svc.CreateJob(ctx, user, validInput())
	if _, err := h.svc.SetQuote(ctx, job.ID, uuid.New(), quote(1, 10)); err != nil {
		t.Fatalf("quote: %v", err)
	}
	err := h.store.JobStore().WithinTx(ctx, func(ctx context.Context, jobs printjob.Repository) error {
		j, err := jobs.GetForUpdate(ctx, job.ID)
		if err != nil {
			return err
		}
		if err := j.Decide(user, printjob.DecisionApproved, "", j.UpdatedAt); err != nil {
			return err
		}
		if err := j.Lock(printjob.Charge{Hours: j.Quote.Hours, Grams: j.Quote.Grams, Material: j.MaterialClass, Color: j.ColorClass}, j.UpdatedAt); err != nil {
			return err
		}
		return jobs.Update(ctx, j)
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	rr, env := serve(t, customerRouter(h), http.MethodPost, "/jobs/"+job.ID.String()+"/cancel", `{"reason":"no"}`, user, jwt.RoleCustomer)
	if rr.Code != http.StatusForbidden || env.Error.Code != "STAFF_ONLY" {
		t.Fatalf("expected 403 STAFF_ONLY, got %d %+v", rr.Code, env.Error)
	}

	rr, _ = serve(t, adminRouter(h), http.MethodPost, "/admin/jobs/"+job.ID.String()+"/cancel", `{"reason":"machine down"}`, uuid.New(), jwt.RoleStaff)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandlerListAll_StatusFilter(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := h.svc.CreateJob(ctx, uuid.New(), validInput()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	rr, env := serve(t, adminRouter(h), http.MethodGet, "/admin/jobs?status=submitted,quoted&limit=2", "", uuid.New(), jwt.RoleStaff)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var list printjob.ListResponse
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list.Jobs))
	}

	rr, _ = serve(t, adminRouter(h), http.MethodGet, "/admin/jobs?status=paused", "", uuid.New(), jwt.RoleStaff)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}
