package topup_test

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

	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/middleware"
	"github.com/printhub/printhub-api/internal/pkg/jwt"
)

func do(router http.Handler, method, path, body string, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(middleware.WithIdentity(req.Context(), userID, role))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func router(svc *topup.Service) http.Handler {
	h := topup.NewHandler(svc)
	r := chi.NewRouter()
	r.Mount("/topups", h.Routes(func(next http.Handler) http.Handler { return next }))
	r.Mount("/admin/topups", h.AdminRoutes())
	return r
}

func TestHandlerCreateTopUp(t *testing.T) {
	svc, _, _ := newService()
	user := uuid.New()

	rr := do(router(svc), http.MethodPost, "/topups", `{"hours":2.5,"items":[{"material":"PLA","color":"Black","grams":750}],"amount_minor":90000}`, user, jwt.RoleCustomer)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Data topup.TopUp `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Data.Hours.Equal(decimal.RequireFromString("2.5")) || payload.Data.UserID != user {
		t.Fatalf("unexpected top-up: %+v", payload.Data)
	}
}

func TestHandlerCreateTopUp_Validation(t *testing.T) {
	svc, _, _ := newService()

	rr := do(router(svc), http.MethodPost, "/topups", `{"items":[{"material":"","color":"Black","grams":0}]}`, uuid.New(), jwt.RoleCustomer)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	var payload struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"items[0].material", "items[0].grams"} {
		if _, ok := payload.Error.Details[key]; !ok {
			t.Errorf("missing detail %q in %v", key, payload.Error.Details)
		}
	}

	rr = do(router(svc), http.MethodPost, "/topups", `{}`, uuid.New(), jwt.RoleCustomer)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty top-up, got %d", rr.Code)
	}
}

func TestHandlerGetTopUp_Forbidden(t *testing.T) {
	svc, _, _ := newService()
	created, _ := svc.CreateTopUp(context.Background(), uuid.New(), topup.CreateInput{Hours: decimal.NewFromInt(1)})

	rr := do(router(svc), http.MethodGet, "/topups/"+created.ID.String(), "", uuid.New(), jwt.RoleCustomer)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	rr = do(router(svc), http.MethodGet, "/admin/topups/"+created.ID.String(), "", uuid.New(), jwt.RoleStaff)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff, got %d", rr.Code)
	}
	rr = do(router(svc), http.MethodGet, "/topups/not-a-uuid", "", uuid.New(), jwt.RoleCustomer)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandlerRejectTopUp(t *testing.T) {
	svc, _, _ := newService()
	created, _ := svc.CreateTopUp(context.Background(), uuid.New(), topup.CreateInput{Hours: decimal.NewFromInt(1)})

	rr := do(router(svc), http.MethodPost, "/admin/topups/"+created.ID.String()+"/reject", "", uuid.New(), jwt.RoleStaff)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(router(svc), http.MethodPost, "/admin/topups/"+uuid.NewString()+"/reject", `{"note":"x"}`, uuid.New(), jwt.RoleStaff)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
