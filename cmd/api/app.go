package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/printhub/printhub-api/internal/domain/printjob"
	"github.com/printhub/printhub-api/internal/domain/topup"
	"github.com/printhub/printhub-api/internal/domain/transfer"
	"github.com/printhub/printhub-api/internal/domain/upload"
	"github.com/printhub/printhub-api/internal/domain/wallet"
	"github.com/printhub/printhub-api/internal/middleware"
	"github.com/printhub/printhub-api/internal/pkg/events"
	"github.com/printhub/printhub-api/internal/pkg/jwt"
	pkgresponse "github.com/printhub/printhub-api/internal/pkg/response"
	"github.com/printhub/printhub-api/internal/pkg/storage"
	"github.com/printhub/printhub-api/internal/pkg/txretry"
)

// backend is implemented by both the postgres and the in-memory store.
type backend interface {
	transfer.Store
	JobStore() printjob.Store
	TopUpStore() topup.Store
	WalletStore() wallet.Store
}

type deps struct {
	store          backend
	publisher      events.Publisher
	retry          txretry.Policy
	objects        storage.Storage
	jwt            *jwt.Service
	allowedOrigins []string
	rateLimit      func(http.Handler) http.Handler
}

type services struct {
	jobs    *printjob.Service
	topups  *topup.Service
	wallets *wallet.Service
	uploads *upload.Service
}

func newServices(d deps) services {
	protocol := transfer.New(d.store)
	protocol.SetRetryPolicy(d.retry)

	jobs := printjob.NewService(d.store.JobStore())
	jobs.SetCharger(protocol)
	jobs.SetPublisher(d.publisher)
	jobs.SetRetryPolicy(d.retry)

	topups := topup.NewService(d.store.TopUpStore())
	topups.SetCrediter(protocol)
	topups.SetPublisher(d.publisher)
	topups.SetRetryPolicy(d.retry)

	return services{
		jobs:    jobs,
		topups:  topups,
		wallets: wallet.NewService(d.store.WalletStore()),
		uploads: upload.NewService(d.objects),
	}
}

func newRouter(d deps) http.Handler {
	svc := newServices(d)
	limit := d.rateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	jobHandler := printjob.NewHandler(svc.jobs)
	topupHandler := topup.NewHandler(svc.topups)
	walletHandler := wallet.NewHandler(svc.wallets)
	uploadHandler := upload.NewHandler(svc.uploads)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(d.allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.jwt))

		r.Mount("/jobs", jobHandler.Routes(limit))
		r.Mount("/topups", topupHandler.Routes(limit))
		r.Mount("/wallet", walletHandler.Routes())
		r.Mount("/uploads", uploadHandler.Routes(limit))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaff())
			r.Mount("/jobs", jobHandler.AdminRoutes())
			r.Mount("/topups", topupHandler.AdminRoutes())
			r.Mount("/wallets", walletHandler.AdminRoutes())
		})
	})

	return r
}
