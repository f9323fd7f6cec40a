package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jangbu-erp/jangbu-erp/internal/closing"
	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
	"github.com/jangbu-erp/jangbu-erp/internal/observability"
	"github.com/jangbu-erp/jangbu-erp/internal/posting"
	"github.com/jangbu-erp/jangbu-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	PostingHandler *posting.Handler
	LedgerHandler  *ledger.Handler
	ClosingHandler *closing.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.PostingHandler != nil {
			params.PostingHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			r.Route("/ledgers", func(r chi.Router) {
				params.LedgerHandler.MountRoutes(r)
			})
		}
		if params.ClosingHandler != nil {
			r.Route("/closings", func(r chi.Router) {
				params.ClosingHandler.MountRoutes(r)
			})
		}
		if params.JobHandler != nil {
			params.JobHandler.MountRoutes(r)
		}
	})

	return r
}
