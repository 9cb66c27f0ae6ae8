package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/harborline-erp/harborline/internal/freight"
	"github.com/harborline-erp/harborline/internal/materials"
	"github.com/harborline-erp/harborline/internal/orders"
	"github.com/harborline-erp/harborline/internal/payments"
	"github.com/harborline-erp/harborline/internal/summary"
	"github.com/harborline-erp/harborline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	OrdersHandler    *orders.Handler
	FreightHandler   *freight.Handler
	PaymentsHandler  *payments.Handler
	MaterialsHandler *materials.Handler
	SummaryHandler   *summary.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Harborline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		if params.OrdersHandler != nil {
			api.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		if params.FreightHandler != nil {
			api.Route("/packing-lists", params.FreightHandler.MountRoutes)
		}
		if params.PaymentsHandler != nil {
			api.Route("/payment-requests", params.PaymentsHandler.MountRoutes)
		}
		if params.MaterialsHandler != nil {
			api.Route("/materials", params.MaterialsHandler.MountRoutes)
		}
		if params.SummaryHandler != nil {
			api.Route("/summaries", params.SummaryHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
