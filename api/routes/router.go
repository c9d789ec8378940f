package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/movilpay/vendorpay-backend/api/controllers"
	"github.com/movilpay/vendorpay-backend/api/middleware"
	"github.com/movilpay/vendorpay-backend/pkg/config"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/redis"
)

// Deps carries everything the router mounts. Controllers must be non-nil;
// IdempotencyStore and Gatherer may be nil in tests.
type Deps struct {
	Config           config.Config
	Logger           *logger.Logger
	IdempotencyStore redis.IdempotencyStore
	Gatherer         prometheus.Gatherer

	Health          *controllers.HealthController
	Sales           *controllers.SalesController
	PaymentRequests *controllers.PaymentRequestsController
	PaymentBatches  *controllers.PaymentBatchesController
	Commissions     *controllers.CommissionsController
	Notifications   *controllers.NotificationsController
}

// New assembles the HTTP surface: health and metrics stay open, everything
// under /api/v1 requires a bearer token, and staff-only operations sit
// behind role checks.
func New(deps Deps) http.Handler {
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS(nil))

	r.Get("/health/live", deps.Health.Live)
	r.Get("/health/ready", deps.Health.Ready)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	auth := middleware.Auth(deps.Config.JWT, logg)
	idem := middleware.Idempotency(deps.IdempotencyStore, logg)
	staff := middleware.RequireRole(logg, enums.MemberRoleValidator, enums.MemberRoleAdmin)
	vendor := middleware.RequireVendor(logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)

		r.Route("/sales", func(r chi.Router) {
			r.With(vendor, idem).Post("/", deps.Sales.Register)
			r.Get("/", deps.Sales.List)
			r.Get("/{saleID}", deps.Sales.Get)
			r.With(staff, idem).Post("/{saleID}/validate", deps.Sales.Validate)
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", deps.Commissions.List)
			r.Get("/summaries", deps.Commissions.Summaries)
			r.With(staff).Post("/recalculate", deps.Commissions.Recalculate)
		})

		r.Route("/payment-requests", func(r chi.Router) {
			r.With(vendor, idem).Post("/", deps.PaymentRequests.Create)
			r.Get("/", deps.PaymentRequests.List)
			r.Get("/{requestID}", deps.PaymentRequests.Get)
			r.With(staff, idem).Post("/{requestID}/approve", deps.PaymentRequests.Approve)
			r.With(staff, idem).Post("/{requestID}/reject", deps.PaymentRequests.Reject)
		})

		r.Route("/payment-batches", func(r chi.Router) {
			r.Use(staff)
			r.With(idem).Post("/", deps.PaymentBatches.Build)
			r.Get("/", deps.PaymentBatches.List)
			r.Get("/{batchID}", deps.PaymentBatches.Get)
			r.Get("/{batchID}/transfer-file", deps.PaymentBatches.TransferFile)
			r.With(idem).Post("/{batchID}/complete", deps.PaymentBatches.Complete)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", deps.Notifications.List)
			r.With(vendor).Post("/{notificationID}/read", deps.Notifications.MarkRead)
			r.With(vendor).Post("/read-all", deps.Notifications.MarkAllRead)
		})
	})

	return r
}
