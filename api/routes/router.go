package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucasvieira/condoplex-backend/api/controllers"
	"github.com/lucasvieira/condoplex-backend/api/middleware"
	"github.com/lucasvieira/condoplex-backend/internal/deliveries"
	"github.com/lucasvieira/condoplex-backend/internal/memberships"
	"github.com/lucasvieira/condoplex-backend/internal/notifications"
	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
	"github.com/lucasvieira/condoplex-backend/pkg/config"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
	"github.com/lucasvieira/condoplex-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DBPinger    controllers.Pinger
	RedisPinger controllers.Pinger
	RedisClient *redis.Client
	Registry    *prometheus.Registry

	Resolver    tenancy.Resolver
	Deliveries  deliveries.Service
	Memberships memberships.Service
	Dispatcher  notifications.Dispatcher
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DBPinger, p.RedisPinger))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/internal/v1/dispatch", func(r chi.Router) {
		r.Post("/{channel}", controllers.DispatchTrigger(p.Dispatcher, p.RedisClient, cfg.Dispatch, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/condos/{condoId}", func(r chi.Router) {
			r.Use(middleware.CondoContext(p.Resolver, logg))

			r.Route("/deliveries", func(r chi.Router) {
				r.Get("/", controllers.DeliveryList(p.Deliveries, logg))
				r.Post("/", controllers.DeliveryIntake(p.Deliveries, logg))
				r.Post("/qr-pickup", controllers.DeliveryQrPickup(p.Deliveries, logg))
				r.Post("/{deliveryId}/pickup", controllers.DeliveryManualPickup(p.Deliveries, logg))
				r.Post("/{deliveryId}/cancel", controllers.DeliveryCancel(p.Deliveries, logg))
				r.Patch("/{deliveryId}", controllers.DeliveryEdit(p.Deliveries, logg))
				r.Post("/{deliveryId}/qr-code", controllers.DeliveryMintQRCode(p.Deliveries, logg))
			})

			r.Route("/memberships", func(r chi.Router) {
				r.Get("/", controllers.MembershipList(p.Memberships, logg))
				r.Post("/", controllers.MembershipLink(p.Memberships, logg))
				r.Delete("/{userId}", controllers.MembershipUnlink(p.Memberships, logg))
			})
		})
	})

	return r
}
