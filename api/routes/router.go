package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaelquintero/sitepay-backend/api/controllers"
	auditcontrollers "github.com/rafaelquintero/sitepay-backend/api/controllers/auditlog"
	eligibilitycontrollers "github.com/rafaelquintero/sitepay-backend/api/controllers/eligibility"
	evidencecontrollers "github.com/rafaelquintero/sitepay-backend/api/controllers/evidence"
	milestonecontrollers "github.com/rafaelquintero/sitepay-backend/api/controllers/milestones"
	"github.com/rafaelquintero/sitepay-backend/api/middleware"
	"github.com/rafaelquintero/sitepay-backend/internal/audit"
	"github.com/rafaelquintero/sitepay-backend/internal/eligibility"
	"github.com/rafaelquintero/sitepay-backend/internal/evidence"
	"github.com/rafaelquintero/sitepay-backend/internal/milestones"
	"github.com/rafaelquintero/sitepay-backend/pkg/config"
	"github.com/rafaelquintero/sitepay-backend/pkg/db"
	"github.com/rafaelquintero/sitepay-backend/pkg/enums"
	"github.com/rafaelquintero/sitepay-backend/pkg/logger"
	pkgredis "github.com/rafaelquintero/sitepay-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	registry *prometheus.Registry,
	milestoneService milestones.Service,
	evidenceService evidence.Service,
	eligibilityService eligibility.Service,
	auditService audit.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Route("/milestones", func(r chi.Router) {
				r.Get("/", milestonecontrollers.List(milestoneService, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleOwner, enums.ActorRolePMC)).
					Post("/", milestonecontrollers.Create(milestoneService, logg))
			})
			r.Route("/audit", func(r chi.Router) {
				r.Get("/", auditcontrollers.List(auditService, logg))
				r.Get("/export", auditcontrollers.Export(auditService, logg))
			})
		})

		r.Route("/milestones/{milestoneID}", func(r chi.Router) {
			r.Get("/", milestonecontrollers.Get(milestoneService, logg))
			r.Post("/transition", milestonecontrollers.Transition(milestoneService, logg))
			r.Get("/transitions", milestonecontrollers.History(milestoneService, logg))
			r.Get("/valid-next-states", milestonecontrollers.ValidNext(milestoneService, logg))

			r.Route("/evidence", func(r chi.Router) {
				r.Get("/", evidencecontrollers.List(evidenceService, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleVendor)).
					Post("/", evidencecontrollers.Submit(evidenceService, logg))
			})

			r.Route("/eligibility", func(r chi.Router) {
				r.Get("/", eligibilitycontrollers.Get(eligibilityService, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleOwner, enums.ActorRolePMC)).
					Post("/block", eligibilitycontrollers.Block(eligibilityService, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleOwner)).
					Post("/unblock", eligibilitycontrollers.Unblock(eligibilityService, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleOwner, enums.ActorRolePMC)).
					Post("/mark-paid", eligibilitycontrollers.MarkPaid(eligibilityService, logg))
			})
		})

		r.Route("/evidence/{evidenceID}", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.ActorRoleOwner, enums.ActorRolePMC)).
				Post("/review", evidencecontrollers.Review(evidenceService, logg))
		})
	})

	return r
}
