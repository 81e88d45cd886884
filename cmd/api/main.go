package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rafaelquintero/sitepay-backend/api/routes"
	"github.com/rafaelquintero/sitepay-backend/internal/audit"
	"github.com/rafaelquintero/sitepay-backend/internal/eligibility"
	"github.com/rafaelquintero/sitepay-backend/internal/evidence"
	"github.com/rafaelquintero/sitepay-backend/internal/milestones"
	"github.com/rafaelquintero/sitepay-backend/pkg/config"
	"github.com/rafaelquintero/sitepay-backend/pkg/db"
	"github.com/rafaelquintero/sitepay-backend/pkg/logger"
	"github.com/rafaelquintero/sitepay-backend/pkg/metrics"
	"github.com/rafaelquintero/sitepay-backend/pkg/migrate"
	pkgredis "github.com/rafaelquintero/sitepay-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	eligibilityMetrics := metrics.NewEligibilityMetrics(registry)

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	eligibilityService, err := eligibility.NewService(
		eligibility.NewRepository(dbClient.DB()),
		dbClient,
		auditService,
		eligibilityMetrics,
		cfg.Eligibility,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create eligibility service", err)
		os.Exit(1)
	}

	evidenceService, err := evidence.NewService(
		evidence.NewRepository(dbClient.DB()),
		dbClient,
		auditService,
		eligibilityService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create evidence service", err)
		os.Exit(1)
	}

	milestoneService, err := milestones.NewService(
		milestones.NewRepository(dbClient.DB()),
		dbClient,
		auditService,
		eligibilityService,
		evidenceService,
		cfg.Eligibility.RecalcMaxAttempts,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create milestone service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			milestoneService,
			evidenceService,
			eligibilityService,
			auditService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
