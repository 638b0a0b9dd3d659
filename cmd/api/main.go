package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasvieira/condoplex-backend/api/routes"
	"github.com/lucasvieira/condoplex-backend/internal/deliveries"
	"github.com/lucasvieira/condoplex-backend/internal/memberships"
	"github.com/lucasvieira/condoplex-backend/internal/notifications"
	"github.com/lucasvieira/condoplex-backend/internal/tenancy"
	"github.com/lucasvieira/condoplex-backend/pkg/config"
	"github.com/lucasvieira/condoplex-backend/pkg/db"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
	"github.com/lucasvieira/condoplex-backend/pkg/mail"
	"github.com/lucasvieira/condoplex-backend/pkg/metrics"
	"github.com/lucasvieira/condoplex-backend/pkg/migrate"
	"github.com/lucasvieira/condoplex-backend/pkg/push"
	"github.com/lucasvieira/condoplex-backend/pkg/redis"
	"github.com/lucasvieira/condoplex-backend/pkg/storage/gcs"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// Photo storage is best-effort end to end: a missing bucket only disables
	// intake photos, never the API.
	var photoStore deliveries.PhotoStore
	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Warn(context.Background(), "photo storage unavailable, intake photos disabled")
	} else {
		photoStore = gcsClient
	}

	mailClient, err := mail.NewClient(cfg.Sendgrid)
	if err != nil {
		logg.Error(context.Background(), "failed to create email client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	resolver, err := tenancy.NewResolver(tenancy.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create tenancy resolver", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())

	deliveriesService, err := deliveries.NewService(
		deliveries.NewRepository(dbClient.DB()),
		dbClient,
		notificationsRepo,
		photoStore,
		cfg.JWT,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	membershipsService, err := memberships.NewService(memberships.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create memberships service", err)
		os.Exit(1)
	}

	dispatcher, err := notifications.NewDispatcher(
		notificationsRepo,
		push.NewClient(cfg.Expo),
		mailClient,
		dispatchMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
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
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DBPinger:    dbClient,
			RedisPinger: redisClient,
			RedisClient: redisClient,
			Registry:    registry,
			Resolver:    resolver,
			Deliveries:  deliveriesService,
			Memberships: membershipsService,
			Dispatcher:  dispatcher,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
