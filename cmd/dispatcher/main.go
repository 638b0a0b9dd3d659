package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasvieira/condoplex-backend/internal/notifications"
	"github.com/lucasvieira/condoplex-backend/pkg/config"
	"github.com/lucasvieira/condoplex-backend/pkg/db"
	"github.com/lucasvieira/condoplex-backend/pkg/enums"
	"github.com/lucasvieira/condoplex-backend/pkg/logger"
	"github.com/lucasvieira/condoplex-backend/pkg/mail"
	"github.com/lucasvieira/condoplex-backend/pkg/metrics"
	"github.com/lucasvieira/condoplex-backend/pkg/migrate"
	"github.com/lucasvieira/condoplex-backend/pkg/push"
	"github.com/lucasvieira/condoplex-backend/pkg/redis"
)

// The dispatcher binary drains both notification channels once and exits.
// Schedulers run it on an interval; the redis lease keeps overlapping runs
// from selecting the same rows.
func main() {
	logg := logger.New(logger.Options{ServiceName: "dispatcher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "dispatcher"

	logg = logger.New(logger.Options{
		ServiceName: "dispatcher",
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

	mailClient, err := mail.NewClient(cfg.Sendgrid)
	if err != nil {
		logg.Error(context.Background(), "failed to create email client", err)
		os.Exit(1)
	}

	dispatcher, err := notifications.NewDispatcher(
		notifications.NewRepository(dbClient.DB()),
		push.NewClient(cfg.Expo),
		mailClient,
		metrics.NewDispatchMetrics(prometheus.NewRegistry()),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "dispatcher",
	})
	logg.Info(ctx, "starting dispatch cycle")

	channels := []enums.NotificationChannel{
		enums.NotificationChannelPush,
		enums.NotificationChannelEmail,
	}
	failed := false
	for _, channel := range channels {
		if err := drainChannel(ctx, logg, cfg, redisClient, dispatcher, channel); err != nil {
			failed = true
		}
	}

	if failed {
		os.Exit(1)
	}
	logg.Info(ctx, "dispatch cycle complete")
}

func drainChannel(
	ctx context.Context,
	logg *logger.Logger,
	cfg *config.Config,
	redisClient *redis.Client,
	dispatcher notifications.Dispatcher,
	channel enums.NotificationChannel,
) error {
	ctx = logg.WithField(ctx, "channel", string(channel))

	lease, held, err := redisClient.AcquireLease(ctx, "dispatch:"+string(channel), cfg.Dispatch.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to acquire dispatch lease", err)
		return err
	}
	if !held {
		logg.Info(ctx, "dispatch lease held elsewhere, skipping channel")
		return nil
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			logg.Warn(ctx, "failed to release dispatch lease")
		}
	}()

	result, err := dispatcher.Dispatch(ctx, channel, cfg.Dispatch.BatchLimit)
	if err != nil {
		logg.Error(ctx, "dispatch cycle failed", err)
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"selected": result.Selected,
		"sent":     result.Sent,
		"errored":  result.Errored,
	})
	logg.Info(ctx, "channel drained")
	return nil
}
