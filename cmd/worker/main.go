package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nusacamp/backend-glamping/internal/common"
	"github.com/nusacamp/backend-glamping/internal/config"
	"github.com/nusacamp/backend-glamping/internal/db"
	"github.com/nusacamp/backend-glamping/internal/notify"
	"github.com/nusacamp/backend-glamping/internal/obs"
	"github.com/nusacamp/backend-glamping/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "nusacamp"), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "glamping-worker", obs.PGXTracer{})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	// outbound SMTP is deployment-specific, wired at build time
	notifier := &notify.Notifier{
		DB:      pool,
		Email:   common.NopEmailSender{},
		From:    cfg.NotifyEmailFrom,
		Enabled: cfg.NotifyEmailEnabled,
		Log:     logger,
	}

	srv, err := queue.NewServer(queue.ServerConfig{
		RedisURL:    cfg.RedisURL,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task server")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		srv.Shutdown()
	}()

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Run(notifier.NewMux()); err != nil {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
