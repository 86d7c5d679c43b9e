package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carrotwars/carrotwars/internal/api"
	"github.com/carrotwars/carrotwars/internal/cache"
	"github.com/carrotwars/carrotwars/internal/config"
	"github.com/carrotwars/carrotwars/internal/messaging"
	"github.com/carrotwars/carrotwars/internal/repository"
	"github.com/carrotwars/carrotwars/internal/service/accounts"
	"github.com/carrotwars/carrotwars/internal/service/quests"
	"github.com/carrotwars/carrotwars/internal/service/relations"
	"github.com/carrotwars/carrotwars/internal/service/rewards"
	"github.com/carrotwars/carrotwars/internal/service/scheduler"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.Get()

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	switch cfg.Database.Postgres.MigrationsMode {
	case "auto":
		err = db.AutoMigrate()
	default:
		err = db.Migrate(log)
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Redis is optional; without it the sweep run guard is simply off.
	var runGuard scheduler.RunGuard
	redisCache, err := cache.New(&cfg.Database.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, sweep run guard disabled")
	} else {
		defer redisCache.Close()
		runGuard = redisCache
	}

	userRepo := repository.NewUserRepository(db)
	relationRepo := repository.NewRelationRepository(db)
	questRepo := repository.NewQuestRepository(db)
	rewardRepo := repository.NewRewardRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	webhook := messaging.NewWebhookClient(&cfg.Messaging, log)
	notifier := messaging.NewNotifier(messageRepo, webhook, log)

	accountService := accounts.NewService(userRepo, &cfg.Auth, log)
	questService := quests.NewService(questRepo, relationRepo, notifier, log)
	relationService := relations.NewService(relationRepo, questRepo, rewardRepo, notifier, log)
	rewardService := rewards.NewService(rewardRepo, relationRepo, notifier, log, cfg.Uploads.Dir)

	sweepService := scheduler.NewService(&cfg.Scheduler, questService, runGuard, log)
	if err := sweepService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sweepService.Stop()

	server := api.NewServer(cfg, api.Deps{
		Accounts:  accountService,
		Relations: relationService,
		Quests:    questService,
		Rewards:   rewardService,
		Messages:  messageRepo,
		Sweeper:   sweepService,
	}, log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port != 0 {
		go serveMetrics(cfg, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}

// serveMetrics exposes the Prometheus exporter on its own port.
func serveMetrics(cfg *config.Config, log *logger.Logger) {
	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
	log.Info().Str("addr", addr).Str("path", path).Msg("Starting metrics server")

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
