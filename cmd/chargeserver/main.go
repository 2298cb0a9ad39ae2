package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balance-guard/internal/config"
	"balance-guard/internal/handler"
	"balance-guard/internal/metrics"
	"balance-guard/internal/repository"
	"balance-guard/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = time.RFC3339Nano

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// storage
	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer store.Close()

	ttl := cfg.BalanceTTL
	if ttl == 0 && cfg.StoreBackend == config.BackendMemcached {
		ttl = repository.MemcacheMaxExpiration
	}

	// services
	charger, err := service.New(service.Strategy(cfg.Strategy), store, cfg.BalanceKey, service.Options{
		CASMaxAttempts:   cfg.CASMaxAttempts,
		WatchMaxAttempts: cfg.WatchMaxAttempts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build charger")
	}
	breaker := service.NewCircuitBreaker(cfg.BreakerFailures, 1, cfg.BreakerCooldown)
	resetter := service.NewResetter(store, cfg.BalanceKey, cfg.DefaultBalance, ttl)

	// metrics
	metricsRegistry := metrics.NewRegistry()

	// handlers
	h := handler.NewRouter(
		handler.NewChargeHandler(service.WithCircuitBreaker(charger, breaker), service.DefaultChargeAmount(cfg.DefaultBalance), metricsRegistry),
		handler.NewResetHandler(resetter, metricsRegistry),
		&handler.HealthHandler{Store: store, Breaker: breaker, Backend: cfg.StoreBackend, Strategy: cfg.Strategy},
		metricsRegistry,
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		log.Info().
			Str("backend", cfg.StoreBackend).
			Str("strategy", cfg.Strategy).
			Str("key", cfg.BalanceKey).
			Msgf("listening %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.GracefulShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server exited")
}

func openStore(cfg config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return repository.NewRedisStore(cfg.StoreAddr, cfg.StoreTimeout)
	case config.BackendMemcached:
		return repository.NewMemcacheStore(cfg.StoreAddr, cfg.StoreTimeout)
	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
		defer cancel()
		return repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return repository.NewMemoryStore(), nil
	}
}
