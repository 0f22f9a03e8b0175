package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/powderchaser/backend/config"
	httpDelivery "github.com/powderchaser/backend/internal/delivery/http"
	"github.com/powderchaser/backend/internal/domain"
	"github.com/powderchaser/backend/internal/infrastructure/cache"
	"github.com/powderchaser/backend/internal/infrastructure/metrics"
	"github.com/powderchaser/backend/internal/infrastructure/resortapi"
	"github.com/powderchaser/backend/internal/pkg/logger"
	"github.com/powderchaser/backend/internal/scheduler"
	"github.com/powderchaser/backend/internal/usecase"
)

const version = "1.0.0"

// cacheBackend is a CacheStore backed by an external resource.
type cacheBackend interface {
	domain.CacheStore
	httpDelivery.HealthChecker
	Close() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Server.Environment)

	log.Infof("Starting PowderChaser Backend v%s", version)
	log.Infof("Environment: %s", cfg.Server.Environment)
	log.Infof("Port: %s", cfg.Server.Port)
	log.Infof("Cache Type: %s", cfg.Cache.Type)

	m := metrics.New()

	// Initialize infrastructure dependencies
	store, health, closeStore, err := openStore(cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to open %s cache: %v", cfg.Cache.Type, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Errorf("Failed to close cache: %v", err)
		}
	}()

	apiClient := resortapi.NewClient(resortapi.Config{
		BaseURL:           cfg.API.BaseURL,
		APIKey:            cfg.API.APIKey,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		MaxRetries:        cfg.API.MaxRetries,
		InitialBackoff:    cfg.API.InitialBackoff,
		MaxBackoff:        cfg.API.MaxBackoff,
	}, log, m)

	if cfg.API.APIKey != "" {
		log.Infof("Resort API configured: %s (key: set)", cfg.API.BaseURL)
	} else {
		log.Infof("Resort API configured: %s (no API key)", cfg.API.BaseURL)
	}

	// Initialize usecase layer
	service := usecase.NewResortService(
		apiClient,
		store,
		domain.StaticFavorites(cfg.Scheduler.FavoriteResortIDs),
		usecase.ResortServiceConfig{
			Foreground:      usecase.TimeoutProfile{Name: "foreground", PerRequest: cfg.Sync.ForegroundTimeout},
			Background:      usecase.TimeoutProfile{Name: "background", PerRequest: cfg.Sync.BackgroundTimeout},
			BackgroundTotal: cfg.Sync.BackgroundTotalTimeout,
		},
		log,
		m,
	)

	log.Infof("Sync: foreground=%v, background=%v, background total=%v",
		cfg.Sync.ForegroundTimeout,
		cfg.Sync.BackgroundTimeout,
		cfg.Sync.BackgroundTotalTimeout)

	if cfg.Scheduler.Enabled {
		refreshInterval := cfg.Scheduler.RefreshInterval
		if len(cfg.Scheduler.FavoriteResortIDs) == 0 {
			refreshInterval = 0
		}
		jobs := scheduler.New(scheduler.Config{
			PurgeInterval:   cfg.Scheduler.PurgeInterval,
			Retention:       cfg.Scheduler.Retention,
			RefreshInterval: refreshInterval,
		}, service, log)
		if err := jobs.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer jobs.Stop()
	}

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(service, health, log)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, m, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	log.Info("Server exited")
}

// openStore builds the configured CacheStore. The memory store needs no
// health check or close.
func openStore(cfg config.CacheConfig) (domain.CacheStore, httpDelivery.HealthChecker, func() error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		backend cacheBackend
		err     error
	)
	switch cfg.Type {
	case "redis":
		backend, err = cache.NewRedisStore(ctx, cfg.RedisURL)
	case "sqlite":
		backend, err = cache.NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return cache.NewMemoryStore(), nil, func() error { return nil }, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return backend, backend, backend.Close, nil
}
