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

	"portfolio-hub/internal/api"
	"portfolio-hub/internal/broadcast"
	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/config"
	"portfolio-hub/internal/remote"
	"portfolio-hub/internal/remote/memory"
	"portfolio-hub/internal/remote/postgres"
	"portfolio-hub/internal/remote/supabase"
	"portfolio-hub/internal/scheduler"
	"portfolio-hub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func newLogger(cfg *config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// openCache opens the configured cache backend
func openCache(cfg *config.CacheConfig) (cache.Backend, error) {
	switch cfg.Backend {
	case "redis":
		return cache.NewRedisBackend(cfg.RedisURL, cfg.Prefix)
	case "memory":
		return cache.NewMemoryBackend(), nil
	default:
		return cache.NewSQLiteBackend(cfg.Path)
	}
}

// openGateway connects to the configured remote store
func openGateway(cfg *config.Config, log logrus.FieldLogger) (remote.Gateway, error) {
	switch cfg.Remote.Mode {
	case "postgres":
		return postgres.Open(cfg.Remote.DatabaseURL, log)
	case "memory":
		log.Warn("Using the in-memory remote store; data is lost on exit")
		return memory.New(), nil
	default:
		return supabase.New(supabase.Config{
			URL:     cfg.Remote.URL,
			APIKey:  cfg.Remote.APIKey,
			Timeout: cfg.RemoteTimeout(),
			Logger:  log,
		})
	}
}

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := newLogger(&cfg.Logging)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	// Local cache
	backend, err := openCache(&cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer backend.Close()
	log.WithField("backend", cfg.Cache.Backend).Info("Cache initialized successfully")

	// Remote store
	gw, err := openGateway(cfg, log)
	if err != nil {
		return fmt.Errorf("open remote store: %w", err)
	}
	defer gw.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize services
	svc := services.NewDataService(services.Options{
		Gateway:       gw,
		Cache:         cache.New(backend, broadcast.NewBus(), log),
		Logger:        log,
		Metrics:       services.NewMetrics(registry),
		Notifier:      services.NewNotifyService(&cfg.Notifications, log),
		Tokens:        services.NewTokenService(cfg.Auth.JWTSecret, cfg.TokenTTL()),
		AdminEmail:    cfg.Notifications.AdminEmail,
		ActivityLimit: cfg.Sync.ActivityLimit,
		AlertDays:     cfg.Notifications.AlertDays,
		ReplayRate:    cfg.Sync.ReplayRate,
		ReplayBurst:   cfg.Sync.ReplayBurst,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize default admin account
	if _, err := svc.EnsureAdmin(ctx, cfg.Notifications.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.WithError(err).Warn("Failed to create default admin account")
	}

	// Initialize scheduler
	sched := scheduler.NewScheduler(svc, log)
	if err := sched.Start(cfg.Sync.ReconcileInterval, cfg.Sync.DomainCheckInterval); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// Setup Gin
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), api.CORS(cfg.Server.CORSOrigin))
	api.SetupRoutes(r, api.NewHandler(svc, log, registry))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
