package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cairnhq/cairn/pkg/api"
	"github.com/cairnhq/cairn/pkg/audit"
	"github.com/cairnhq/cairn/pkg/config"
	"github.com/cairnhq/cairn/pkg/identity"
	"github.com/cairnhq/cairn/pkg/observability"
	"github.com/cairnhq/cairn/pkg/storage"
	"github.com/cairnhq/cairn/pkg/tracker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("port", cfg.Server.Port).Info("starting cairn")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	if cfg.Observability.OTelEnabled {
		providers, err := observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("failed to initialize OpenTelemetry, continuing without tracing")
		} else {
			defer providers.Shutdown(context.Background())
		}
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := identity.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("identity migrations failed")
		os.Exit(1)
	}
	if err := tracker.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("tracker migrations failed")
		os.Exit(1)
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("failed to initialize audit logger")
		os.Exit(1)
	}
	defer auditLogger.Close()

	if metrics != nil {
		storage.StartPoolStatsRoutine(ctx, db, metrics, 0)
	}

	bypass := identity.NewPlatformBypass(db)
	directory, err := identity.NewSQLDirectory(db, cfg.Identity.DirectoryCacheSize)
	if err != nil {
		logger.WithError(err).Error("failed to initialize user directory")
		os.Exit(1)
	}

	guards := tracker.NewGuards(db, bypass, logger, metrics)
	members := tracker.NewMemberService(db, guards, directory)

	server := api.NewServer(db, guards, members, logger, metrics)

	// Every request carries the audit logger so denials land in the trail.
	handler := http.Handler(server)
	handler = withAuditLogger(handler, auditLogger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("shutdown failed")
		}
	}
}

func withAuditLogger(next http.Handler, auditLogger audit.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(audit.WithLogger(r.Context(), auditLogger)))
	})
}
