package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auditpg "selsup/crptgateway/internal/adapters/audit/postgres"
	"selsup/crptgateway/internal/adapters/crpt"
	documenthttp "selsup/crptgateway/internal/adapters/http/document"
	healthhttp "selsup/crptgateway/internal/adapters/http/health"
	apphealth "selsup/crptgateway/internal/application/health"
	"selsup/crptgateway/internal/application/retention"
	"selsup/crptgateway/internal/application/submission"
	"selsup/crptgateway/internal/core/audit"
	"selsup/crptgateway/internal/infrastructure/config"
	"selsup/crptgateway/internal/infrastructure/database"
	infrahttp "selsup/crptgateway/internal/infrastructure/http"
	"selsup/crptgateway/internal/infrastructure/http/server"
	"selsup/crptgateway/internal/infrastructure/logger"
	"selsup/crptgateway/internal/infrastructure/metrics"
)

const auditDrainTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checkers []apphealth.Checker
	var auditRepo audit.Repository
	pool := openAuditDatabase(ctx, cfg, log)
	if pool != nil {
		defer pool.Close()
		auditRepo = auditpg.NewRepository(pool, log)
		checkers = append(checkers, apphealth.CheckFunc{Label: "audit_database", Fn: pool.Ping})

		janitor := retention.NewJanitor(auditRepo, log, cfg.Audit.Retention, cfg.Audit.PurgeInterval)
		go janitor.Run(ctx)
	}

	auditEnabled := cfg.Audit.Enabled && auditRepo != nil
	if cfg.Audit.Enabled && !auditEnabled {
		log.Warn("audit trail disabled: database connection required")
	}

	tracedClient := infrahttp.NewTracedClient(&infrahttp.TracedClientConfig{
		Timeout:         cfg.CRPT.APITimeout,
		AuditEnabled:    auditEnabled,
		LogRequestBody:  cfg.Audit.LogRequestBody,
		LogResponseBody: cfg.Audit.LogResponseBody,
		MaxBodySize:     cfg.Audit.MaxBodySize,
		MaxConnsPerHost: cfg.CRPT.MaxConns,
	}, log, auditRepo, "crpt")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client, err := crpt.NewClient(crpt.Config{
		BaseURL:        cfg.CRPT.BaseURL,
		Token:          cfg.CRPT.Token,
		Window:         cfg.CRPT.TimeWindow,
		RequestLimit:   cfg.CRPT.RequestLimit,
		RequestTimeout: cfg.CRPT.APITimeout,
	}, tracedClient, log, crpt.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create crpt client: %w", err)
	}
	log.Info("CRPT client ready",
		"request_limit", cfg.CRPT.RequestLimit,
		"time_window", cfg.CRPT.TimeWindow,
		"min_delay", client.MinDelay(),
		"audit_enabled", auditEnabled,
	)

	submissionService := submission.NewService(client, log, submission.Config{
		Workers:  cfg.Submission.Workers,
		MaxBatch: cfg.Submission.MaxBatch,
		Classify: crpt.Classify,
	})
	documentHandler := documenthttp.NewHandler(submissionService, log)

	healthService := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}, checkers...)
	healthHandler := healthhttp.NewHandler(healthService)

	srv, err := server.New(server.Options{
		Config:         cfg,
		Logger:         log,
		HealthHandler:  http.HandlerFunc(healthHandler.Status),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		SubmitHandler:  http.HandlerFunc(documentHandler.Submit),
		BatchHandler:   http.HandlerFunc(documentHandler.SubmitBatch),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer srv.Close()

	runErr := srv.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), auditDrainTimeout)
	defer cancel()
	if err := tracedClient.Wait(drainCtx); err != nil {
		log.Warn("pending audit records were not persisted", "error", err)
	}

	return runErr
}

// openAuditDatabase connects and migrates the audit database. Failures are logged
// and leave the gateway running without an audit trail.
func openAuditDatabase(ctx context.Context, cfg config.AppConfig, log *slog.Logger) *pgxpool.Pool {
	if !cfg.Database.Enabled() {
		log.Info("database not configured, audit trail will be disabled")
		return nil
	}

	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Warn("failed to connect to database, audit trail will be disabled",
			"error", err,
			"host", cfg.Database.Host,
			"database", cfg.Database.Database,
			"user", cfg.Database.User,
			"password_set", cfg.Database.Password != "",
		)
		return nil
	}

	if _, err := database.RunMigrations(ctx, pool, log); err != nil {
		log.Warn("failed to run migrations, audit trail will be disabled", "error", err)
		pool.Close()
		return nil
	}

	log.Info("database connection established", "database", cfg.Database.Database)
	return pool
}
