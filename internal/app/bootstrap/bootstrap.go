package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	campaignledger "truevote/contexts/election-ledger/campaign-ledger"
	"truevote/contexts/election-ledger/campaign-ledger/adapters/grant"
	"truevote/contexts/election-ledger/campaign-ledger/adapters/memory"
	postgresadapter "truevote/contexts/election-ledger/campaign-ledger/adapters/postgres"
	workerapp "truevote/contexts/election-ledger/campaign-ledger/application/workers"
	"truevote/contexts/election-ledger/campaign-ledger/ports"
	"truevote/internal/platform/config"
	"truevote/internal/platform/db"
	"truevote/internal/platform/httpserver"
	"truevote/internal/platform/messaging"
	"truevote/internal/platform/otel"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server          *httpserver.Server
	module          campaignledger.Module
	postgres        *db.Postgres
	shutdownTracing func(context.Context) error
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	outboxRelay     workerapp.OutboxRelay
	pollInterval    time.Duration
	shutdownTracing func(context.Context) error
	logger          *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	shutdownTracing, err := otel.Setup(ctx, cfg.ServiceName+"-api", cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	bus, err := messaging.NewBus(cfg.KafkaBrokers, cfg.EventBufferSize, logger)
	if err != nil {
		return nil, err
	}

	verifier, err := buildVerifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := campaignledger.Dependencies{
		Publisher:            bus,
		Subscriber:           bus,
		Stream:               bus,
		Verifier:             verifier,
		Logger:               logger,
		EnableTallyProjector: cfg.EnableTallyProjector,
	}

	var pg *db.Postgres
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		logger.Warn("POSTGRES_DSN not set; ledger journal is in-memory",
			"event", "bootstrap_memory_journal",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		store := memory.NewStore()
		deps.Journal = store
		deps.Dedup = store
		deps.Clock = store
		deps.IDGen = store
	} else {
		pg, err = connectPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		deps.Journal = repo
		deps.Dedup = repo
		deps.Clock = postgresadapter.SystemClock{}
		deps.IDGen = postgresadapter.UUIDGenerator{}
	}

	module := campaignledger.NewModule(deps)
	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:          server,
		module:          module,
		postgres:        pg,
		shutdownTracing: shutdownTracing,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	shutdownTracing, err := otel.Setup(ctx, cfg.ServiceName+"-worker", cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	pg, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	bus, err := messaging.NewBus(cfg.KafkaBrokers, cfg.EventBufferSize, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		pollInterval:    cfg.WorkerPollInterval,
		shutdownTracing: shutdownTracing,
		logger:          logger,
	}, nil
}

// Run restores the ledger, starts the projector and serves HTTP until ctx is
// done.
func (a *APIApp) Run(ctx context.Context) error {
	if err := a.module.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"campaign_count", a.module.Registry.Count(),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

func (a *APIApp) Close() error {
	return closeAll(a.shutdownTracing, a.postgres)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("outbox relay cycle failed",
				"event", "bootstrap_worker_cycle_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	return closeAll(w.shutdownTracing, w.postgres)
}

func buildVerifier(cfg config.Config, logger *slog.Logger) (ports.AdmissionVerifier, error) {
	if !cfg.AdmissionGrantRequired {
		logger.Warn("admission grants disabled; voter identity is trusted as sent",
			"event", "bootstrap_admission_grants_disabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return nil, nil
	}
	key, err := grant.DecodePublicKey(cfg.AdmissionGrantPublicKey)
	if err != nil {
		return nil, err
	}
	verifier, err := grant.NewVerifier(grant.Config{
		Issuer:   cfg.AdmissionGrantIssuer,
		Audience: cfg.AdmissionGrantAudience,
		Key:      key,
	})
	if err != nil {
		return nil, err
	}
	return verifier, nil
}

func connectPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (*db.Postgres, error) {
	return db.Connect(ctx, cfg.PostgresDSN, db.Options{
		MaxOpenConns:    cfg.PostgresMaxOpenConns,
		MaxIdleConns:    cfg.PostgresMaxIdleConns,
		ConnMaxLifetime: cfg.PostgresConnMaxLifetime,
		Logger:          logger,
	})
}

func closeAll(shutdownTracing func(context.Context) error, pg *db.Postgres) error {
	var errs []error
	if shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, shutdownTracing(ctx))
		cancel()
	}
	if pg != nil {
		errs = append(errs, pg.Close())
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
