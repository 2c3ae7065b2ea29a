package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	balanceledger "tally/contexts/token-core/balance-ledger"
	postgresadapter "tally/contexts/token-core/balance-ledger/adapters/postgres"
	workerapp "tally/contexts/token-core/balance-ledger/application/workers"
	"tally/contexts/token-core/balance-ledger/domain/entities"
	"tally/internal/platform/config"
	"tally/internal/platform/db"
	"tally/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

// WorkerApp is the hosting-runtime process around the ledger: it owns the
// durable store, initializes the ledger with the deploying owner, and runs
// the notification relay that delivers recorded envelopes to the bus.
type WorkerApp struct {
	Module   balanceledger.Module
	Bus      *messaging.Bus
	postgres *db.Postgres
	relay    workerapp.NotificationRelay
	interval time.Duration
	logger   *slog.Logger
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if strings.TrimSpace(cfg.LedgerOwner) == "" {
		return nil, errors.New("LEDGER_OWNER is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.InitLedger(context.Background(), entities.AccountID(cfg.LedgerOwner)); err != nil {
		_ = pg.Close()
		return nil, err
	}

	module := balanceledger.NewModule(balanceledger.Dependencies{
		Repository:  repo,
		Clock:       postgresadapter.SystemClock{},
		IDGenerator: postgresadapter.UUIDGenerator{},
		Logger:      logger,
	})

	bus := messaging.NewBus(logger)
	return &WorkerApp{
		Module:   module,
		Bus:      bus,
		postgres: pg,
		relay: workerapp.NotificationRelay{
			Outbox:    repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			Topic:     cfg.NotificationTopic,
			BatchSize: cfg.RelayBatchSize,
			Logger:    logger,
		},
		interval: cfg.RelayPollInterval,
		logger:   logger,
	}, nil
}

// BuildInMemory wires the full stack against the in-process store, for
// embedding hosts and tests. The supplied owner plays the deploying caller.
func BuildInMemory(owner entities.AccountID, logger *slog.Logger) (*WorkerApp, error) {
	if logger == nil {
		logger = slog.Default()
	}

	module, err := balanceledger.NewInMemoryModule(owner, logger)
	if err != nil {
		return nil, err
	}

	bus := messaging.NewBus(logger)
	return &WorkerApp{
		Module: module,
		Bus:    bus,
		relay: workerapp.NotificationRelay{
			Outbox:    module.Store,
			Publisher: bus,
			Clock:     module.Store,
			Topic:     "token.ledger",
			BatchSize: 100,
			Logger:    logger,
		},
		interval: 2 * time.Second,
		logger:   logger,
	}, nil
}

// RelayOnce drains the outbox a single time. Exposed for embedding hosts
// that drive delivery themselves instead of Run's ticker.
func (w *WorkerApp) RelayOnce(ctx context.Context) error {
	return w.relay.RunOnce(ctx)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.interval.String(),
	)

	for {
		if err := w.relay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}
