package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/compace/hygiene/internal/clock/system"
	"github.com/compace/hygiene/internal/config"
	"github.com/compace/hygiene/internal/hygiene"
	"github.com/compace/hygiene/internal/id/uuid"
	"github.com/compace/hygiene/internal/lock"
	"github.com/compace/hygiene/internal/logging"
	"github.com/compace/hygiene/internal/metrics"
	"github.com/compace/hygiene/internal/probe"
	"github.com/compace/hygiene/internal/storage/memory"
	"github.com/compace/hygiene/internal/storage/postgres"
)

// services holds the long-lived dependencies commands share.
type services struct {
	cfg    config.Config
	logger *zap.Logger
	store  hygiene.CompetitionStore
	runner *hygiene.Runner
	idGen  hygiene.IDGenerator
	clock  hygiene.Clock
	pool   *pgxpool.Pool
}

// buildServices initializes config, logging, metrics, stores, and the
// worker. With no db.dsn configured the in-memory store is used, which is
// only suitable for local development.
func buildServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	metrics.Init()

	clk := system.New()
	idGen := uuid.NewGenerator()

	var (
		compStore hygiene.CompetitionStore
		lockStore lock.Store
		pool      *pgxpool.Pool
	)
	if cfg.DB.DSN != "" {
		pool, err = postgres.Connect(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, err
		}
		compStore, err = postgres.NewCompetitionStore(pool)
		if err != nil {
			return nil, err
		}
		lockStore, err = postgres.NewLockStore(pool)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres store")
	} else {
		compStore = memory.NewCompetitionStore()
		lockStore = memory.NewLockStore()
		logger.Warn("no db.dsn configured, using in-memory store")
	}

	workerLog := logging.Component(logger, "worker")
	locks := lock.NewManager(lockStore, clk, idGen, workerLog)
	dedup := hygiene.NewDedupPass(compStore, cfg.Worker.NormalizeBatch, workerLog)
	prober := probe.New(probe.Config{
		UserAgent: cfg.Worker.UserAgent,
		Timeout:   cfg.ProbeTimeout(),
	})
	urlCheck := hygiene.NewURLCheckPass(compStore, prober, clk, hygiene.URLCheckConfig{
		DefaultLimit: cfg.Worker.URLCheckLimit,
		ProbeRPS:     cfg.Worker.ProbeRPS,
	}, workerLog)
	runner := hygiene.NewRunner(locks, dedup, urlCheck, cfg.LockTTL(), workerLog)

	return &services{
		cfg:    cfg,
		logger: logger,
		store:  compStore,
		runner: runner,
		idGen:  idGen,
		clock:  clk,
		pool:   pool,
	}, nil
}

// close releases held resources.
func (s *services) close() {
	if s.pool != nil {
		s.pool.Close()
	}
	_ = s.logger.Sync()
}
