package main

import (
	"context"
	"fmt"

	"gpu-renter/config"
	"gpu-renter/core/agent"
	"gpu-renter/core/planner"
	"gpu-renter/core/repository"
	"gpu-renter/core/repository/memory"
	"gpu-renter/core/runlock"
	"gpu-renter/core/seed"
	"gpu-renter/observability"
	"gpu-renter/providers/vendor"
)

// app holds the process-wide dependencies shared by the subcommands
type app struct {
	cfg     *config.Config
	log     *observability.Logger
	db      *repository.DB
	ledger  repository.Ledger
	closers []func()
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := observability.NewLogger(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, log.Sync)

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		store := memory.New()
		a.ledger = store.Ledger()
	default:
		db, err := repository.NewDB(cfg.DatabaseURL, cfg.StoreTimeout)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Info("database connected")
		a.db = db
		a.ledger = repository.NewLedger(db)
		a.closers = append(a.closers, func() { _ = db.Close() })
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// prepareStore migrates the schema when backed by Postgres. The memory
// store has no schema, and gets the vendor catalog seeded instead so a
// fresh process is usable.
func (a *app) prepareStore(ctx context.Context) error {
	if a.db != nil {
		return a.db.Migrate(ctx)
	}
	_, err := a.seedVendors(ctx)
	return err
}

func (a *app) seedVendors(ctx context.Context) (int, error) {
	catalog, err := seed.LoadCatalog(a.cfg.SeedFile)
	if err != nil {
		return 0, err
	}
	n, err := seed.Apply(ctx, a.ledger.Vendors, catalog)
	if err != nil {
		return n, fmt.Errorf("seed vendors: %w", err)
	}
	a.log.Info("vendor catalog applied", "vendors", n, "source", sourceName(a.cfg.SeedFile))
	return n, nil
}

func sourceName(path string) string {
	if path == "" {
		return "default"
	}
	return path
}

// newService wires planner, vendor client, engine and lock into a run service
func (a *app) newService(ctx context.Context) (*agent.Service, error) {
	p, err := planner.New(planner.Config{
		Mode: planner.Mode(a.cfg.PlannerMode),
		LLM: planner.LLMConfig{
			APIKey:  a.cfg.FireworksAPIKey,
			Model:   a.cfg.FireworksModel,
			BaseURL: a.cfg.FireworksBaseURL,
			Timeout: a.cfg.PlannerTimeout,
			Logger:  a.log,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build planner: %w", err)
	}

	client, err := vendor.NewClient(vendor.Config{
		Secret:    a.cfg.VendorSecret,
		Timeout:   a.cfg.VendorTimeout,
		RateLimit: a.cfg.VendorRateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("build vendor client: %w", err)
	}

	var locker runlock.Locker = runlock.NewMemory()
	if a.cfg.RedisAddr != "" {
		redisLock, err := runlock.NewRedis(ctx, runlock.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
			TTL:      a.cfg.LockTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisLock.Close() })
		locker = redisLock
		a.log.Info("using redis run lock", "addr", a.cfg.RedisAddr)
	}

	engine := agent.NewEngine(a.ledger, p, client, a.log)
	engine.SetTickTimeout(a.cfg.TickTimeout)
	a.log.Info("run service ready", "planner_mode", a.cfg.PlannerMode)
	return agent.NewService(engine, a.ledger, locker, a.log), nil
}
