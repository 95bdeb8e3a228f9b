package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/talgya/agentmind/internal/api"
	"github.com/talgya/agentmind/internal/audit"
	"github.com/talgya/agentmind/internal/config"
	"github.com/talgya/agentmind/internal/engine"
	"github.com/talgya/agentmind/internal/entropy"
	"github.com/talgya/agentmind/internal/lock"
	"github.com/talgya/agentmind/internal/persistence"
	"github.com/talgya/agentmind/internal/storage"
)

// backend is the concrete store before it is wrapped by the breaker. Both
// the SQLite and the in-memory stores also seed and lease.
type backend interface {
	storage.Store
	storage.Seeder
	storage.Locker
}

// app holds everything one agentd process wires together.
type app struct {
	cfg    *config.Config
	raw    backend
	db     *persistence.DB // nil for the memory store
	engine *engine.Engine

	closers []func() error
}

func newApp(cfg *config.Config) (*app, error) {
	dcfg, err := cfg.Decision()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	// ── Store ─────────────────────────────────────────────────────────
	switch cfg.Store {
	case config.BackendMemory:
		a.raw = storage.NewMemory()
		slog.Warn("using in-memory store; state is lost on exit")
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := persistence.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.raw = db
		a.closers = append(a.closers, db.Close)
		slog.Info("database opened", "path", cfg.DBPath)
	}
	store := storage.NewGuard(cfg.Store, a.raw, storage.DefaultBreakerConfig())

	// ── Lease ─────────────────────────────────────────────────────────
	var locker storage.Locker = a.raw
	if cfg.PostgresDSN != "" {
		pg, err := lock.NewPostgres(cfg.PostgresDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		locker = pg
		a.closers = append(a.closers, pg.Close)
		slog.Info("tick leases held in postgres")
	}

	a.engine = engine.New(store, locker, dcfg)

	// ── Audit ─────────────────────────────────────────────────────────
	var sinks audit.Multi
	if a.db != nil {
		sinks = append(sinks, a.db)
	}
	if cfg.AuditDir != "" {
		j := audit.NewJSONL(cfg.AuditDir, "decisions")
		sinks = append(sinks, j)
		a.closers = append(a.closers, j.Close)
		slog.Info("audit files enabled", "dir", cfg.AuditDir)
	}
	if len(sinks) > 0 {
		a.engine.Audit = sinks
	}

	if rc := entropy.NewClient(cfg.RandomOrgKey); rc.Enabled() {
		a.engine.NewRand = rc.NewRand
		slog.Info("decision seeds drawn from random.org")
	}
	return a, nil
}

func (a *app) server() *api.Server {
	s := &api.Server{
		Engine:   a.engine,
		Retry:    a.cfg.Retry(),
		Limiter:  api.NewRateLimiter(a.cfg.RateLimit, a.cfg.RateBurst),
		AdminKey: a.cfg.AdminKey,
		Port:     a.cfg.Port,
	}
	if a.db != nil {
		s.Decisions = a.db
		s.Ping = a.db.Ping
	}
	return s
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
