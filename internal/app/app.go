// Package app wires configuration, storage and services shared by the
// HTTP server and the voice command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicetransit/internal/cache"
	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/repository"
	"voicetransit/internal/service"
)

const startupTimeout = 30 * time.Second

// App holds the initialized services
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Planner *service.Planner
	Repo    *repository.PostgresRepository // nil when persistence is disabled

	closers []func() error
}

// New builds the service graph from cfg
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if cfg.DatabaseEnabled() {
		repo, err := repository.NewPostgresRepository(
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
			log,
		)
		if err != nil {
			return nil, err
		}
		a.Repo = repo
		a.closers = append(a.closers, repo.Close)
		log.Info("connected to PostgreSQL")

		if cfg.PostgreSQL.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				_ = a.Close()
				return nil, err
			}
		}
	} else {
		log.Warn("persistence disabled, plan logs and feedback are not stored")
	}

	locationCache, err := a.newCache(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	client, err := service.NewTransitClient(cfg, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Planner.TimeZone)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("invalid PLANNER_TIMEZONE %q: %w", cfg.Planner.TimeZone, err)
	}

	ranker := service.NewRanker(cfg.Ranking.WeightText, cfg.Ranking.WeightPhonetic, cfg.Ranking.WeightOrder)

	// typed nils must not reach the interfaces
	var stations service.StationStore
	var plans service.PlanStore
	if a.Repo != nil {
		stations, plans = a.Repo, a.Repo
	}

	locator := service.NewLocator(client, ranker, locationCache, stations, service.NewRetryPolicy(cfg.Retry), log)
	intentParser := service.NewIntentParser(service.WithLocation(loc))
	a.Planner = service.NewPlanner(intentParser, locator, client, plans, cfg.Planner, log)

	log.Info("services initialized", "backends", cfg.Transit.Backends, "timezone", cfg.Planner.TimeZone)
	return a, nil
}

func (a *App) newCache(ctx context.Context) (cache.Cache, error) {
	cfg := a.Config.Cache
	if cfg.RedisURL == "" {
		return cache.NewMemory(cfg.Size, cfg.TTL), nil
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.TTL, a.Log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, r.Close)
	a.Log.Info("using redis location cache")
	return r, nil
}

// Close releases storage connections in reverse order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
