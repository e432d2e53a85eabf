package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/miradorstack/mirador-risk/internal/cache"
	"github.com/miradorstack/mirador-risk/internal/classifier"
	"github.com/miradorstack/mirador-risk/internal/config"
	"github.com/miradorstack/mirador-risk/internal/eventstore"
	"github.com/miradorstack/mirador-risk/internal/features"
	"github.com/miradorstack/mirador-risk/internal/repo"
	"github.com/miradorstack/mirador-risk/internal/riskmodel"
	"github.com/miradorstack/mirador-risk/internal/scorer"
)

// app holds the wired engine for one CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cache   cache.Provider
	db      *gorm.DB
	store   *riskmodel.FileStore
	trainer *riskmodel.Trainer
	scorer  *scorer.Scorer
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	provider, err := newCacheProvider(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	a.cache = provider

	source, err := a.newSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	backend, err := classifier.Select(cfg.Model.Backend)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("classifier backend selected",
		slog.String("backend", backend.Name),
		slog.Any("available", classifier.Available()),
	)

	a.store = riskmodel.NewFileStore(logger, cfg.Model.ArtifactPath)

	opts := riskmodel.TrainerOptions{
		Params:       trainerParams(cfg.Model),
		TestFraction: cfg.Model.TestFraction,
	}
	if cfg.Model.MinROCAUC > 0 {
		opts.Accept = riskmodel.MinROCAUC(cfg.Model.MinROCAUC)
	}
	a.trainer = riskmodel.NewTrainer(logger, backend, a.store, opts)

	a.scorer = scorer.New(logger, pipelineLoader(logger, source, cfg.Features), a.trainer, a.store, scorer.Options{
		SkipFailedAssets: cfg.Scoring.SkipFailedAssets,
		Lease:            provider,
		LeaseTTL:         cfg.Cache.LeaseTTL,
	})
	return a, nil
}

func (a *app) newSource(ctx context.Context) (repo.Source, error) {
	switch a.cfg.Data.Source {
	case config.SourceSQLite:
		db, err := repo.OpenSQLite(ctx, a.cfg.Data.SQLite.DSN, a.logger)
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := repo.Migrate(ctx, db); err != nil {
			return nil, err
		}
		return repo.NewSQLSource(db), nil
	case config.SourceRegistry:
		reg := a.cfg.Data.Registry
		return repo.NewRegistryClient(reg.BaseURL, reg.EquipmentPath, reg.FailuresPath, reg.Timeout, a.cache, reg.CacheTTL), nil
	default:
		return repo.NewCSVSource(a.cfg.Data.CSV.EquipmentPath, a.cfg.Data.CSV.FailuresPath), nil
	}
}

// Close releases the cache connection and the database handle.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close cache", slog.Any("error", err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func newCacheProvider(cfg config.CacheConfig, logger *slog.Logger) (cache.Provider, error) {
	switch cfg.Backend {
	case "valkey":
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err != nil {
			return nil, fmt.Errorf("valkey cache: %w", err)
		}
		logger.Info("valkey cache connected", slog.String("addr", cfg.Addr))
		return provider, nil
	case "none":
		return cache.NoopProvider{}, nil
	default:
		return cache.NewMemoryProvider(time.Minute), nil
	}
}

// pipelineLoader re-reads the source on every call so each scoring run sees current data.
func pipelineLoader(logger *slog.Logger, source repo.Source, cfg config.FeatureConfig) scorer.PipelineLoader {
	opts := features.Options{
		SentinelDays:     cfg.SentinelDays,
		RecentWindowDays: cfg.RecentWindowDays,
		HorizonDays:      cfg.HorizonDays,
		MTBFMinIntervals: cfg.MTBFMinIntervals,
	}
	var sampler features.NegativeSampler = features.NowSampler{}
	if cfg.NegativeSampling == "quiet" {
		sampler = features.QuietSampler{
			Interval: time.Duration(cfg.QuietIntervalDays) * 24 * time.Hour,
			Horizon:  time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		}
	}
	return func(ctx context.Context) (*features.Pipeline, error) {
		events, err := eventstore.Load(ctx, source)
		if err != nil {
			return nil, err
		}
		return features.NewPipeline(logger, events, opts, features.WithNegativeSampler(sampler)), nil
	}
}

func trainerParams(cfg config.ModelConfig) classifier.Params {
	return classifier.Params{
		Seed: cfg.Seed,
		Boosting: classifier.BoostingParams{
			Rounds:         cfg.Boosting.Rounds,
			MaxDepth:       cfg.Boosting.MaxDepth,
			LearningRate:   cfg.Boosting.LearningRate,
			Lambda:         cfg.Boosting.Lambda,
			MinChildWeight: cfg.Boosting.MinChildHess,
		},
		Forest: classifier.ForestParams{
			Trees:          cfg.Forest.Trees,
			MaxDepth:       cfg.Forest.MaxDepth,
			MinSamplesLeaf: cfg.Forest.MinSamplesLeaf,
		},
	}
}
