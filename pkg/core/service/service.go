// Package service wires the DART client, the fetch cache and the collector
// from a loaded config. Both commands start here.
package service

import (
	"context"
	"path/filepath"

	"dart_finstate/pkg/core/collector"
	"dart_finstate/pkg/core/config"
	"dart_finstate/pkg/core/dart"
	"dart_finstate/pkg/core/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Service is a ready-to-run collector plus the resources behind it.
type Service struct {
	Client    *dart.Client
	Cache     *store.FinstateCache
	Collector *collector.Collector
	pool      *pgxpool.Pool
}

// New builds the service. Postgres is used for the fetch cache when
// cfg.DatabaseURL is set, files under cfg.CacheDir otherwise. A corp list that
// cannot be loaded is logged and ids are then sent to OpenDART unchanged.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{}
	opts := []dart.ClientOption{dart.WithLogger(logger), dart.WithRateLimit(cfg.RequestsPerMinute)}
	if cfg.BaseURL != "" {
		opts = append(opts, dart.WithBaseURL(cfg.BaseURL))
	}
	s.Client = dart.NewClient(cfg.APIKey, opts...)

	reg, err := dart.LoadRegistry(ctx, s.Client, dart.NewCorpCodeCache(cfg.CacheDir, cfg.CacheMaxAge))
	if err != nil {
		logger.Warn("corp registry unavailable, ids are passed through", zap.Error(err))
	} else {
		s.Client.SetRegistry(reg)
		logger.Info("corp registry loaded", zap.Int("corps", reg.Len()))
	}

	if cfg.DatabaseURL != "" {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		s.pool = pool
		logger.Info("fetch cache: postgres")
	}
	cacheDir := ""
	if s.pool == nil {
		cacheDir = filepath.Join(cfg.CacheDir, "finstate")
	}
	s.Cache = store.NewFinstateCache(s.pool, cacheDir, cfg.CacheMaxAge, logger)

	s.Collector = collector.New(store.NewCachedFetcher(s.Client, s.Cache, logger), logger)
	s.Collector.SetConcurrency(cfg.Concurrency)
	return s, nil
}

// Close releases the database pool, if any.
func (s *Service) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
