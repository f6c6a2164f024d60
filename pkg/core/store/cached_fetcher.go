package store

import (
	"context"

	"dart_finstate/pkg/core/dart"
	"dart_finstate/pkg/core/dataset"

	"go.uber.org/zap"
)

// Fetcher is the statement source being cached.
type Fetcher interface {
	Finstate(ctx context.Context, corp string, year int, report dart.ReportType) (*dataset.Dataset, error)
}

// CachedFetcher serves statements from a FinstateCache and falls through to the
// wrapped fetcher on a miss. Only non-empty successful fetches are stored, so
// failures and empty periods are retried on the next run.
type CachedFetcher struct {
	next   Fetcher
	cache  *FinstateCache
	logger *zap.Logger
}

func NewCachedFetcher(next Fetcher, cache *FinstateCache, logger *zap.Logger) *CachedFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{next: next, cache: cache, logger: logger}
}

func (f *CachedFetcher) Finstate(ctx context.Context, corp string, year int, report dart.ReportType) (*dataset.Dataset, error) {
	log := f.logger.With(zap.String("corp", corp), zap.Int("year", year), zap.String("report", string(report)))

	cached, err := f.cache.Get(ctx, corp, year, report)
	if err != nil {
		log.Warn("cache read failed", zap.Error(err))
	}
	if cached != nil && !cached.Empty() {
		log.Debug("cache hit")
		return cached, nil
	}

	ds, err := f.next.Finstate(ctx, corp, year, report)
	if err != nil || ds.Empty() {
		return ds, err
	}
	if err := f.cache.Save(ctx, corp, year, report, ds); err != nil {
		log.Warn("cache write failed", zap.Error(err))
	}
	return ds, nil
}
