package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dart_finstate/pkg/core/dart"
	"dart_finstate/pkg/core/dataset"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// FinstateCache keeps fetched statements so repeated runs skip the network.
// Supports two backends: Postgres (primary) and a JSON file directory (local).
type FinstateCache struct {
	pool    *pgxpool.Pool
	fileDir string
	maxAge  time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewFinstateCache creates a cache. If pool is nil it falls back to files under dir
// (defaults to .cache/dart/finstate). A zero maxAge never expires entries.
func NewFinstateCache(pool *pgxpool.Pool, dir string, maxAge time.Duration, logger *zap.Logger) *FinstateCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "dart", "finstate")
	}
	if pool == nil {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Warn("check finstate cache dir", zap.String("dir", dir), zap.Error(err))
		}
	}
	return &FinstateCache{pool: pool, fileDir: dir, maxAge: maxAge, now: time.Now, logger: logger}
}

// CacheEntry is one cached fetch, as stored on disk.
type CacheEntry struct {
	Corp      string           `json:"corp"`
	Year      int              `json:"year"`
	Report    string           `json:"reprt_code"`
	Data      *dataset.Dataset `json:"data"`
	FetchedAt time.Time        `json:"fetched_at"`
}

func (c *FinstateCache) fresh(fetchedAt time.Time) bool {
	return c.maxAge <= 0 || c.now().Sub(fetchedAt) <= c.maxAge
}

// Get returns the cached dataset, or nil on a miss.
func (c *FinstateCache) Get(ctx context.Context, corp string, year int, report dart.ReportType) (*dataset.Dataset, error) {
	if c.pool != nil {
		query := `
			SELECT data, fetched_at
			FROM dart_finstate_cache
			WHERE corp_code = $1 AND bsns_year = $2 AND reprt_code = $3
		`
		var (
			dataJSON  []byte
			fetchedAt time.Time
		)
		err := c.pool.QueryRow(ctx, query, corp, year, report.Code()).Scan(&dataJSON, &fetchedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query cache: %w", err)
		}
		if !c.fresh(fetchedAt) {
			return nil, nil
		}
		ds := &dataset.Dataset{}
		if err := json.Unmarshal(dataJSON, ds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal db cached data: %w", err)
		}
		return ds, nil
	}

	raw, err := os.ReadFile(c.entryPath(corp, year, report))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache file: %w", err)
	}
	if entry.Data == nil || !c.fresh(entry.FetchedAt) {
		return nil, nil
	}
	return entry.Data, nil
}

// Save stores ds under (corp, year, report), replacing any previous entry.
func (c *FinstateCache) Save(ctx context.Context, corp string, year int, report dart.ReportType, ds *dataset.Dataset) error {
	if c.pool != nil {
		dataJSON, err := json.Marshal(ds)
		if err != nil {
			return fmt.Errorf("failed to marshal dataset: %w", err)
		}
		query := `
			INSERT INTO dart_finstate_cache (corp_code, bsns_year, reprt_code, data, fetched_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (corp_code, bsns_year, reprt_code)
			DO UPDATE SET data = EXCLUDED.data, fetched_at = EXCLUDED.fetched_at
		`
		if _, err := c.pool.Exec(ctx, query, corp, year, report.Code(), dataJSON, c.now()); err != nil {
			return fmt.Errorf("failed to save to db cache: %w", err)
		}
		return nil
	}

	entry := CacheEntry{Corp: corp, Year: year, Report: report.Code(), Data: ds, FetchedAt: c.now()}
	fileBytes, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := os.WriteFile(c.entryPath(corp, year, report), fileBytes, 0644); err != nil {
		return fmt.Errorf("failed to save to file cache: %w", err)
	}
	return nil
}

func (c *FinstateCache) entryPath(corp string, year int, report dart.ReportType) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, corp)
	return filepath.Join(c.fileDir, fmt.Sprintf("%s_%d_%s.json", safe, year, report.Code()))
}
