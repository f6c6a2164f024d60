// Package config assembles the collector settings from .env, environment
// variables, a YAML defaults file and an Hjson company watchlist.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"dart_finstate/pkg/core/collector"
	"dart_finstate/pkg/core/dart"
	"dart_finstate/pkg/core/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ErrMissingAPIKey is returned when no OpenDART key was configured anywhere.
var ErrMissingAPIKey = errors.New("DART API key not set (use -key, DART_API_KEY or api_key in the config file)")

// Defaults used when neither the config file nor the command line picks something.
var (
	DefaultCodes  = []string{"006400", "373220", "259630"}
	DefaultYears  = []int{2023}
	DefaultReport = dart.ReportAnnual
)

const DefaultPath = "config/collector.yaml"

// Config is everything a run needs besides the request itself.
type Config struct {
	APIKey            string        `yaml:"api_key"`
	DatabaseURL       string        `yaml:"database_url"`
	BaseURL           string        `yaml:"base_url"`
	Report            string        `yaml:"report"`
	Years             []int         `yaml:"years"`
	Codes             []string      `yaml:"codes"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	OutputDir         string        `yaml:"output_dir"`
	CacheDir          string        `yaml:"cache_dir"`
	CacheMaxAge       time.Duration `yaml:"-"`
	CacheMaxAgeRaw    string        `yaml:"cache_max_age"`
	Watchlist         string        `yaml:"watchlist"`
	LogLevel          string        `yaml:"log_level"`
	Addr              string        `yaml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Report:            string(DefaultReport),
		Years:             append([]int(nil), DefaultYears...),
		Codes:             append([]string(nil), DefaultCodes...),
		Concurrency:       1,
		RequestsPerMinute: dart.DefaultRequestsPerMinute,
		OutputDir:         "out",
		CacheDir:          ".cache/dart",
		CacheMaxAge:       24 * time.Hour,
		LogLevel:          "info",
		Addr:              ":8080",
	}
}

// Load builds the config: defaults, then the YAML file at path, then .env and the
// environment. A missing file is only an error when path is not DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// .env is optional; real environment variables win over it.
	godotenv.Load()
	cfg.applyEnv()

	if cfg.CacheMaxAgeRaw != "" {
		d, err := time.ParseDuration(cfg.CacheMaxAgeRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid cache_max_age %q: %w", cfg.CacheMaxAgeRaw, err)
		}
		cfg.CacheMaxAge = d
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.APIKey, "DART_API_KEY")
	set(&c.DatabaseURL, "DATABASE_URL")
	set(&c.BaseURL, "DART_BASE_URL")
	set(&c.CacheDir, "DART_CACHE_DIR")
	set(&c.OutputDir, "DART_OUTPUT_DIR")
	set(&c.LogLevel, "LOG_LEVEL")
}

// Validate checks the settings every run depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if _, err := dart.ParseReportType(c.Report); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

// ReportType is the parsed Report setting.
func (c *Config) ReportType() (dart.ReportType, error) {
	return dart.ParseReportType(c.Report)
}

// =============================================================================
// WATCHLIST
// =============================================================================

type watchlistFile struct {
	Companies []collector.Entity `json:"companies"`
}

// LoadWatchlist reads an Hjson file listing companies by id and display name.
func LoadWatchlist(path string) ([]collector.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}
	var wl watchlistFile
	if err := utils.ParseHJSONToStruct(data, &wl); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist %s: %w", path, err)
	}
	for i, e := range wl.Companies {
		if strings.TrimSpace(e.ID) == "" {
			return nil, fmt.Errorf("watchlist entry %d has no id", i)
		}
	}
	return wl.Companies, nil
}

// Entities turns ids into entities, taking display names from the watchlist.
// Blank and repeated ids are dropped.
func Entities(ids []string, watchlist []collector.Entity) []collector.Entity {
	names := make(map[string]string, len(watchlist))
	for _, e := range watchlist {
		names[strings.TrimSpace(e.ID)] = e.Name
	}
	seen := make(map[string]bool)
	var out []collector.Entity
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, collector.Entity{ID: id, Name: names[id]})
	}
	return out
}

// SplitCodes splits a comma or whitespace separated list of company ids.
func SplitCodes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// ParseYears parses "2021,2023" and ranges like "2019-2023". The result is sorted
// and deduplicated.
func ParseYears(s string) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range SplitCodes(s) {
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := parseYear(lo)
		if err != nil {
			return nil, err
		}
		to := from
		if isRange {
			if to, err = parseYear(hi); err != nil {
				return nil, err
			}
			if to < from {
				return nil, fmt.Errorf("invalid year range %q", part)
			}
		}
		for y := from; y <= to; y++ {
			seen[y] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no years in %q", s)
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// OpenDART has statements from 2015 onward.
func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 2015 || y > 2100 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return y, nil
}
