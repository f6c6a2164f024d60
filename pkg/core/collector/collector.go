// Package collector runs one statement fetch per (company, year), isolates the
// failures, and stacks the successful results into one dataset.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"dart_finstate/pkg/core/amount"
	"dart_finstate/pkg/core/dart"
	"dart_finstate/pkg/core/dataset"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provenance columns stamped onto every fetched row.
const (
	ColQueryCode = "query_code"
	ColQueryName = "query_name"
	ColQueryYear = "query_year"
)

// Fetcher retrieves the statement records for one company and year.
// Implementations return dart.ErrNoData (or an empty dataset) when nothing exists.
// The collector never modifies a returned dataset; it tags a copy.
type Fetcher interface {
	Finstate(ctx context.Context, corp string, year int, report dart.ReportType) (*dataset.Dataset, error)
}

// Entity is a company as selected by the user: a stable id and a display name.
type Entity struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Request describes one collection run.
type Request struct {
	Entities []Entity        `json:"entities"`
	Years    []int           `json:"years"`
	Report   dart.ReportType `json:"report"`
}

// Validate rejects requests that cannot produce any unit.
func (r Request) Validate() error {
	if len(r.Entities) == 0 {
		return errors.New("no companies selected")
	}
	if len(r.Years) == 0 {
		return errors.New("no years selected")
	}
	if !r.Report.Valid() {
		return fmt.Errorf("invalid report type %q", r.Report)
	}
	return nil
}

// Status is the outcome of one unit.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// UnitResult is the outcome of one (company, year) fetch.
type UnitResult struct {
	Entity Entity           `json:"entity"`
	Year   int              `json:"year"`
	Status Status           `json:"status"`
	Rows   int              `json:"rows"`
	Err    error            `json:"-"`
	Data   *dataset.Dataset `json:"-"`
}

// ErrorText is the failure text, or "" for success and empty units.
func (u UnitResult) ErrorText() string {
	if u.Err == nil {
		return ""
	}
	return u.Err.Error()
}

func (u UnitResult) MarshalJSON() ([]byte, error) {
	type plain UnitResult
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(u), u.ErrorText()})
}

// Result is a finished collection run.
type Result struct {
	RunID         string           `json:"run_id"`
	Request       Request          `json:"request"`
	Units         []UnitResult     `json:"units"`
	Dataset       *dataset.Dataset `json:"-"`
	AmountColumns []string         `json:"amount_columns"`
	Unparseable   int              `json:"unparseable"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
}

// Partition splits the units by status, keeping request order.
func (r *Result) Partition() (success, empty, failed []UnitResult) {
	for _, u := range r.Units {
		switch u.Status {
		case StatusSuccess:
			success = append(success, u)
		case StatusEmpty:
			empty = append(empty, u)
		default:
			failed = append(failed, u)
		}
	}
	return success, empty, failed
}

// Collector drives the fetches of a run.
type Collector struct {
	fetcher     Fetcher
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

// New creates a collector that fetches one unit at a time.
func New(fetcher Fetcher, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{fetcher: fetcher, logger: logger, concurrency: 1, now: time.Now}
}

// SetConcurrency bounds how many units are fetched at once.
func (c *Collector) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	c.concurrency = n
}

type unit struct {
	entity Entity
	year   int
}

// Run fetches every (entity, year) pair. Unit failures are recorded in the result and
// never abort the run; the only error returned is for an invalid request.
func (c *Collector) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.New().String(), Request: req, StartedAt: c.now()}
	log := c.logger.With(zap.String("run_id", res.RunID), zap.String("report", string(req.Report)))

	var units []unit
	for _, e := range req.Entities {
		for _, y := range req.Years {
			units = append(units, unit{entity: e, year: y})
		}
	}
	log.Info("collection started", zap.Int("units", len(units)))

	res.Units = make([]UnitResult, len(units))
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, u unit) {
			defer wg.Done()
			defer func() { <-sem }()
			res.Units[i] = c.fetchUnit(ctx, u, req.Report)
		}(i, u)
	}
	wg.Wait()

	var parts []*dataset.Dataset
	for _, u := range res.Units {
		fields := []zap.Field{zap.String("corp", u.Entity.ID), zap.Int("year", u.Year), zap.String("status", string(u.Status))}
		switch u.Status {
		case StatusSuccess:
			log.Info("unit collected", append(fields, zap.Int("rows", u.Rows))...)
			parts = append(parts, u.Data)
		case StatusEmpty:
			log.Info("unit has no data", fields...)
		default:
			log.Warn("unit failed", append(fields, zap.Error(u.Err))...)
		}
	}

	res.Dataset = dataset.Concat(parts...)
	res.AmountColumns = res.Dataset.AmountColumns()
	res.Unparseable = res.Dataset.NormalizeAmounts(res.AmountColumns)
	res.FinishedAt = c.now()

	success, empty, failed := res.Partition()
	log.Info("collection finished",
		zap.Int("success", len(success)), zap.Int("empty", len(empty)), zap.Int("failed", len(failed)),
		zap.Int("rows", res.Dataset.Len()), zap.Int("unparseable_amounts", res.Unparseable))
	return res, nil
}

// fetchUnit runs one fetch and converts every outcome, panics included, into a UnitResult.
func (c *Collector) fetchUnit(ctx context.Context, u unit, report dart.ReportType) (out UnitResult) {
	out = UnitResult{Entity: u.entity, Year: u.year}
	defer func() {
		if p := recover(); p != nil {
			out.Status, out.Err, out.Data, out.Rows = StatusFailed, fmt.Errorf("fetch panicked: %v", p), nil, 0
		}
	}()

	ds, err := c.fetcher.Finstate(ctx, u.entity.ID, u.year, report)
	switch {
	case errors.Is(err, dart.ErrNoData):
		out.Status = StatusEmpty
		return out
	case err != nil:
		out.Status, out.Err = StatusFailed, err
		return out
	case ds.Empty():
		out.Status = StatusEmpty
		return out
	}

	name := u.entity.Name
	if name == "" {
		name = u.entity.ID
	}
	ds = ds.Clone()
	ds.Tag(ColQueryCode, amount.Text(u.entity.ID))
	ds.Tag(ColQueryName, amount.Text(name))
	ds.Tag(ColQueryYear, amount.Int(int64(u.year)))

	out.Status, out.Data, out.Rows = StatusSuccess, ds, ds.Len()
	return out
}

// ArtifactName is dart_finstate_<y1>_<y2>....xlsx with the years sorted and deduplicated.
func ArtifactName(years []int) string {
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)
	parts := []string{"dart_finstate"}
	for i, y := range sorted {
		if i > 0 && y == sorted[i-1] {
			continue
		}
		parts = append(parts, strconv.Itoa(y))
	}
	return strings.Join(parts, "_") + ".xlsx"
}
