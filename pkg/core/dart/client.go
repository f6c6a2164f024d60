// Package dart is a small client for the OpenDART disclosure API.
// API Documentation: https://opendart.fss.or.kr/guide/main.do
package dart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"dart_finstate/pkg/core/amount"
	"dart_finstate/pkg/core/dataset"
	"dart_finstate/pkg/core/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://opendart.fss.or.kr/api"
	FinstatePath   = "/fnlttSinglAcnt.json"
	CorpCodePath   = "/corpCode.xml"

	StatusOK     = "000"
	StatusNoData = "013"

	// OpenDART allows roughly 1,000 calls per minute per key.
	DefaultRequestsPerMinute = 600
)

// ErrNoData is returned when OpenDART has no statement for the request.
var ErrNoData = errors.New("no data")

// APIError is a non-success status in an OpenDART response body.
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("OpenDART status %s: %s", e.Status, e.Message)
}

// finstateFields is the documented column order of fnlttSinglAcnt.
var finstateFields = []string{
	"rcept_no", "bsns_year", "corp_code", "stock_code", "reprt_code",
	"account_nm", "fs_div", "fs_nm", "sj_div", "sj_nm",
	"thstrm_nm", "thstrm_dt", "thstrm_amount", "thstrm_add_amount",
	"frmtrm_nm", "frmtrm_dt", "frmtrm_amount", "frmtrm_add_amount",
	"bfefrmtrm_nm", "bfefrmtrm_dt", "bfefrmtrm_amount",
	"ord", "currency",
}

type finstateResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	List    []map[string]any `json:"list"`
}

// Client calls OpenDART with one API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	registry   *CorpRegistry
	logger     *zap.Logger
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption { return func(c *Client) { c.baseURL = u } }

func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.httpClient = h } }

func WithLogger(l *zap.Logger) ClientOption { return func(c *Client) { c.logger = l } }

// WithRateLimit caps outgoing requests; n <= 0 disables limiting.
func WithRateLimit(perMinute int) ClientOption {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// NewClient creates a new OpenDART client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	WithRateLimit(DefaultRequestsPerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetRegistry lets Finstate accept stock codes and company names as well as corp codes.
func (c *Client) SetRegistry(r *CorpRegistry) { c.registry = r }

// Registry returns the registry set with SetRegistry, if any.
func (c *Client) Registry() *CorpRegistry { return c.registry }

// Finstate fetches the key accounts (단일회사 주요계정) of one company for one business year.
func (c *Client) Finstate(ctx context.Context, corp string, year int, report ReportType) (*dataset.Dataset, error) {
	if !report.Valid() {
		return nil, fmt.Errorf("invalid report type %q", report)
	}
	corpCode := corp
	if c.registry != nil {
		if found, ok := c.registry.Resolve(corp); ok {
			corpCode = found.Code
		}
	}

	q := url.Values{}
	q.Set("crtfc_key", c.apiKey)
	q.Set("corp_code", corpCode)
	q.Set("bsns_year", strconv.Itoa(year))
	q.Set("reprt_code", report.Code())

	body, err := c.get(ctx, FinstatePath, q)
	if err != nil {
		return nil, err
	}

	var resp finstateResponse
	strategy, err := utils.DecodeLenient(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenDART response: %w", err)
	}
	if strategy != utils.StrategyJSON {
		c.logger.Warn("OpenDART body needed lenient decoding",
			zap.String("corp_code", corpCode), zap.Int("year", year), zap.String("strategy", string(strategy)))
	}

	switch resp.Status {
	case StatusOK:
	case StatusNoData:
		return nil, ErrNoData
	default:
		return nil, &APIError{Status: resp.Status, Message: resp.Message}
	}
	if len(resp.List) == 0 {
		return nil, ErrNoData
	}

	return recordsToDataset(resp.List), nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenDART request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenDART returned HTTP %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// recordsToDataset keeps the documented field order and appends anything else sorted.
func recordsToDataset(list []map[string]any) *dataset.Dataset {
	seen := make(map[string]bool)
	for _, rec := range list {
		for k := range rec {
			seen[k] = true
		}
	}

	var cols []string
	for _, f := range finstateFields {
		if seen[f] {
			cols = append(cols, f)
			delete(seen, f)
		}
	}
	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	cols = append(cols, extra...)

	ds := dataset.New(cols...)
	for _, rec := range list {
		row := make(dataset.Row, len(rec))
		for k, v := range rec {
			row[k] = amount.Of(v)
		}
		ds.Append(row)
	}
	return ds
}
