package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Corp is one entry of the OpenDART corporation list.
type Corp struct {
	Code       string `xml:"corp_code" json:"corp_code"`
	Name       string `xml:"corp_name" json:"corp_name"`
	StockCode  string `xml:"stock_code" json:"stock_code"`
	ModifyDate string `xml:"modify_date" json:"modify_date"`
}

// Listed reports whether the company has a stock code.
func (c Corp) Listed() bool { return strings.TrimSpace(c.StockCode) != "" }

// CorpRegistry resolves the identifiers users type (stock code, corp code, name)
// to OpenDART corp codes.
type CorpRegistry struct {
	byCode  map[string]Corp
	byStock map[string]Corp
	byName  map[string]Corp
}

// NewCorpRegistry indexes corps. When two entries share a name, a listed company wins.
func NewCorpRegistry(corps []Corp) *CorpRegistry {
	r := &CorpRegistry{
		byCode:  make(map[string]Corp, len(corps)),
		byStock: make(map[string]Corp),
		byName:  make(map[string]Corp),
	}
	for _, c := range corps {
		c.Code = strings.TrimSpace(c.Code)
		c.Name = strings.TrimSpace(c.Name)
		c.StockCode = strings.TrimSpace(c.StockCode)
		r.byCode[c.Code] = c
		if c.Listed() {
			r.byStock[c.StockCode] = c
		}
		if prev, ok := r.byName[c.Name]; !ok || (!prev.Listed() && c.Listed()) {
			r.byName[c.Name] = c
		}
	}
	return r
}

func (r *CorpRegistry) Len() int { return len(r.byCode) }

// Resolve looks id up as a 6-digit stock code, an 8-digit corp code, then an exact name.
func (r *CorpRegistry) Resolve(id string) (Corp, bool) {
	id = strings.TrimSpace(id)
	if c, ok := r.byStock[id]; ok {
		return c, true
	}
	if c, ok := r.byCode[id]; ok {
		return c, true
	}
	c, ok := r.byName[id]
	return c, ok
}

type corpCodeXML struct {
	List []Corp `xml:"list"`
}

type errorXML struct {
	Status  string `xml:"status"`
	Message string `xml:"message"`
}

// ParseCorpCodeZip reads the zip archive served by corpCode.xml.
func ParseCorpCodeZip(data []byte) (*CorpRegistry, error) {
	if !bytes.HasPrefix(data, []byte("PK")) {
		// Errors come back as a bare XML result instead of an archive.
		var e errorXML
		if err := xml.Unmarshal(data, &e); err == nil && e.Status != "" {
			return nil, &APIError{Status: e.Status, Message: e.Message}
		}
		return nil, fmt.Errorf("corpCode response is not a zip archive")
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open corpCode archive: %w", err)
	}
	for _, f := range zr.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		var doc corpCodeXML
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		return NewCorpRegistry(doc.List), nil
	}
	return nil, fmt.Errorf("corpCode archive has no xml file")
}

// FetchCorpCodes downloads the raw corpCode archive.
func (c *Client) FetchCorpCodes(ctx context.Context) ([]byte, error) {
	q := url.Values{}
	q.Set("crtfc_key", c.apiKey)
	return c.get(ctx, CorpCodePath, q)
}

// =============================================================================
// CORP CODE CACHE
// =============================================================================

// CorpCodeCache keeps the downloaded archive on disk; the list changes daily at most.
type CorpCodeCache struct {
	cacheDir string
	maxAge   time.Duration
	now      func() time.Time
}

// NewCorpCodeCache creates a cache under dir (defaults to .cache/dart).
func NewCorpCodeCache(dir string, maxAge time.Duration) *CorpCodeCache {
	if dir == "" {
		dir = filepath.Join(".cache", "dart")
	}
	return &CorpCodeCache{cacheDir: dir, maxAge: maxAge, now: time.Now}
}

func (c *CorpCodeCache) filePath() string {
	return filepath.Join(c.cacheDir, "corpCode.zip")
}

// Get returns the cached archive if it is younger than maxAge.
func (c *CorpCodeCache) Get() ([]byte, bool) {
	info, err := os.Stat(c.filePath())
	if err != nil {
		return nil, false
	}
	if c.maxAge > 0 && c.now().Sub(info.ModTime()) > c.maxAge {
		return nil, false
	}
	data, err := os.ReadFile(c.filePath())
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *CorpCodeCache) Set(data []byte) error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.filePath(), data, 0644)
}

// LoadRegistry returns the registry from cache, downloading it when stale.
// A stale cache is still used if the download fails.
func LoadRegistry(ctx context.Context, client *Client, cache *CorpCodeCache) (*CorpRegistry, error) {
	if data, ok := cache.Get(); ok {
		if reg, err := ParseCorpCodeZip(data); err == nil {
			return reg, nil
		}
	}

	data, err := client.FetchCorpCodes(ctx)
	if err == nil {
		reg, perr := ParseCorpCodeZip(data)
		if perr == nil {
			if werr := cache.Set(data); werr != nil {
				client.logger.Warn("failed to cache corpCode archive", zap.Error(werr))
			}
			return reg, nil
		}
		err = perr
	}

	if stale, rerr := os.ReadFile(cache.filePath()); rerr == nil {
		if reg, perr := ParseCorpCodeZip(stale); perr == nil {
			client.logger.Warn("using stale corpCode archive", zap.Error(err))
			return reg, nil
		}
	}
	return nil, fmt.Errorf("failed to load corp registry: %w", err)
}
