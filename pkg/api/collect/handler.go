// Package collect provides HTTP API handlers for running DART collections and
// downloading the resulting spreadsheets.
package collect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"dart_finstate/pkg/core/collector"
	"dart_finstate/pkg/core/config"
	"dart_finstate/pkg/core/dart"
	"dart_finstate/pkg/core/report"
	"dart_finstate/pkg/core/sheet"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefaultRunTTL is how long a finished run stays downloadable.
const DefaultRunTTL = 30 * time.Minute

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Request is the body of POST /api/collect. Empty fields take the configured defaults.
type Request struct {
	Codes  []string `json:"codes"`
	Years  []int    `json:"years"`
	Report string   `json:"report"`
}

// Response summarizes a finished run.
type Response struct {
	RunID       string                  `json:"run_id"`
	Report      dart.ReportType         `json:"report"`
	Years       []int                   `json:"years"`
	Rows        int                     `json:"rows"`
	Success     int                     `json:"success"`
	Empty       int                     `json:"empty"`
	Failed      int                     `json:"failed"`
	Units       []collector.UnitResult  `json:"units"`
	FileName    string                  `json:"file_name,omitempty"`
	DownloadURL string                  `json:"download_url,omitempty"`
	ReportURL   string                  `json:"report_url"`
	Repaired    int                     `json:"repaired"`
	Irreparable []sheet.IrreparableCell `json:"irreparable,omitempty"`
}

// run is what the cache keeps per run id.
type run struct {
	export *collector.Export
	dir    string
}

// Handler holds dependencies for collection endpoints
type Handler struct {
	Collector *collector.Collector
	Writer    *sheet.Writer
	Config    *config.Config
	Watchlist []collector.Entity

	runs   *cache.Cache
	logger *zap.Logger
}

// NewHandler creates a handler that writes artifacts under cfg.OutputDir. Runs expire
// after ttl and their directory is removed with them.
func NewHandler(c *collector.Collector, cfg *config.Config, watchlist []collector.Entity, ttl time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	runs := cache.New(ttl, 2*ttl)
	runs.OnEvicted(func(id string, v interface{}) {
		if r, ok := v.(*run); ok {
			os.RemoveAll(r.dir)
		}
	})
	return &Handler{
		Collector: c,
		Writer:    sheet.NewWriter(logger),
		Config:    cfg,
		Watchlist: watchlist,
		runs:      runs,
		logger:    logger,
	}
}

func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// buildRequest fills the gaps in req from the config.
func (h *Handler) buildRequest(req Request) (collector.Request, error) {
	codes := req.Codes
	if len(codes) == 0 {
		codes = h.Config.Codes
	}
	years := req.Years
	if len(years) == 0 {
		years = h.Config.Years
	}
	reportName := req.Report
	if reportName == "" {
		reportName = h.Config.Report
	}
	rt, err := dart.ParseReportType(reportName)
	if err != nil {
		return collector.Request{}, err
	}
	out := collector.Request{Entities: config.Entities(codes, h.Watchlist), Years: years, Report: rt}
	return out, out.Validate()
}

// HandleCollect handles POST /api/collect
func (h *Handler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	req, err := h.buildRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dir := filepath.Join(h.Config.OutputDir, "runs", uuid.New().String())
	exp, err := h.Collector.Export(r.Context(), req, dir, h.Writer)
	if err != nil {
		h.logger.Error("collection failed", zap.Error(err))
		os.RemoveAll(dir)
		http.Error(w, fmt.Sprintf("collection failed: %v", err), http.StatusInternalServerError)
		return
	}
	h.runs.SetDefault(exp.Result.RunID, &run{export: exp, dir: dir})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newResponse(exp))
}

func newResponse(exp *collector.Export) Response {
	res := exp.Result
	success, empty, failed := res.Partition()
	resp := Response{
		RunID:     res.RunID,
		Report:    res.Request.Report,
		Years:     res.Request.Years,
		Rows:      res.Dataset.Len(),
		Success:   len(success),
		Empty:     len(empty),
		Failed:    len(failed),
		Units:     res.Units,
		ReportURL: "/api/collect/report?run=" + res.RunID,
	}
	if exp.Delivered() {
		resp.FileName = filepath.Base(exp.Path)
		resp.DownloadURL = "/api/collect/download?run=" + res.RunID
	}
	if exp.Sheet != nil {
		resp.Repaired = exp.Sheet.Repaired
		resp.Irreparable = exp.Sheet.Irreparable
	}
	return resp
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*run, bool) {
	id := r.URL.Query().Get("run")
	if id == "" {
		http.Error(w, "run parameter required", http.StatusBadRequest)
		return nil, false
	}
	v, found := h.runs.Get(id)
	if !found {
		http.Error(w, "run not found or expired", http.StatusNotFound)
		return nil, false
	}
	return v.(*run), true
}

// HandleDownload handles GET /api/collect/download?run=<id>
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "GET, OPTIONS")
	rn, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !rn.export.Delivered() {
		http.Error(w, "run produced no spreadsheet", http.StatusNotFound)
		return
	}

	f, err := os.Open(rn.export.Path)
	if err != nil {
		http.Error(w, "spreadsheet no longer available", http.StatusGone)
		return
	}
	defer f.Close()

	name := filepath.Base(rn.export.Path)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeContent(w, r, name, rn.export.Result.FinishedAt, f)
}

// HandleReport handles GET /api/collect/report?run=<id>
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	setCORS(w, "GET, OPTIONS")
	rn, ok := h.lookup(w, r)
	if !ok {
		return
	}

	html, err := report.RenderHTML(report.Markdown(rn.export))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>DART run %s</title></head><body>\n%s</body></html>\n",
		rn.export.Result.RunID, html)
}
