package config

import (
	"encoding/json"
	"net/http"

	"dart_finstate/pkg/core/collector"
	coreConfig "dart_finstate/pkg/core/config"
	"dart_finstate/pkg/core/dart"
)

type ReportOption struct {
	Name  dart.ReportType `json:"name"`
	Code  string          `json:"code"`
	Label string          `json:"label"`
}

type Response struct {
	Reports   []ReportOption     `json:"reports"`
	Defaults  Defaults           `json:"defaults"`
	Watchlist []collector.Entity `json:"watchlist"`
}

type Defaults struct {
	Codes  []string `json:"codes"`
	Years  []int    `json:"years"`
	Report string   `json:"report"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Config    *coreConfig.Config
	Watchlist []collector.Entity
}

// NewHandler creates a new config handler
func NewHandler(cfg *coreConfig.Config, watchlist []collector.Entity) *Handler {
	return &Handler{
		Config:    cfg,
		Watchlist: watchlist,
	}
}

// HandleConfig handles GET /api/config: the report choices and the form defaults.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	resp := Response{
		Defaults: Defaults{
			Codes:  h.Config.Codes,
			Years:  h.Config.Years,
			Report: h.Config.Report,
		},
		Watchlist: h.Watchlist,
	}
	if resp.Watchlist == nil {
		resp.Watchlist = []collector.Entity{}
	}
	for _, rt := range dart.ReportTypes() {
		resp.Reports = append(resp.Reports, ReportOption{Name: rt, Code: rt.Code(), Label: rt.Label()})
	}
	json.NewEncoder(w).Encode(resp)
}
