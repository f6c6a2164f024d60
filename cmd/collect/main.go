package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"dart_finstate/pkg/core/collector"
	"dart_finstate/pkg/core/config"
	"dart_finstate/pkg/core/logging"
	"dart_finstate/pkg/core/report"
	"dart_finstate/pkg/core/service"

	"go.uber.org/zap"
)

func main() {
	var (
		configPath  = flag.String("config", config.DefaultPath, "YAML config file")
		codes       = flag.String("codes", "", "comma separated stock codes, corp codes or names (default from config)")
		years       = flag.String("years", "", `business years, e.g. "2023" or "2021-2023" (default from config)`)
		reportName  = flag.String("report", "", "annual, semi-annual, first-quarter, third-quarter or an 1101x code")
		outDir      = flag.String("out", "", "output directory for the spreadsheet")
		watchlist   = flag.String("watchlist", "", "Hjson watchlist with company display names")
		apiKey      = flag.String("key", "", "OpenDART API key (overrides DART_API_KEY)")
		concurrency = flag.Int("concurrency", 0, "parallel fetches")
		summaryPath = flag.String("summary", "", "write the Markdown run summary to this file")
		dev         = flag.Bool("dev", false, "human-readable logs")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *apiKey, *reportName, *outDir, *watchlist, *concurrency)

	logger, err := logging.New(cfg.LogLevel, *dev)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *codes, *years, *summaryPath, logger); err != nil {
		logger.Error("collection aborted", zap.Error(err))
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, apiKey, reportName, outDir, watchlist string, concurrency int) {
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if reportName != "" {
		cfg.Report = reportName
	}
	if outDir != "" {
		cfg.OutputDir = outDir
	}
	if watchlist != "" {
		cfg.Watchlist = watchlist
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
}

func run(cfg *config.Config, codes, years, summaryPath string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	req, err := buildRequest(cfg, codes, years)
	if err != nil {
		return err
	}

	svc, err := service.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Printf("=== DART %s | %d companies x %d years ===\n", req.Report.Label(), len(req.Entities), len(req.Years))
	exp, err := svc.Collector.Export(ctx, req, cfg.OutputDir, nil)
	if err != nil {
		return err
	}

	for _, u := range exp.Result.Units {
		label := u.Entity.ID
		if u.Entity.Name != "" {
			label = fmt.Sprintf("%s (%s)", u.Entity.Name, u.Entity.ID)
		}
		switch u.Status {
		case collector.StatusSuccess:
			fmt.Printf("  [OK]    %s %d: %d rows\n", label, u.Year, u.Rows)
		case collector.StatusEmpty:
			fmt.Printf("  [EMPTY] %s %d: no data\n", label, u.Year)
		default:
			fmt.Printf("  [FAIL]  %s %d: %s\n", label, u.Year, u.ErrorText())
		}
	}

	if exp.Delivered() {
		fmt.Printf("Saved: %s (%d rows, %d cells repaired)\n", exp.Path, exp.Sheet.Rows, exp.Sheet.Repaired)
		for _, c := range exp.Sheet.Irreparable {
			fmt.Printf("  [WARNING] %s (%s) left as text: %q\n", c.Cell, c.Column, c.Text)
		}
	} else {
		fmt.Println("No data collected, nothing saved.")
	}

	if summaryPath != "" {
		if err := os.WriteFile(summaryPath, []byte(report.Markdown(exp)), 0644); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		fmt.Printf("Summary: %s\n", summaryPath)
	}

	fmt.Println("\n=== Done ===")
	return nil
}

func buildRequest(cfg *config.Config, codes, years string) (collector.Request, error) {
	ids := cfg.Codes
	if strings.TrimSpace(codes) != "" {
		ids = config.SplitCodes(codes)
	}
	yearList := cfg.Years
	if strings.TrimSpace(years) != "" {
		parsed, err := config.ParseYears(years)
		if err != nil {
			return collector.Request{}, err
		}
		yearList = parsed
	}
	rt, err := cfg.ReportType()
	if err != nil {
		return collector.Request{}, err
	}

	var wl []collector.Entity
	if cfg.Watchlist != "" {
		if wl, err = config.LoadWatchlist(cfg.Watchlist); err != nil {
			return collector.Request{}, err
		}
	}

	req := collector.Request{Entities: config.Entities(ids, wl), Years: yearList, Report: rt}
	return req, req.Validate()
}
