package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"dart_finstate/pkg/api/collect"
	"dart_finstate/pkg/api/config"
	"dart_finstate/pkg/core/collector"
	coreConfig "dart_finstate/pkg/core/config"
	"dart_finstate/pkg/core/logging"
	"dart_finstate/pkg/core/service"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", coreConfig.DefaultPath, "YAML config file")
	dev := flag.Bool("dev", false, "human-readable logs")
	flag.Parse()

	cfg, err := coreConfig.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, *dev)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var watchlist []collector.Entity
	if cfg.Watchlist != "" {
		if watchlist, err = coreConfig.LoadWatchlist(cfg.Watchlist); err != nil {
			fmt.Printf("[WARNING] %v\n", err)
		} else {
			fmt.Printf("[WATCHLIST] Loaded %d companies from %s\n", len(watchlist), cfg.Watchlist)
		}
	}

	svc, err := service.New(context.Background(), cfg, logger)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	configHandler := config.NewHandler(cfg, watchlist)
	http.HandleFunc("/api/config", configHandler.HandleConfig)

	collectHandler := collect.NewHandler(svc.Collector, cfg, watchlist, collect.DefaultRunTTL, logger)
	http.HandleFunc("/api/collect", collectHandler.HandleCollect)
	http.HandleFunc("/api/collect/download", collectHandler.HandleDownload)
	http.HandleFunc("/api/collect/report", collectHandler.HandleReport)

	fmt.Printf("API server starting on %s...\n", cfg.Addr)
	fmt.Println("  - GET  /api/config")
	fmt.Println("  - POST /api/collect")
	fmt.Println("  - GET  /api/collect/download?run=<id>")
	fmt.Println("  - GET  /api/collect/report?run=<id>")

	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		logger.Error("server stopped", zap.Error(err))
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
