package main

import (
	"fmt"
	"os"

	"trip-pipeline/internal/api"
	"trip-pipeline/internal/config"
	"trip-pipeline/internal/store"
	"trip-pipeline/pkg/router"

	_ "trip-pipeline/docs"
)

// @title Trip Pipeline API
// @version 1.0
// @description Batch trip reconciliation pipeline: validation, latest-wins dedup, rider enrichment, partitioned facts, daily aggregates.
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := store.InitDB(cfg.TrackingDB); err != nil {
		fmt.Fprintf(os.Stderr, "tracking db: %v\n", err)
		os.Exit(1)
	}

	r := router.New()
	api.RegisterRoutes(r)

	if err := r.Start(cfg.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}
