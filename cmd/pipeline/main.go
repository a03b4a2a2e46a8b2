package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"trip-pipeline/internal/config"
	"trip-pipeline/internal/model"
	"trip-pipeline/internal/pipeline"
	"trip-pipeline/internal/store"

	"github.com/google/uuid"
)

func main() {
	input := flag.String("input", "", "directory containing trips_*.csv files")
	dim := flag.String("dim", "", "rider dimension snapshot (JSON lines)")
	out := flag.String("out", "", "output directory for fact partitions and aggregates")
	date := flag.String("date", "", "target business date, YYYY-MM-DD")
	groupBy := flag.String("group-by", "", "secondary aggregate attribute (country or tier)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := store.InitDB(cfg.TrackingDB); err != nil {
		fmt.Fprintf(os.Stderr, "tracking db: %v\n", err)
		os.Exit(1)
	}

	secondary := cfg.SecondaryGroupBy
	if *groupBy != "" {
		secondary = *groupBy
	}

	spec := model.RunSpec{
		InputDir:         *input,
		DimensionPath:    *dim,
		OutputDir:        *out,
		BusinessDate:     *date,
		SecondaryGroupBy: secondary,
		Workers: model.Workers{
			Validation: cfg.ValidationWorkers,
			Join:       cfg.JoinWorkers,
			Write:      cfg.WriteWorkers,
		},
		ChannelBufferSize: cfg.ChannelBufferSize,
		RunTimeout:        cfg.RunTimeout,
	}

	runID := uuid.New().String()
	if err := store.SaveRun(runID, spec); err != nil {
		fmt.Fprintf(os.Stderr, "save run: %v\n", err)
		os.Exit(1)
	}

	summary, runErr := pipeline.Run(context.Background(), runID, spec)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(summary)

	if runErr != nil {
		os.Exit(1)
	}
}
