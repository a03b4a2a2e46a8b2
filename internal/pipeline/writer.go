package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"trip-pipeline/internal/model"
	"trip-pipeline/pkg/utils"
)

var factColumns = []string{
	"trip_id", "rider_id", "event_time", "fare_amount", "distance", "status",
	"business_date", "rider_name", "rider_tier", "rider_country", "rider_signup_date",
	"extra",
}

// WritePartitions groups facts by business_date and writes each
// partition as a single atomic unit: rows sorted by trip_id into a
// temp file, then renamed over facts/date=<d>/trips.csv. Previous
// partition contents are fully replaced, never appended to, so
// re-runs for the same date are idempotent.
//
// Partitions are independent and written in parallel. A failed
// partition does not stop the others; all failures are reported
// together and are fatal for the run.
func WritePartitions(ctx context.Context, facts []model.EnrichedFact, outputDir string, workerCount int) (int, error) {
	partitions := make(map[string][]model.EnrichedFact)
	for _, fact := range facts {
		partitions[fact.BusinessDate] = append(partitions[fact.BusinessDate], fact)
	}

	if workerCount < 1 {
		workerCount = 1
	}
	retryCfg := defaultRetryConfig()

	dates := make(chan string, len(partitions))
	var wg sync.WaitGroup
	wg.Add(workerCount)

	var mu sync.Mutex
	var written int
	var failures []error

	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for date := range dates {
				rows := partitions[date]
				err := withRetry(ctx, retryCfg, func() error {
					return writePartition(outputDir, date, rows)
				})
				mu.Lock()
				if err != nil {
					failures = append(failures, fmt.Errorf("partition %s: %w", date, err))
				} else {
					written++
					fmt.Printf("💾 Partition date=%s: %d fact(s) written\n", date, len(rows))
				}
				mu.Unlock()
			}
		}()
	}

	for date := range partitions {
		dates <- date
	}
	close(dates)
	wg.Wait()

	if len(failures) > 0 {
		return written, fmt.Errorf("%w: %d of %d partition(s) failed, first: %v",
			ErrWriteFailure, len(failures), len(partitions), failures[0])
	}
	return written, nil
}

// writePartition commits one partition all-or-nothing. The temp file
// lives in the partition directory so the rename stays on one
// filesystem.
func writePartition(outputDir, date string, facts []model.EnrichedFact) error {
	dir := utils.PartitionDir(outputDir, date)
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}

	sorted := make([]model.EnrichedFact, len(facts))
	copy(sorted, facts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Trip.TripID < sorted[j].Trip.TripID })

	tmp, err := os.CreateTemp(dir, ".trips-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(factColumns); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, fact := range sorted {
		if err := writer.Write(factRow(fact)); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, "trips.csv")); err != nil {
		return fmt.Errorf("failed to commit partition: %w", err)
	}
	return nil
}

// factRow renders one fact as CSV cells. Unmatched riders produce
// empty dimension cells (explicit nulls). Passthrough fields are
// serialized as canonical JSON so the column set stays fixed.
func factRow(fact model.EnrichedFact) []string {
	trip := fact.Trip
	row := []string{
		trip.TripID,
		trip.RiderID,
		trip.EventTime.UTC().Format(time.RFC3339),
		trip.Fare.String(),
		trip.Distance.String(),
		trip.Status,
		fact.BusinessDate,
	}
	if fact.Rider != nil {
		row = append(row, fact.Rider.Name, fact.Rider.Tier, fact.Rider.Country, fact.Rider.SignupDate)
	} else {
		row = append(row, "", "", "", "")
	}
	if len(trip.Extra) > 0 {
		// json.Marshal sorts map keys, keeping the cell deterministic.
		extraJSON, _ := json.Marshal(trip.Extra)
		row = append(row, string(extraJSON))
	} else {
		row = append(row, "")
	}
	return row
}
