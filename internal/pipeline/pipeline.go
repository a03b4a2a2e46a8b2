package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trip-pipeline/internal/metrics"
	"trip-pipeline/internal/model"
	"trip-pipeline/internal/store"
	"trip-pipeline/pkg/utils"
)

// Run executes one closed batch for one business date: read, validate,
// dedupe, join, write partitions, aggregate. It returns the run
// summary in every case; the error is non-nil only for fatal failures
// (unavailable source or dimension, write failure, bad configuration,
// timeout). Per-record rejects never fail the run.
func Run(ctx context.Context, runID string, spec model.RunSpec) (model.RunSummary, error) {
	start := time.Now()
	fmt.Printf("🚀 Starting pipeline run %s for business date %s\n", runID, spec.BusinessDate)

	tracker := NewRunTracker(runID, spec.BusinessDate)

	fail := func(stage string, err error) (model.RunSummary, error) {
		tracker.Fail(stage, err)
		summary := tracker.Summary()
		store.SaveRunSummary(runID, summary)
		metrics.RunsTotal.WithLabelValues(model.StateFailed).Inc()
		return summary, err
	}

	if err := spec.Validate(); err != nil {
		return fail(model.StateInit, fmt.Errorf("invalid run spec: %w", err))
	}

	timeout := utils.ParseDuration(spec.RunTimeout, 5*time.Minute)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bufSize := spec.ChannelBufferSize
	if bufSize <= 0 {
		bufSize = 1000
	}
	validationWorkers := spec.Workers.Validation
	if validationWorkers <= 0 {
		validationWorkers = 3
	}

	// The dimension snapshot loads while trips stream in; the joiner
	// needs it only after dedup.
	type dimResult struct {
		dims map[string]model.RiderDimension
		err  error
	}
	dimCh := make(chan dimResult, 1)
	go func() {
		dims, err := LoadRiderDimension(spec.DimensionPath)
		dimCh <- dimResult{dims: dims, err: err}
	}()

	rawCh := make(chan model.RawRecord, bufSize)
	validCh := make(chan model.TripRecord, bufSize)
	rejectCh := make(chan model.RejectedRecord, bufSize)

	// --- READING ---
	tracker.StartStage(model.StateReading)
	var readCount int64
	var readErr error
	var wgRead sync.WaitGroup
	wgRead.Add(1)
	go func() {
		defer wgRead.Done()
		defer close(rawCh)
		readCount, readErr = ReadTrips(ctx, spec, rawCh, rejectCh)
	}()

	// --- VALIDATING ---
	tracker.StartStage(model.StateValidating)
	ValidateRecords(ctx, rawCh, validCh, rejectCh, validationWorkers)

	var rejects []model.RejectedRecord
	var wgRejects sync.WaitGroup
	wgRejects.Add(1)
	go func() {
		defer wgRejects.Done()
		for r := range rejectCh {
			rejects = append(rejects, r)
		}
	}()

	// Drain the validator. The dedup grouping below needs the complete,
	// stable set of valid records, so this is the synchronization
	// barrier of the run.
	var valid []model.TripRecord
	for rec := range validCh {
		valid = append(valid, rec)
	}
	wgRead.Wait()
	close(rejectCh)
	wgRejects.Wait()

	if readErr != nil {
		return fail(model.StateReading, readErr)
	}
	if err := ctx.Err(); err != nil {
		return fail(model.StateValidating, fmt.Errorf("run aborted: %w", err))
	}
	tracker.EndStage(model.StateReading, readCount)
	tracker.EndStage(model.StateValidating, int64(len(valid)))
	tracker.AddRejects(rejects)

	// --- DEDUPING ---
	tracker.StartStage(model.StateDeduping)
	deduped, collapsed := Dedupe(valid)
	tracker.EndStage(model.StateDeduping, int64(len(deduped)))

	// --- JOINING ---
	tracker.StartStage(model.StateJoining)
	dim := <-dimCh
	if dim.err != nil {
		return fail(model.StateJoining, dim.err)
	}
	joinWorkers := spec.Workers.Join
	if joinWorkers <= 0 {
		joinWorkers = 3
	}
	facts, joinMisses := JoinRiders(ctx, deduped, dim.dims, joinWorkers)
	if err := ctx.Err(); err != nil {
		return fail(model.StateJoining, fmt.Errorf("run aborted: %w", err))
	}
	tracker.EndStage(model.StateJoining, int64(len(facts)))

	// --- WRITING ---
	tracker.StartStage(model.StateWriting)
	writeWorkers := spec.Workers.Write
	if writeWorkers <= 0 {
		writeWorkers = 2
	}
	partitions, writeErr := WritePartitions(ctx, facts, spec.OutputDir, writeWorkers)
	tracker.SetCounts(readCount, int64(len(valid)), collapsed, joinMisses, partitions, 0)
	if writeErr != nil {
		return fail(model.StateWriting, writeErr)
	}
	tracker.EndStage(model.StateWriting, int64(len(facts)))

	// --- AGGREGATING ---
	tracker.StartStage(model.StateAggregating)
	daily, groups := Aggregate(facts, spec.SecondaryGroupBy)
	if err := WriteAggregates(spec.OutputDir, spec.SecondaryGroupBy, daily, groups); err != nil {
		return fail(model.StateAggregating, err)
	}
	aggRows := len(daily) + len(groups)
	for _, d := range daily {
		store.SaveAggregateRow(runID, d.Date, "daily", d)
	}
	for _, g := range groups {
		store.SaveAggregateRow(runID, g.Date, "daily_by_"+spec.SecondaryGroupBy, g)
	}
	tracker.EndStage(model.StateAggregating, int64(aggRows))

	// --- DONE ---
	store.SaveRejectedRecords(runID, rejects)
	tracker.SetCounts(readCount, int64(len(valid)), collapsed, joinMisses, partitions, aggRows)
	tracker.Complete()

	metrics.RecordsRead.Add(float64(readCount))
	metrics.RecordsValid.Add(float64(len(valid)))
	for _, r := range rejects {
		metrics.RecordsRejected.WithLabelValues(r.Reason).Inc()
	}
	metrics.DuplicatesCollapsed.Add(float64(collapsed))
	metrics.JoinMisses.Add(float64(joinMisses))
	metrics.PartitionsWritten.Add(float64(partitions))
	metrics.AggregateRows.Add(float64(aggRows))
	metrics.RunsTotal.WithLabelValues(model.StateDone).Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())

	summary := tracker.Summary()
	store.SaveRunSummary(runID, summary)

	fmt.Printf("🏁 Run %s completed in %v: %d read, %d valid, %d rejected, %d partition(s)\n",
		runID, time.Since(start).Round(time.Millisecond), readCount, len(valid), len(rejects), partitions)
	return summary, nil
}
