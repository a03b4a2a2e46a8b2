package pipeline

import (
	"fmt"
	"sync"
	"time"

	"trip-pipeline/internal/model"
	"trip-pipeline/internal/store"
)

// RunTracker accumulates the run summary and persists stage
// transitions. Counts are exposed through Summary; the store keeps the
// durable trail.
type RunTracker struct {
	runID string

	mu         sync.Mutex
	summary    model.RunSummary
	stageStart map[string]time.Time
}

func NewRunTracker(runID, businessDate string) *RunTracker {
	return &RunTracker{
		runID: runID,
		summary: model.RunSummary{
			RunID:            runID,
			BusinessDate:     businessDate,
			State:            model.StateInit,
			RejectedByReason: make(map[string]int64),
			StartedAt:        time.Now().UTC(),
		},
		stageStart: make(map[string]time.Time),
	}
}

// StartStage transitions the run into a stage and records it.
func (t *RunTracker) StartStage(stage string) {
	now := time.Now().UTC()
	t.mu.Lock()
	t.summary.State = stage
	t.stageStart[stage] = now
	t.mu.Unlock()

	store.UpdateRunStatus(t.runID, stage)
	store.SaveStageProgress(t.runID, stage, "started", &now, nil, 0)
}

// EndStage marks a stage complete with the records it handled.
func (t *RunTracker) EndStage(stage string, records int64) {
	now := time.Now().UTC()
	t.mu.Lock()
	start := t.stageStart[stage]
	t.mu.Unlock()

	store.SaveStageProgress(t.runID, stage, "completed", &start, &now, records)
	store.SaveRunLog(t.runID, stage, "info", "stage completed", map[string]interface{}{
		"records":     records,
		"duration_ms": now.Sub(start).Milliseconds(),
	})
}

// Fail marks the run failed at the given stage with the fatal reason.
func (t *RunTracker) Fail(stage string, err error) {
	now := time.Now().UTC()
	t.mu.Lock()
	t.summary.State = model.StateFailed
	t.summary.FailedStage = stage
	t.summary.FatalError = err.Error()
	t.summary.FinishedAt = now
	t.summary.DurationMS = now.Sub(t.summary.StartedAt).Milliseconds()
	t.mu.Unlock()

	store.UpdateRunStatus(t.runID, model.StateFailed)
	store.SaveRunError(t.runID, stage, err)
	fmt.Printf("❌ Run %s failed at %s: %v\n", t.runID, stage, err)
}

// Complete marks the run done.
func (t *RunTracker) Complete() {
	now := time.Now().UTC()
	t.mu.Lock()
	t.summary.State = model.StateDone
	t.summary.FinishedAt = now
	t.summary.DurationMS = now.Sub(t.summary.StartedAt).Milliseconds()
	t.mu.Unlock()

	store.UpdateRunStatus(t.runID, model.StateDone)
}

// AddRejects folds quarantined records into the by-reason counts.
func (t *RunTracker) AddRejects(rejects []model.RejectedRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.RecordsRejected += int64(len(rejects))
	for _, r := range rejects {
		t.summary.RejectedByReason[r.Reason]++
	}
}

// SetCounts records the per-stage totals exposed in the run summary.
func (t *RunTracker) SetCounts(read, valid, collapsed, joinMisses int64, partitions, aggRows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.RecordsRead = read
	t.summary.RecordsValid = valid
	t.summary.DuplicatesCollapsed = collapsed
	t.summary.JoinMisses = joinMisses
	t.summary.PartitionsWritten = partitions
	t.summary.AggregateRowsWritten = aggRows
}

// Summary returns a copy of the current summary.
func (t *RunTracker) Summary() model.RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.summary
	s.RejectedByReason = make(map[string]int64, len(t.summary.RejectedByReason))
	for k, v := range t.summary.RejectedByReason {
		s.RejectedByReason[k] = v
	}
	return s
}
