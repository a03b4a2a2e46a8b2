package model

import (
	"fmt"
	"time"
)

// Pipeline run states. A run walks init → reading → validating →
// deduping → joining → writing → aggregating → done; failed is
// terminal and reachable from any stage on a fatal error.
const (
	StateInit        = "init"
	StateReading     = "reading"
	StateValidating  = "validating"
	StateDeduping    = "deduping"
	StateJoining     = "joining"
	StateWriting     = "writing"
	StateAggregating = "aggregating"
	StateDone        = "done"
	StateFailed      = "failed"
)

// Workers defines worker counts per parallel stage.
type Workers struct {
	Validation int `json:"validation" koanf:"validation"`
	Join       int `json:"join" koanf:"join"`
	Write      int `json:"write" koanf:"write"`
}

// RunSpec is the configuration of one pipeline invocation: one closed
// batch for one business date.
type RunSpec struct {
	// InputDir is scanned for trips_*.csv files whose date suffix is at
	// or before BusinessDate. Sources, when set, lists explicit file
	// paths or HTTP URLs instead.
	InputDir string   `json:"inputDir"`
	Sources  []string `json:"sources,omitempty"`

	// DimensionPath locates the rider dimension snapshot (JSON lines).
	DimensionPath string `json:"dimensionPath"`

	// OutputDir receives facts/date=<d>/ partitions and aggregate files.
	OutputDir string `json:"outputDir"`

	// BusinessDate is the target date of the batch, YYYY-MM-DD.
	BusinessDate string `json:"businessDate"`

	// SecondaryGroupBy selects the rider attribute for the secondary
	// aggregate ("country" or "tier"). Empty disables it.
	SecondaryGroupBy string `json:"secondaryGroupBy,omitempty"`

	Workers           Workers `json:"workers"`
	ChannelBufferSize int     `json:"channelBufferSize"`
	RunTimeout        string  `json:"runTimeout"`
}

// Validate checks the parts of the spec that make a run impossible.
// Configuration errors are fatal before any stage starts.
func (s RunSpec) Validate() error {
	if s.InputDir == "" && len(s.Sources) == 0 {
		return fmt.Errorf("inputDir or sources is required")
	}
	if s.DimensionPath == "" {
		return fmt.Errorf("dimensionPath is required")
	}
	if s.OutputDir == "" {
		return fmt.Errorf("outputDir is required")
	}
	if s.BusinessDate == "" {
		return fmt.Errorf("businessDate is required")
	}
	if _, err := time.Parse("2006-01-02", s.BusinessDate); err != nil {
		return fmt.Errorf("businessDate must be YYYY-MM-DD: %w", err)
	}
	switch s.SecondaryGroupBy {
	case "", "country", "tier":
	default:
		return fmt.Errorf("secondaryGroupBy must be country or tier, got %q", s.SecondaryGroupBy)
	}
	return nil
}

// RunSummary is the exposed outcome of one run: final state plus the
// full per-stage counts, reported whether or not records were rejected.
type RunSummary struct {
	RunID        string `json:"run_id"`
	BusinessDate string `json:"business_date"`
	State        string `json:"state"`
	FailedStage  string `json:"failed_stage,omitempty"`
	FatalError   string `json:"fatal_error,omitempty"`

	RecordsRead          int64            `json:"records_read"`
	RecordsValid         int64            `json:"records_valid"`
	RecordsRejected      int64            `json:"records_rejected"`
	RejectedByReason     map[string]int64 `json:"rejected_by_reason,omitempty"`
	DuplicatesCollapsed  int64            `json:"duplicates_collapsed"`
	JoinMisses           int64            `json:"join_misses"`
	PartitionsWritten    int              `json:"partitions_written"`
	AggregateRowsWritten int              `json:"aggregate_rows_written"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}
