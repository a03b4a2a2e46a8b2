package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trip-pipeline/internal/model"
	"trip-pipeline/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ridersJSONL = `{"rider_id":"R1","name":"Ada","tier":"gold","country":"PT","signup_date":"2023-01-15"}
{"rider_id":"R2","name":"Bo","tier":"silver","country":"ES","signup_date":"2023-06-01"}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// fullSpec lays out a realistic batch in temp dirs: a duplicated trip,
// a trip with no dimension match, and one invalid row.
func fullSpec(t *testing.T) model.RunSpec {
	t.Helper()
	inputDir := t.TempDir()
	dimPath := filepath.Join(t.TempDir(), "riders.jsonl")
	outputDir := t.TempDir()

	writeFile(t, filepath.Join(inputDir, "trips_2024-03-01.csv"),
		"trip_id,rider_id,event_time,fare_amount,distance,status\n"+
			"T1,R1,2024-03-01T10:00:00Z,5.00,2.0,completed\n"+
			"T1,R1,2024-03-01T10:05:00Z,5.50,2.1,completed\n"+
			"T2,R2,2024-03-01T11:00:00Z,7.25,3.0,completed\n"+
			"T3,R404,2024-03-01T12:00:00Z,3.00,1.0,cancelled\n"+
			"TBAD,R1,2024-03-01T13:00:00Z,-2.00,1.0,completed\n")
	writeFile(t, dimPath, ridersJSONL)

	return model.RunSpec{
		InputDir:         inputDir,
		DimensionPath:    dimPath,
		OutputDir:        outputDir,
		BusinessDate:     "2024-03-01",
		SecondaryGroupBy: "country",
	}
}

func TestRunEndToEnd(t *testing.T) {
	spec := fullSpec(t)

	summary, err := Run(context.Background(), "run-e2e", spec)
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, summary.State)
	assert.Equal(t, int64(5), summary.RecordsRead)
	assert.Equal(t, int64(4), summary.RecordsValid)
	assert.Equal(t, int64(1), summary.RecordsRejected)
	assert.Equal(t, map[string]int64{model.ReasonNegativeValue: 1}, summary.RejectedByReason)
	assert.Equal(t, int64(1), summary.DuplicatesCollapsed)
	assert.Equal(t, int64(1), summary.JoinMisses)
	assert.Equal(t, 1, summary.PartitionsWritten)
	assert.Equal(t, 4, summary.AggregateRowsWritten) // 1 daily + 3 country rows
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	partition := readPartition(t, spec.OutputDir, "2024-03-01")
	lines := strings.Split(strings.TrimSpace(partition), "\n")
	require.Len(t, lines, 4) // header + 3 facts
	// The later T1 event wins the dedup, enriched with R1's tier.
	assert.Contains(t, lines[1], "T1,R1,2024-03-01T10:05:00Z,5.50")
	assert.Contains(t, lines[1], "gold")
	assert.True(t, strings.HasPrefix(lines[2], "T2,"))
	assert.True(t, strings.HasPrefix(lines[3], "T3,"))
	// The unmatched rider still ships, with empty dimension cells.
	assert.Contains(t, lines[3], ",,,,")
	assert.NotContains(t, partition, "TBAD")

	daily, err := os.ReadFile(utils.AggregatePath(spec.OutputDir, "daily.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"date,total_trips,completed_trips,distinct_riders,sum_fare,sum_distance,avg_fare\n"+
			"2024-03-01,3,2,3,15.75,6.10,5.25\n",
		string(daily))

	byCountry, err := os.ReadFile(utils.AggregatePath(spec.OutputDir, "daily_by_country.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"date,country,trips,gmv\n"+
			"2024-03-01,ES,1,7.25\n"+
			"2024-03-01,PT,1,5.50\n"+
			"2024-03-01,UNK,1,3.00\n",
		string(byCountry))
}

func TestRunIdempotentRerun(t *testing.T) {
	spec := fullSpec(t)

	first, err := Run(context.Background(), "run-a", spec)
	require.NoError(t, err)
	p1, _ := os.ReadFile(filepath.Join(utils.PartitionDir(spec.OutputDir, "2024-03-01"), "trips.csv"))
	d1, _ := os.ReadFile(utils.AggregatePath(spec.OutputDir, "daily.csv"))
	g1, _ := os.ReadFile(utils.AggregatePath(spec.OutputDir, "daily_by_country.csv"))

	second, err := Run(context.Background(), "run-b", spec)
	require.NoError(t, err)
	p2, _ := os.ReadFile(filepath.Join(utils.PartitionDir(spec.OutputDir, "2024-03-01"), "trips.csv"))
	d2, _ := os.ReadFile(utils.AggregatePath(spec.OutputDir, "daily.csv"))
	g2, _ := os.ReadFile(utils.AggregatePath(spec.OutputDir, "daily_by_country.csv"))

	assert.Equal(t, string(p1), string(p2))
	assert.Equal(t, string(d1), string(d2))
	assert.Equal(t, string(g1), string(g2))
	assert.Equal(t, first.RecordsValid, second.RecordsValid)
	assert.Equal(t, first.DuplicatesCollapsed, second.DuplicatesCollapsed)
}

func TestRunWatermarkSkipsFutureFiles(t *testing.T) {
	spec := fullSpec(t)
	writeFile(t, filepath.Join(spec.InputDir, "trips_2024-03-02.csv"),
		"trip_id,rider_id,event_time,fare_amount,distance,status\n"+
			"TFUT,R1,2024-03-02T09:00:00Z,9.99,1.0,completed\n")

	summary, err := Run(context.Background(), "run-wm", spec)
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.RecordsRead)
	assert.NotContains(t, readPartition(t, spec.OutputDir, "2024-03-01"), "TFUT")
	assert.NoFileExists(t, filepath.Join(utils.PartitionDir(spec.OutputDir, "2024-03-02"), "trips.csv"))
}

func TestRunAllRecordsRejectedStillCompletes(t *testing.T) {
	spec := fullSpec(t)
	writeFile(t, filepath.Join(spec.InputDir, "trips_2024-03-01.csv"),
		"trip_id,rider_id,event_time,fare_amount,distance,status\n"+
			"T1,R1,not-a-time,5.00,1.0,completed\n"+
			",R1,2024-03-01T10:00:00Z,5.00,1.0,completed\n")

	summary, err := Run(context.Background(), "run-rej", spec)
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, summary.State)
	assert.Equal(t, int64(2), summary.RecordsRead)
	assert.Equal(t, int64(0), summary.RecordsValid)
	assert.Equal(t, int64(2), summary.RecordsRejected)
	assert.Equal(t, 0, summary.PartitionsWritten)

	// Aggregates still commit, header-only.
	daily, err := os.ReadFile(utils.AggregatePath(spec.OutputDir, "daily.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date,total_trips,completed_trips,distinct_riders,sum_fare,sum_distance,avg_fare\n", string(daily))
}

func TestRunFailsWhenNoInputFiles(t *testing.T) {
	spec := fullSpec(t)
	spec.InputDir = t.TempDir()

	summary, err := Run(context.Background(), "run-noin", spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, model.StateFailed, summary.State)
	assert.Equal(t, model.StateReading, summary.FailedStage)
	assert.NotEmpty(t, summary.FatalError)
}

func TestRunFailsWhenDimensionMissing(t *testing.T) {
	spec := fullSpec(t)
	spec.DimensionPath = filepath.Join(t.TempDir(), "nope.jsonl")

	summary, err := Run(context.Background(), "run-nodim", spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionUnavailable)
	assert.Equal(t, model.StateFailed, summary.State)
	// The joiner is what needs the dimension; the failure is reported
	// under that stage, not under reading.
	assert.Equal(t, model.StateJoining, summary.FailedStage)
}

func TestRunFailsOnInvalidSpec(t *testing.T) {
	spec := fullSpec(t)
	spec.BusinessDate = "03/01/2024"

	summary, err := Run(context.Background(), "run-badspec", spec)
	require.Error(t, err)
	assert.Equal(t, model.StateFailed, summary.State)
	assert.Equal(t, model.StateInit, summary.FailedStage)
}

func TestRunHonorsCancelledContext(t *testing.T) {
	spec := fullSpec(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := Run(ctx, "run-cancel", spec)
	require.Error(t, err)
	assert.Equal(t, model.StateFailed, summary.State)
	// The cancelled batch must not publish partitions.
	assert.NoFileExists(t, filepath.Join(utils.PartitionDir(spec.OutputDir, "2024-03-01"), "trips.csv"))
}
