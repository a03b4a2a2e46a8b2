package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"trip-pipeline/internal/model"
	"trip-pipeline/pkg/decimal"
	"trip-pipeline/pkg/utils"
)

// unknownGroup labels facts whose rider dimension had no match in the
// secondary aggregate.
const unknownGroup = "UNK"

// Aggregate computes exact summary statistics over the full enriched
// fact set: per business date, and optionally per (date, rider
// attribute). Sums use decimal arithmetic, rows are sorted by group
// key, so identical input reproduces byte-identical output.
func Aggregate(facts []model.EnrichedFact, groupBy string) ([]model.DailyAggregate, []model.GroupAggregate) {
	type dailyAcc struct {
		trips     int
		completed int
		riders    map[string]bool
		sumFare   decimal.Decimal
		sumDist   decimal.Decimal
	}
	daily := make(map[string]*dailyAcc)

	type groupKey struct{ date, group string }
	type groupAcc struct {
		trips int
		gmv   decimal.Decimal
	}
	groups := make(map[groupKey]*groupAcc)

	for _, fact := range facts {
		acc, ok := daily[fact.BusinessDate]
		if !ok {
			acc = &dailyAcc{riders: make(map[string]bool)}
			daily[fact.BusinessDate] = acc
		}
		acc.trips++
		if fact.Trip.Status == "completed" {
			acc.completed++
		}
		acc.riders[fact.Trip.RiderID] = true
		acc.sumFare = acc.sumFare.Add(fact.Trip.Fare)
		acc.sumDist = acc.sumDist.Add(fact.Trip.Distance)

		if groupBy != "" {
			key := groupKey{date: fact.BusinessDate, group: groupValue(fact, groupBy)}
			gacc, ok := groups[key]
			if !ok {
				gacc = &groupAcc{}
				groups[key] = gacc
			}
			gacc.trips++
			gacc.gmv = gacc.gmv.Add(fact.Trip.Fare)
		}
	}

	dailyRows := make([]model.DailyAggregate, 0, len(daily))
	for date, acc := range daily {
		avg := decimal.Zero()
		if acc.trips > 0 {
			avg = acc.sumFare.Div(decimal.FromInt64(int64(acc.trips))).Round(2)
		}
		dailyRows = append(dailyRows, model.DailyAggregate{
			Date:           date,
			TripCount:      acc.trips,
			CompletedTrips: acc.completed,
			DistinctRiders: len(acc.riders),
			SumFare:        acc.sumFare.Round(2),
			SumDistance:    acc.sumDist.Round(2),
			AvgFare:        avg,
		})
	}
	sort.Slice(dailyRows, func(i, j int) bool { return dailyRows[i].Date < dailyRows[j].Date })

	groupRows := make([]model.GroupAggregate, 0, len(groups))
	for key, acc := range groups {
		groupRows = append(groupRows, model.GroupAggregate{
			Date:  key.date,
			Group: key.group,
			Trips: acc.trips,
			GMV:   acc.gmv.Round(2),
		})
	}
	sort.Slice(groupRows, func(i, j int) bool {
		if groupRows[i].Date != groupRows[j].Date {
			return groupRows[i].Date < groupRows[j].Date
		}
		return groupRows[i].Group < groupRows[j].Group
	})

	return dailyRows, groupRows
}

func groupValue(fact model.EnrichedFact, groupBy string) string {
	if fact.Rider == nil {
		return unknownGroup
	}
	var v string
	switch groupBy {
	case "tier":
		v = fact.Rider.Tier
	default:
		v = fact.Rider.Country
	}
	if v == "" {
		return unknownGroup
	}
	return v
}

// WriteAggregates writes daily.csv and, when a secondary grouping is
// configured, daily_by_<attr>.csv under the output directory. Both
// commit via temp-then-rename like fact partitions.
func WriteAggregates(outputDir, groupBy string, daily []model.DailyAggregate, groups []model.GroupAggregate) error {
	header := []string{"date", "total_trips", "completed_trips", "distinct_riders", "sum_fare", "sum_distance", "avg_fare"}
	rows := make([][]string, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []string{
			d.Date,
			strconv.Itoa(d.TripCount),
			strconv.Itoa(d.CompletedTrips),
			strconv.Itoa(d.DistinctRiders),
			d.SumFare.String(),
			d.SumDistance.String(),
			d.AvgFare.String(),
		})
	}
	if err := writeCSVAtomic(utils.AggregatePath(outputDir, "daily.csv"), header, rows); err != nil {
		return fmt.Errorf("%w: daily aggregate: %v", ErrWriteFailure, err)
	}
	fmt.Printf("📊 Aggregates: %d daily row(s) written\n", len(daily))

	if groupBy == "" {
		return nil
	}
	gheader := []string{"date", groupBy, "trips", "gmv"}
	grows := make([][]string, 0, len(groups))
	for _, g := range groups {
		grows = append(grows, []string{g.Date, g.Group, strconv.Itoa(g.Trips), g.GMV.String()})
	}
	name := "daily_by_" + groupBy + ".csv"
	if err := writeCSVAtomic(utils.AggregatePath(outputDir, name), gheader, grows); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFailure, name, err)
	}
	fmt.Printf("📊 Aggregates: %d %s row(s) written\n", len(groups), name)
	return nil
}

// writeCSVAtomic commits a CSV file all-or-nothing via a temp file in
// the target directory.
func writeCSVAtomic(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
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
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to commit file: %w", err)
	}
	return nil
}
