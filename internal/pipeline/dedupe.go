package pipeline

import (
	"fmt"
	"sort"

	"trip-pipeline/internal/model"
)

// Dedupe resolves all records sharing a trip_id into a single winner:
// the record with the maximum event_time, and on exact time ties the
// one read later from the input (larger Seq). Modeled as a pure
// grouping + reduction over the complete validated batch, so the
// outcome depends only on input order, never on validation worker
// scheduling.
//
// The caller must not invoke this until the validator has fully
// drained; the grouping needs a stable view of every record per
// trip_id.
func Dedupe(records []model.TripRecord) ([]model.TripRecord, int64) {
	winners := make(map[string]model.TripRecord, len(records))
	for _, rec := range records {
		current, seen := winners[rec.TripID]
		if !seen || laterThan(rec, current) {
			winners[rec.TripID] = rec
		}
	}

	out := make([]model.TripRecord, 0, len(winners))
	for _, rec := range winners {
		out = append(out, rec)
	}
	// Restore input order of the winners for a deterministic downstream
	// pass.
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	collapsed := int64(len(records) - len(out))
	if collapsed > 0 {
		fmt.Printf("🧹 Dedup: collapsed %d duplicate record(s) across %d trip(s)\n", collapsed, len(out))
	}
	return out, collapsed
}

// laterThan reports whether a beats b under latest-wins ordering.
func laterThan(a, b model.TripRecord) bool {
	if a.EventTime.After(b.EventTime) {
		return true
	}
	if a.EventTime.Equal(b.EventTime) {
		return a.Seq > b.Seq
	}
	return false
}
