package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"trip-pipeline/internal/model"
	"trip-pipeline/pkg/decimal"
)

var requiredFields = []string{"trip_id", "rider_id", "event_time", "fare_amount", "distance", "status"}

// eventTimeLayouts are tried in order for string timestamps. All parse
// into UTC; integer input is taken as epoch seconds.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ValidateRecords checks raw records against the trip schema with a
// worker pool. Valid records go to out, failures go to rejects with
// the reason of the first failing check (fail-fast per record, never
// per batch). Closes out once all workers drain; rejects stays open,
// the orchestrator owns it.
func ValidateRecords(
	ctx context.Context,
	in <-chan model.RawRecord,
	out chan<- model.TripRecord,
	rejects chan<- model.RejectedRecord,
	workerCount int,
) {
	var wg sync.WaitGroup
	wg.Add(workerCount)

	var validCount, invalidCount int64
	var mu sync.Mutex

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			defer wg.Done()
			workerValid := 0
			workerInvalid := 0

			for rec := range in {
				select {
				case <-ctx.Done():
					return
				default:
				}

				trip, reject := validateRecord(rec)
				if reject != nil {
					workerInvalid++
					select {
					case <-ctx.Done():
						return
					case rejects <- *reject:
					}
					continue
				}

				select {
				case <-ctx.Done():
					return
				case out <- trip:
					workerValid++
				}
			}

			mu.Lock()
			validCount += int64(workerValid)
			invalidCount += int64(workerInvalid)
			mu.Unlock()
		}(i)
	}

	go func() {
		wg.Wait()
		mu.Lock()
		fmt.Printf("🔍 Validation Summary: %d valid, %d rejected\n", validCount, invalidCount)
		mu.Unlock()
		close(out)
	}()
}

// validateRecord applies the schema checks in a fixed order and stops
// at the first failure.
func validateRecord(rec model.RawRecord) (model.TripRecord, *model.RejectedRecord) {
	reject := func(reason, detail string) (model.TripRecord, *model.RejectedRecord) {
		source, _ := rec[model.KeySource].(string)
		line, _ := rec[model.KeyLine].(int)
		return model.TripRecord{}, &model.RejectedRecord{
			Source: source,
			Line:   line,
			Reason: reason,
			Detail: detail,
			Raw:    rec,
		}
	}

	for _, field := range requiredFields {
		v, ok := rec[field]
		if !ok {
			return reject(model.ReasonMissingField, fmt.Sprintf("missing required field: %s", field))
		}
		if s, isStr := v.(string); isStr && s == "" && (field == "trip_id" || field == "rider_id") {
			return reject(model.ReasonMissingField, fmt.Sprintf("empty %s", field))
		}
	}

	tripID := stringField(rec, "trip_id")
	riderID := stringField(rec, "rider_id")

	eventTime, err := parseEventTime(stringField(rec, "event_time"))
	if err != nil {
		return reject(model.ReasonTypeError, fmt.Sprintf("event_time: %v", err))
	}

	fare, err := decimal.Parse(stringField(rec, "fare_amount"))
	if err != nil {
		return reject(model.ReasonTypeError, fmt.Sprintf("fare_amount: %v", err))
	}
	if fare.IsNegative() {
		return reject(model.ReasonNegativeValue, fmt.Sprintf("fare_amount %s is negative", fare))
	}

	distance, err := decimal.Parse(stringField(rec, "distance"))
	if err != nil {
		return reject(model.ReasonTypeError, fmt.Sprintf("distance: %v", err))
	}
	if distance.IsNegative() {
		return reject(model.ReasonNegativeValue, fmt.Sprintf("distance %s is negative", distance))
	}

	status := stringField(rec, "status")
	if !model.AllowedStatuses[status] {
		return reject(model.ReasonInvalidStatus, fmt.Sprintf("status %q not in allowed set", status))
	}

	seq, _ := rec[model.KeySeq].(int64)

	// Passthrough fields survive validation untouched.
	var extra map[string]string
	for k, v := range rec {
		if strings.HasPrefix(k, "_") || isSchemaField(k) {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[k] = fmt.Sprintf("%v", v)
	}

	return model.TripRecord{
		TripID:    tripID,
		RiderID:   riderID,
		EventTime: eventTime,
		Fare:      fare,
		Distance:  distance,
		Status:    status,
		Seq:       seq,
		Extra:     extra,
	}, nil
}

func isSchemaField(name string) bool {
	for _, f := range requiredFields {
		if f == name {
			return true
		}
	}
	return false
}

func stringField(rec model.RawRecord, field string) string {
	if s, ok := rec[field].(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("%v", rec[field])
}

// parseEventTime accepts ISO-8601 timestamps or epoch seconds and
// normalizes to UTC.
func parseEventTime(s string) (time.Time, error) {
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
