package pipeline

import (
	"context"
	"testing"
	"time"

	"trip-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTrip(overrides map[string]interface{}) model.RawRecord {
	rec := model.RawRecord{
		"trip_id":       "T1",
		"rider_id":      "R1",
		"event_time":    "2024-03-01T10:00:00Z",
		"fare_amount":   "5.50",
		"distance":      "2.3",
		"status":        "completed",
		model.KeySource: "trips_2024-03-01.csv",
		model.KeySeq:    int64(1),
		model.KeyLine:   2,
	}
	for k, v := range overrides {
		if v == nil {
			delete(rec, k)
		} else {
			rec[k] = v
		}
	}
	return rec
}

func TestValidateRecordAccepts(t *testing.T) {
	trip, reject := validateRecord(rawTrip(nil))
	require.Nil(t, reject)

	assert.Equal(t, "T1", trip.TripID)
	assert.Equal(t, "R1", trip.RiderID)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), trip.EventTime)
	assert.Equal(t, "5.50", trip.Fare.String())
	assert.Equal(t, "2.3", trip.Distance.String())
	assert.Equal(t, "completed", trip.Status)
	assert.Equal(t, int64(1), trip.Seq)
	assert.Nil(t, trip.Extra)
}

func TestValidateRecordReasons(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
		reason    string
	}{
		{"missing trip_id", map[string]interface{}{"trip_id": nil}, model.ReasonMissingField},
		{"empty trip_id", map[string]interface{}{"trip_id": ""}, model.ReasonMissingField},
		{"empty rider_id", map[string]interface{}{"rider_id": ""}, model.ReasonMissingField},
		{"missing fare", map[string]interface{}{"fare_amount": nil}, model.ReasonMissingField},
		{"bad event_time", map[string]interface{}{"event_time": "yesterday"}, model.ReasonTypeError},
		{"bad fare", map[string]interface{}{"fare_amount": "free"}, model.ReasonTypeError},
		{"negative fare", map[string]interface{}{"fare_amount": "-5.50"}, model.ReasonNegativeValue},
		{"bad distance", map[string]interface{}{"distance": "far"}, model.ReasonTypeError},
		{"negative distance", map[string]interface{}{"distance": "-1"}, model.ReasonNegativeValue},
		{"unknown status", map[string]interface{}{"status": "teleported"}, model.ReasonInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reject := validateRecord(rawTrip(tt.overrides))
			require.NotNil(t, reject)
			assert.Equal(t, tt.reason, reject.Reason)
			assert.Equal(t, "trips_2024-03-01.csv", reject.Source)
			assert.Equal(t, 2, reject.Line)
		})
	}
}

func TestValidateRecordFailFastFirstReason(t *testing.T) {
	// Both fare and status are bad; the earlier check's reason wins.
	_, reject := validateRecord(rawTrip(map[string]interface{}{
		"fare_amount": "-1.00",
		"status":      "teleported",
	}))
	require.NotNil(t, reject)
	assert.Equal(t, model.ReasonNegativeValue, reject.Reason)
}

func TestValidateRecordEventTimeFormats(t *testing.T) {
	for _, v := range []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00+02:00",
		"2024-03-01T10:00:00",
		"2024-03-01 10:00:00",
		"1709287200", // epoch seconds
	} {
		trip, reject := validateRecord(rawTrip(map[string]interface{}{"event_time": v}))
		require.Nil(t, reject, "event_time %q should parse", v)
		assert.Equal(t, time.UTC, trip.EventTime.Location())
	}
}

func TestValidateRecordPassthroughFields(t *testing.T) {
	trip, reject := validateRecord(rawTrip(map[string]interface{}{
		"promo_code": "SPRING24",
		"city":       "Lisbon",
	}))
	require.Nil(t, reject)
	assert.Equal(t, map[string]string{"promo_code": "SPRING24", "city": "Lisbon"}, trip.Extra)
}

func TestValidateRecordsPool(t *testing.T) {
	in := make(chan model.RawRecord, 10)
	out := make(chan model.TripRecord, 10)
	rejects := make(chan model.RejectedRecord, 10)

	in <- rawTrip(nil)
	in <- rawTrip(map[string]interface{}{"trip_id": "T2", "fare_amount": "-1", model.KeySeq: int64(2)})
	in <- rawTrip(map[string]interface{}{"trip_id": "T3", model.KeySeq: int64(3)})
	close(in)

	ValidateRecords(context.Background(), in, out, rejects, 2)

	var valid []model.TripRecord
	for rec := range out {
		valid = append(valid, rec)
	}
	close(rejects)
	var rejected []model.RejectedRecord
	for r := range rejects {
		rejected = append(rejected, r)
	}

	assert.Len(t, valid, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, model.ReasonNegativeValue, rejected[0].Reason)
}
