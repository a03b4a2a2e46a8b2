package pipeline

import (
	"context"
	"testing"
	"time"

	"trip-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dims() map[string]model.RiderDimension {
	return map[string]model.RiderDimension{
		"R1": {RiderID: "R1", Name: "Ada", Tier: "gold", Country: "PT", SignupDate: "2023-01-15"},
		"R2": {RiderID: "R2", Name: "Bo", Tier: "silver", Country: "ES", SignupDate: "2023-06-01"},
	}
}

func tripFor(tripID, riderID string, eventTime time.Time, seq int64) model.TripRecord {
	rec := trip(tripID, eventTime, seq, "5.00")
	rec.RiderID = riderID
	return rec
}

func TestJoinRidersMatched(t *testing.T) {
	et := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	facts, misses := JoinRiders(context.Background(), []model.TripRecord{tripFor("T1", "R1", et, 1)}, dims(), 2)

	require.Len(t, facts, 1)
	assert.Zero(t, misses)
	require.NotNil(t, facts[0].Rider)
	assert.Equal(t, "gold", facts[0].Rider.Tier)
	assert.Equal(t, "2024-03-01", facts[0].BusinessDate)
}

func TestJoinRidersMissStillEmits(t *testing.T) {
	et := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	facts, misses := JoinRiders(context.Background(), []model.TripRecord{tripFor("T1", "R404", et, 1)}, dims(), 2)

	require.Len(t, facts, 1)
	assert.Equal(t, int64(1), misses)
	assert.Nil(t, facts[0].Rider)
	assert.Equal(t, "T1", facts[0].Trip.TripID)
}

func TestJoinRidersCompleteness(t *testing.T) {
	et := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var trips []model.TripRecord
	for i := 0; i < 200; i++ {
		rider := "R404"
		if i%2 == 0 {
			rider = "R1"
		}
		trips = append(trips, tripFor("T"+string(rune('A'+i%26))+"-"+time.Duration(i).String(), rider, et, int64(i+1)))
	}

	facts, misses := JoinRiders(context.Background(), trips, dims(), 8)
	require.Len(t, facts, len(trips))
	assert.Equal(t, int64(100), misses)

	// Output index i corresponds to input index i regardless of worker
	// interleaving.
	for i := range trips {
		assert.Equal(t, trips[i].TripID, facts[i].Trip.TripID)
	}
}

func TestJoinBusinessDateUTCTruncation(t *testing.T) {
	// 23:30 in +02:00 is 21:30 UTC the same day; 01:30 in +02:00 is
	// 23:30 UTC the previous day.
	et1, _ := time.Parse(time.RFC3339, "2024-03-01T23:30:00+02:00")
	et2, _ := time.Parse(time.RFC3339, "2024-03-02T01:30:00+02:00")

	facts, _ := JoinRiders(context.Background(), []model.TripRecord{
		tripFor("T1", "R1", et1, 1),
		tripFor("T2", "R1", et2, 2),
	}, dims(), 1)

	assert.Equal(t, "2024-03-01", facts[0].BusinessDate)
	assert.Equal(t, "2024-03-01", facts[1].BusinessDate)
}

func TestJoinRidersEmptyDimension(t *testing.T) {
	et := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	facts, misses := JoinRiders(context.Background(), []model.TripRecord{tripFor("T1", "R1", et, 1)},
		map[string]model.RiderDimension{}, 2)

	require.Len(t, facts, 1)
	assert.Equal(t, int64(1), misses)
	assert.Nil(t, facts[0].Rider)
}
