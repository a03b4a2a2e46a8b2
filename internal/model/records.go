package model

import (
	"time"

	"trip-pipeline/pkg/decimal"
)

// RawRecord is a loosely typed trip row as it came off the wire. Cell
// values are strings; bookkeeping keys injected by the reader carry
// provenance and input order.
type RawRecord map[string]interface{}

// Bookkeeping keys injected by the reader. They never survive into
// the validated record's passthrough fields.
const (
	KeySource = "_source"
	KeySeq    = "_seq"
	KeyLine   = "_line"
)

// Rejection reason codes.
const (
	ReasonParseError    = "PARSE_ERROR"
	ReasonMissingField  = "MISSING_FIELD"
	ReasonTypeError     = "TYPE_ERROR"
	ReasonNegativeValue = "NEGATIVE_VALUE"
	ReasonInvalidStatus = "INVALID_STATUS"
)

// AllowedStatuses is the enumerated set of valid trip statuses.
var AllowedStatuses = map[string]bool{
	"created":   true,
	"started":   true,
	"completed": true,
	"cancelled": true,
}

// TripRecord is a validated trip row. Fields are typed, required
// fields present, fare and distance non-negative.
type TripRecord struct {
	TripID    string            `json:"trip_id"`
	RiderID   string            `json:"rider_id"`
	EventTime time.Time         `json:"event_time"`
	Fare      decimal.Decimal   `json:"fare_amount"`
	Distance  decimal.Decimal   `json:"distance"`
	Status    string            `json:"status"`
	Seq       int64             `json:"-"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// RejectedRecord is a row quarantined by the reader or validator. It
// never re-enters the main pipeline.
type RejectedRecord struct {
	Source string    `json:"source"`
	Line   int       `json:"line"`
	Reason string    `json:"reason"`
	Detail string    `json:"detail"`
	Raw    RawRecord `json:"raw,omitempty"`
}

// RiderDimension holds enrichment attributes for one rider. The
// dimension map is frozen after load and shared read-only by all join
// workers.
type RiderDimension struct {
	RiderID    string `json:"rider_id"`
	Name       string `json:"name"`
	Tier       string `json:"tier"`
	Country    string `json:"country"`
	SignupDate string `json:"signup_date"`
}

// EnrichedFact is the final per-trip output row: deduplicated trip plus
// rider attributes. Rider is nil when the dimension had no match
// (left-join semantics, trips are never dropped).
type EnrichedFact struct {
	Trip         TripRecord      `json:"trip"`
	Rider        *RiderDimension `json:"rider,omitempty"`
	BusinessDate string          `json:"business_date"`
}

// DailyAggregate is one summary row per business date.
type DailyAggregate struct {
	Date           string          `json:"date"`
	TripCount      int             `json:"total_trips"`
	CompletedTrips int             `json:"completed_trips"`
	DistinctRiders int             `json:"distinct_riders"`
	SumFare        decimal.Decimal `json:"sum_fare"`
	SumDistance    decimal.Decimal `json:"sum_distance"`
	AvgFare        decimal.Decimal `json:"avg_fare"`
}

// GroupAggregate is one summary row per (business date, secondary
// attribute) pair, e.g. rider country or tier.
type GroupAggregate struct {
	Date  string          `json:"date"`
	Group string          `json:"group"`
	Trips int             `json:"trips"`
	GMV   decimal.Decimal `json:"gmv"`
}
