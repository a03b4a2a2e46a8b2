package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"trip-pipeline/internal/model"
)

// JoinRiders enriches each deduplicated trip with rider dimension
// attributes. Left-join semantics: a trip whose rider_id has no
// dimension entry still yields a fact with a nil Rider, it is never
// dropped. The dimension map is read-only for the run, so workers
// share it without locking.
//
// business_date is the UTC calendar date of event_time. Fixed policy:
// UTC truncation, no record-local timezone conversion.
//
// Output index i corresponds to input index i, so the result is
// deterministic regardless of worker interleaving.
func JoinRiders(ctx context.Context, trips []model.TripRecord, dims map[string]model.RiderDimension, workerCount int) ([]model.EnrichedFact, int64) {
	facts := make([]model.EnrichedFact, len(trips))
	var misses int64

	if workerCount < 1 {
		workerCount = 1
	}

	indexes := make(chan int, workerCount)
	var wg sync.WaitGroup
	wg.Add(workerCount)

	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				select {
				case <-ctx.Done():
					return
				default:
				}

				trip := trips[i]
				fact := model.EnrichedFact{
					Trip:         trip,
					BusinessDate: trip.EventTime.UTC().Format("2006-01-02"),
				}
				if rider, ok := dims[trip.RiderID]; ok {
					r := rider
					fact.Rider = &r
				} else {
					atomic.AddInt64(&misses, 1)
				}
				facts[i] = fact
			}
		}()
	}

	for i := range trips {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	if n := atomic.LoadInt64(&misses); n > 0 {
		fmt.Printf("🔗 Join: %d trip(s) had no rider dimension match\n", n)
	}
	return facts, atomic.LoadInt64(&misses)
}
