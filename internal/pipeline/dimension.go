package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"trip-pipeline/internal/model"
)

// LoadRiderDimension reads the full rider snapshot (JSON lines) into a
// keyed lookup. Duplicate rider_id entries resolve last-one-wins by
// input order.
//
// The returned map follows a construction-then-freeze lifecycle: it is
// never mutated after this function returns and is safe for concurrent
// reads by all join workers.
func LoadRiderDimension(path string) (map[string]model.RiderDimension, error) {
	var reader io.Reader
	if strings.HasPrefix(path, "http") {
		resp, err := http.Get(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to GET %s: %v", ErrDimensionUnavailable, path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: GET %s returned %s", ErrDimensionUnavailable, path, resp.Status)
		}
		reader = resp.Body
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open %s: %v", ErrDimensionUnavailable, path, err)
		}
		defer file.Close()
		reader = file
	}

	dims := make(map[string]model.RiderDimension)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rider model.RiderDimension
		if err := json.Unmarshal([]byte(text), &rider); err != nil {
			return nil, fmt.Errorf("%w: bad snapshot line %d in %s: %v", ErrDimensionUnavailable, line, path, err)
		}
		if rider.RiderID == "" {
			return nil, fmt.Errorf("%w: snapshot line %d in %s has no rider_id", ErrDimensionUnavailable, line, path)
		}
		dims[rider.RiderID] = rider
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrDimensionUnavailable, path, err)
	}

	fmt.Printf("📇 Loaded %d rider dimension entries from %s\n", len(dims), path)
	return dims, nil
}
