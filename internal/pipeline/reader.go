package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trip-pipeline/internal/model"
)

// DiscoverTripFiles lists trips_*.csv under inputDir whose date suffix
// is at or before the business date (watermark filter), sorted by
// name. Finding none is fatal: an empty batch means the input location
// is wrong, not that there is nothing to do.
func DiscoverTripFiles(inputDir, businessDate string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(inputDir, "trips_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad input dir %s: %v", ErrSourceUnavailable, inputDir, err)
	}

	var files []string
	for _, f := range matches {
		stem := strings.TrimSuffix(filepath.Base(f), ".csv")
		parts := strings.Split(stem, "_")
		suffix := parts[len(parts)-1]
		if suffix <= businessDate {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no trip files in %s at or before %s", ErrSourceUnavailable, inputDir, businessDate)
	}
	sort.Strings(files)
	return files, nil
}

// ReadTrips streams raw trip records from every source into out, in
// source order. Each record carries its source, line number, and a
// monotonic sequence number; the sequence is the input-order basis of
// the dedup tie-break. Rows that cannot be parsed as a record at all
// go to rejects as PARSE_ERROR and reading continues. A source that
// cannot be opened aborts the whole read.
//
// The stream is finite and not restartable; a fresh read starts over.
func ReadTrips(ctx context.Context, spec model.RunSpec, out chan<- model.RawRecord, rejects chan<- model.RejectedRecord) (int64, error) {
	sources := spec.Sources
	if len(sources) == 0 {
		files, err := DiscoverTripFiles(spec.InputDir, spec.BusinessDate)
		if err != nil {
			return 0, err
		}
		sources = files
	}
	fmt.Printf("➡️ Reading %d trip source(s)\n", len(sources))

	var seq, total int64
	for _, src := range sources {
		n, err := readSource(ctx, src, &seq, out, rejects)
		total += n
		if err != nil {
			return total, err
		}
	}
	fmt.Printf("📄 Read done: %d records from %d source(s)\n", total, len(sources))
	return total, nil
}

func readSource(ctx context.Context, src string, seq *int64, out chan<- model.RawRecord, rejects chan<- model.RejectedRecord) (int64, error) {
	var reader io.Reader
	if strings.HasPrefix(src, "http") {
		resp, err := http.Get(src)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to GET %s: %v", ErrSourceUnavailable, src, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0, fmt.Errorf("%w: GET %s returned %s", ErrSourceUnavailable, src, resp.Status)
		}
		reader = resp.Body
	} else {
		file, err := os.Open(src)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to open %s: %v", ErrSourceUnavailable, src, err)
		}
		defer file.Close()
		reader = file
	}

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read header of %s: %v", ErrSourceUnavailable, src, err)
	}
	for i, h := range headers {
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	var count int64
	line := 1 // header
	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		row, err := csvReader.Read()
		line++
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			rejects <- model.RejectedRecord{
				Source: src,
				Line:   line,
				Reason: model.ReasonParseError,
				Detail: err.Error(),
			}
			continue
		}
		if len(row) != len(headers) {
			rejects <- model.RejectedRecord{
				Source: src,
				Line:   line,
				Reason: model.ReasonParseError,
				Detail: fmt.Sprintf("expected %d fields, got %d", len(headers), len(row)),
			}
			continue
		}

		rec := make(model.RawRecord, len(headers)+3)
		for i, h := range headers {
			rec[h] = strings.TrimSpace(row[i])
		}
		*seq++
		rec[model.KeySource] = src
		rec[model.KeySeq] = *seq
		rec[model.KeyLine] = line

		select {
		case <-ctx.Done():
			return count, ctx.Err()
		case out <- rec:
			count++
		}
	}
}
