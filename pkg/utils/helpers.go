package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ParseDuration safely parses a duration string like "5m", falling
// back to the given default on empty or malformed input.
func ParseDuration(d string, fallback time.Duration) time.Duration {
	if d == "" {
		return fallback
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return fallback
	}
	return duration
}

// PartitionDir returns the output directory for one business-date
// partition, e.g. <out>/facts/date=2024-03-01.
func PartitionDir(outputDir, businessDate string) string {
	return filepath.Join(outputDir, "facts", "date="+businessDate)
}

// AggregatePath returns the path of an aggregate artifact under the
// run's output directory.
func AggregatePath(outputDir, name string) string {
	return filepath.Join(outputDir, name)
}

// EnsureDir creates dir (and parents) if missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
