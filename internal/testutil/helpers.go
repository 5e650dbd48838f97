// Package testutil provides shared helpers for haven tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"
)

// TempSnapshotDir returns a temporary directory for snapshot files plus a
// database path inside it. The directory is cleaned up when the test
// completes.
func TempSnapshotDir(t *testing.T) (dir, dbPath string) {
	t.Helper()
	dir = t.TempDir()
	dbPath = filepath.Join(dir, "haven.db")
	return dir, dbPath
}

// Day returns a timestamp on a fixed reference week at the given weekday
// offset and clock time. Day(0, ...) is Monday 2024-01-01 UTC.
func Day(dayOffset, hour, minute int) time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, dayOffset).
		Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}
