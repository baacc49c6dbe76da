package database

import (
	"errors"
	"time"

	"github.com/lysyi3m/cine-comb/app/movie"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrReportNotFound   = errors.New("report not found")
)

// StoredSnapshot is one daily listing snapshot as kept in the store.
// Snapshot is nil in listings.
type StoredSnapshot struct {
	Date       string // YYYY-MM-DD in the configured timezone
	TakenAt    time.Time
	MovieCount int
	Snapshot   *movie.Snapshot
}

type Report struct {
	ID            int64
	SnapshotDate  string
	ReferenceDate string // empty when the run had no baseline
	Content       string
	Summary       movie.Summary
	CreatedAt     time.Time
}
