package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/cine-comb/app/database"
	"github.com/lysyi3m/cine-comb/app/listing"
	"github.com/lysyi3m/cine-comb/app/movie"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background scrape runs.
//
//	scheduler := NewScheduler(pipeline, interval, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.TriggerRun()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerRun() (string, error)
}

type PageFetcher interface {
	Run(ctx context.Context) ([]listing.Page, error)
}

type PageParser interface {
	Parse(page listing.Page) ([]movie.Raw, error)
}

type SnapshotStore interface {
	Put(ctx context.Context, takenAt time.Time, snap *movie.Snapshot) (string, error)
	GetLatestOnOrBefore(ctx context.Context, date string) (*database.StoredSnapshot, error)
}

type ReportStore interface {
	Save(ctx context.Context, report *database.Report) (int64, error)
}

// Runner performs one complete scrape, diff and publish cycle
type Runner interface {
	Run(ctx context.Context) (*RunResult, error)
}
