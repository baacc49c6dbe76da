package api

import (
	"context"

	"github.com/lysyi3m/cine-comb/app/database"
)

type SnapshotReader interface {
	Get(ctx context.Context, date string) (*database.StoredSnapshot, error)
	List(ctx context.Context, limit int) ([]database.StoredSnapshot, error)
}

type ReportReader interface {
	Latest(ctx context.Context) (*database.Report, error)
	List(ctx context.Context, limit int) ([]database.Report, error)
}

type RunTrigger interface {
	TriggerRun() (string, error)
}

type HealthChecker interface {
	Health(ctx context.Context) map[string]any
}

var (
	_ SnapshotReader = (*database.SnapshotRepository)(nil)
	_ ReportReader   = (*database.ReportRepository)(nil)
)

type Handler struct {
	snapshots SnapshotReader
	reports   ReportReader
	runs      RunTrigger
	cache     HealthChecker
	feed      *ReportFeed
}
