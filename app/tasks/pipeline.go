package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/lysyi3m/cine-comb/app/database"
	"github.com/lysyi3m/cine-comb/app/movie"
	"github.com/lysyi3m/cine-comb/app/notify"
)

type PipelineConfig struct {
	ReferenceDays int
	Location      *time.Location
	Now           func() time.Time
}

type RunResult struct {
	SnapshotDate  string
	ReferenceDate string // empty when no earlier snapshot existed
	ReportID      int64
	Report        string
	Summary       movie.Summary
}

// Pipeline fetches the listings, stores today's snapshot, reconciles it
// against the reference day and publishes the report.
type Pipeline struct {
	fetcher   PageFetcher
	parser    PageParser
	snapshots SnapshotStore
	reports   ReportStore
	renderer  *movie.Renderer
	notifier  notify.Notifier
	config    PipelineConfig
	mu        sync.Mutex
}

// NewPipeline wires the run collaborators. notifier may be nil.
func NewPipeline(fetcher PageFetcher, parser PageParser, snapshots SnapshotStore, reports ReportStore,
	renderer *movie.Renderer, notifier notify.Notifier, config PipelineConfig) *Pipeline {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.ReferenceDays < 1 {
		config.ReferenceDays = 1
	}

	return &Pipeline{
		fetcher:   fetcher,
		parser:    parser,
		snapshots: snapshots,
		reports:   reports,
		renderer:  renderer,
		notifier:  notifier,
		config:    config,
	}
}

// Run is serialized: overlapping runs would race on the same day's snapshot.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	takenAt := p.config.Now().In(p.config.Location)

	current, err := p.scrape(ctx, takenAt.Year())
	if err != nil {
		return nil, err
	}

	snapshotDate, err := p.snapshots.Put(ctx, takenAt, current)
	if err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	slog.Info("Snapshot stored", "date", snapshotDate, "movies", current.Len())

	reference, referenceDate, err := p.loadReference(ctx, takenAt)
	if err != nil {
		return nil, err
	}

	rec := movie.Reconcile(current, reference)
	text, err := p.renderer.Render(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	result := &RunResult{
		SnapshotDate:  snapshotDate,
		ReferenceDate: referenceDate,
		Report:        text,
		Summary:       rec.Summary(),
	}

	report := &database.Report{
		SnapshotDate:  snapshotDate,
		ReferenceDate: referenceDate,
		Content:       text,
		Summary:       result.Summary,
		CreatedAt:     takenAt,
	}
	if result.ReportID, err = p.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	if p.notifier != nil {
		msg := notify.Message{Date: snapshotDate, Text: text, Summary: result.Summary}
		if err := p.notifier.Deliver(ctx, msg); err != nil {
			var deliveryErr *notify.DeliveryError
			if !errors.As(err, &deliveryErr) {
				deliveryErr = &notify.DeliveryError{Message: msg, Failed: notify.Multi{p.notifier}, Err: err}
			}
			return result, fmt.Errorf("failed to deliver report: %w", deliveryErr)
		}
	}

	return result, nil
}

func (p *Pipeline) scrape(ctx context.Context, year int) (*movie.Snapshot, error) {
	pages, err := p.fetcher.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}

	var records []movie.Movie
	for _, page := range pages {
		raws, err := p.parser.Parse(page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s page: %w", page.Category, err)
		}

		base, err := url.Parse(page.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid page URL %q: %w", page.URL, err)
		}

		movies, err := movie.BuildListing(page.Category, raws, year, base)
		if err != nil {
			return nil, err
		}

		slog.Debug("Listing parsed", "category", page.Category, "movies", len(movies))
		records = append(records, movies...)
	}

	return movie.NewSnapshot(records...), nil
}

func (p *Pipeline) loadReference(ctx context.Context, takenAt time.Time) (*movie.Snapshot, string, error) {
	date := takenAt.AddDate(0, 0, -p.config.ReferenceDays).Format(database.DateLayout)

	stored, err := p.snapshots.GetLatestOnOrBefore(ctx, date)
	if errors.Is(err, database.ErrSnapshotNotFound) {
		slog.Warn("No reference snapshot, reporting against an empty baseline", "on_or_before", date)
		return movie.Empty(), "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load reference snapshot: %w", err)
	}

	return stored.Snapshot, stored.Date, nil
}
