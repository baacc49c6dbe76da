package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/cine-comb/app/notify"
)

// ScrapeTask runs the pipeline once. When only delivery failed, the report
// is already stored and retries redeliver it to the failed notifiers.
type ScrapeTask struct {
	Task
	runner  Runner
	pending *notify.DeliveryError
}

func NewScrapeTask(trigger string, runner Runner) *ScrapeTask {
	return &ScrapeTask{
		Task:   NewTask(TaskTypeScrape, trigger),
		runner: runner,
	}
}

func (t *ScrapeTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if t.pending != nil {
		return t.redeliver(ctx)
	}

	result, err := t.runner.Run(ctx)
	if err != nil {
		var deliveryErr *notify.DeliveryError
		if result != nil && errors.As(err, &deliveryErr) {
			t.pending = deliveryErr
			slog.Warn("Report stored but delivery failed", "type", "Scrape", "trigger", t.Trigger,
				"snapshot", result.SnapshotDate, "pending", len(deliveryErr.Failed), "error", err)
			return err
		}
		slog.Error("Task failed", "type", "Scrape", "trigger", t.Trigger, "error", err)
		return fmt.Errorf("scrape run failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "Scrape",
		"trigger", t.Trigger,
		"snapshot", result.SnapshotDate,
		"reference", result.ReferenceDate,
		"added", result.Summary.Added,
		"removed", result.Summary.Removed,
		"retained", result.Summary.Retained,
		"duration", t.GetDuration())

	return nil
}

func (t *ScrapeTask) redeliver(ctx context.Context) error {
	err := t.pending.Failed.Deliver(ctx, t.pending.Message)
	if err != nil {
		var deliveryErr *notify.DeliveryError
		if errors.As(err, &deliveryErr) {
			t.pending = deliveryErr
		}
		return fmt.Errorf("report redelivery failed: %w", err)
	}

	slog.Info("Task completed",
		"type", "Scrape",
		"trigger", t.Trigger,
		"snapshot", t.pending.Message.Date,
		"redelivered", true,
		"duration", t.GetDuration())
	t.pending = nil

	return nil
}
