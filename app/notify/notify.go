package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/cine-comb/app/movie"
)

// Message is one rendered report ready for delivery
type Message struct {
	Date    string // snapshot day, YYYY-MM-DD
	Text    string // markdown report
	Summary movie.Summary
}

func (m Message) Title() string {
	return fmt.Sprintf("Cartelera %s: %d nuevas, %d salen", m.Date, m.Summary.Added, m.Summary.Removed)
}

type Notifier interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// DeliveryError carries the message and the notifiers that did not get it,
// so delivery can be retried without touching the ones that succeeded.
type DeliveryError struct {
	Message Message
	Failed  Multi
	Err     error
}

func (e *DeliveryError) Error() string {
	return e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Multi delivers to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	var failed Multi

	for _, n := range m {
		start := time.Now()
		if err := n.Deliver(ctx, msg); err != nil {
			slog.Error("Notification failed", "notifier", n.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			failed = append(failed, n)
			continue
		}
		slog.Info("Notification delivered", "notifier", n.Name(), "duration", time.Since(start))
	}

	if len(failed) == 0 {
		return nil
	}

	return &DeliveryError{Message: msg, Failed: failed, Err: errors.Join(errs...)}
}
