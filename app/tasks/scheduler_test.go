package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/cine-comb/app/notify"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	failures int
	ran      chan struct{}
}

func newFakeRunner(failures int) *fakeRunner {
	return &fakeRunner{failures: failures, ran: make(chan struct{}, 10)}
}

func (f *fakeRunner) Run(_ context.Context) (*RunResult, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()

	select {
	case f.ran <- struct{}{}:
	default:
	}
	if fail {
		return nil, errors.New("listing unavailable")
	}
	return &RunResult{SnapshotDate: "2025-11-20"}, nil
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitForRuns(t *testing.T, runner *fakeRunner, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-runner.ran:
		case <-time.After(3 * time.Second):
			t.Fatalf("Timed out waiting for run %d, got %d", i+1, runner.Calls())
		}
	}
}

func TestSchedulerRunsOnStartup(t *testing.T) {
	runner := newFakeRunner(0)
	s := NewScheduler(runner, time.Hour, 2)

	s.Start()
	waitForRuns(t, runner, 1)
	s.Stop()

	if runner.Calls() != 1 {
		t.Errorf("Expected exactly 1 run, got %d", runner.Calls())
	}
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	runner := newFakeRunner(0)
	s := NewScheduler(runner, 20*time.Millisecond, 1)

	s.Start()
	waitForRuns(t, runner, 3)
	s.Stop()
}

func TestSchedulerRetriesFailedRun(t *testing.T) {
	runner := newFakeRunner(1)
	s := NewScheduler(runner, time.Hour, 1)
	s.retryBase = 10 * time.Millisecond

	s.Start()
	waitForRuns(t, runner, 2)
	s.Stop()

	if runner.Calls() != 2 {
		t.Errorf("Expected failed run to be retried once, got %d calls", runner.Calls())
	}
}

func TestSchedulerGivesUpAfterMaxRetries(t *testing.T) {
	runner := newFakeRunner(100)
	s := NewScheduler(runner, time.Hour, 1)
	s.retryBase = time.Millisecond

	s.Start()
	waitForRuns(t, runner, DefaultMaxRetries+1)
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if runner.Calls() != DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxRetries+1, runner.Calls())
	}
}

func TestTriggerRun(t *testing.T) {
	s := NewScheduler(newFakeRunner(0), time.Hour, 1)
	defer s.Stop()

	id, err := s.TriggerRun()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if id == "" {
		t.Error("Expected task ID")
	}

	task := <-s.taskQueue
	if task.GetTrigger() != TriggerAPI || task.GetType() != TaskTypeScrape {
		t.Errorf("Unexpected task: %s/%s", task.GetType(), task.GetTrigger())
	}
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	runner := newFakeRunner(0)
	s := NewScheduler(runner, time.Hour, 1)
	defer s.Stop()

	for i := 0; i < cap(s.taskQueue); i++ {
		if err := s.EnqueueTask(NewScrapeTask(TriggerSchedule, runner)); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}

	if err := s.EnqueueTask(NewScrapeTask(TriggerSchedule, runner)); err == nil {
		t.Error("Expected error when queue is full")
	}
}

func TestTaskRetryBookkeeping(t *testing.T) {
	task := NewTask(TaskTypeScrape, TriggerSchedule)

	if task.GetDuration() != 0 {
		t.Errorf("Expected zero duration before start")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected no retries left")
	}

	task.Start()
	if task.StartedAt == nil {
		t.Error("Expected StartedAt to be set")
	}
}

func TestScrapeTaskExecute(t *testing.T) {
	runner := newFakeRunner(1)
	task := NewScrapeTask(TriggerAPI, runner)
	task.Start()

	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected first execution to fail")
	}
	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected second execution to succeed, got: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

type countingNotifier struct {
	name      string
	err       error
	mu        sync.Mutex
	delivered int
	calls     chan struct{}
}

func newCountingNotifier(name string, err error) *countingNotifier {
	return &countingNotifier{name: name, err: err, calls: make(chan struct{}, 10)}
}

func (c *countingNotifier) Name() string { return c.name }

func (c *countingNotifier) Deliver(_ context.Context, _ notify.Message) error {
	c.mu.Lock()
	c.delivered++
	c.mu.Unlock()

	select {
	case c.calls <- struct{}{}:
	default:
	}
	return c.err
}

func (c *countingNotifier) Delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered
}

func TestSchedulerRetriesOnlyFailedNotifiers(t *testing.T) {
	healthy := newCountingNotifier("healthy", nil)
	failing := newCountingNotifier("failing", errors.New("ntfy down"))
	snapshots := newMemorySnapshots()
	reports := &memoryReports{}

	pipeline := newTestPipeline(&fakeFetcher{pages: listingPages(cartelera, pronto)}, snapshots, reports,
		notify.Multi{healthy, failing}, time.Now())

	s := NewScheduler(pipeline, time.Hour, 1)
	s.retryBase = time.Millisecond

	s.Start()
	for i := 0; i < DefaultMaxRetries+1; i++ {
		select {
		case <-failing.calls:
		case <-time.After(3 * time.Second):
			t.Fatalf("Timed out waiting for delivery attempt %d, got %d", i+1, failing.Delivered())
		}
	}
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if snapshots.puts != 1 {
		t.Errorf("Expected 1 snapshot write, got %d", snapshots.puts)
	}
	if len(reports.saved) != 1 {
		t.Errorf("Expected 1 saved report, got %d", len(reports.saved))
	}
	if healthy.Delivered() != 1 {
		t.Errorf("Expected healthy notifier to get the report once, got %d", healthy.Delivered())
	}
	if failing.Delivered() != DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts on the failing notifier, got %d", DefaultMaxRetries+1, failing.Delivered())
	}
}

func TestScrapeTaskRedeliversAfterRecovery(t *testing.T) {
	healthy := newCountingNotifier("healthy", nil)
	flaky := newCountingNotifier("flaky", errors.New("timeout"))
	snapshots := newMemorySnapshots()
	reports := &memoryReports{}

	pipeline := newTestPipeline(&fakeFetcher{pages: listingPages(cartelera, pronto)}, snapshots, reports,
		notify.Multi{healthy, flaky}, time.Now())
	task := NewScrapeTask(TriggerSchedule, pipeline)
	task.Start()

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected delivery error on first execution")
	}

	flaky.err = nil
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected redelivery to succeed, got: %v", err)
	}

	if snapshots.puts != 1 || len(reports.saved) != 1 {
		t.Errorf("Expected a single run, got %d snapshots and %d reports", snapshots.puts, len(reports.saved))
	}
	if healthy.Delivered() != 1 || flaky.Delivered() != 2 {
		t.Errorf("Expected deliveries healthy=1 flaky=2, got %d and %d", healthy.Delivered(), flaky.Delivered())
	}
	if task.pending != nil {
		t.Error("Expected no pending delivery after success")
	}
}
