package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/queue"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    []domain.JobMessage
	failures int
	done     chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, message domain.JobMessage) error {
	r.mu.Lock()
	r.calls = append(r.calls, message)
	shouldFail := len(r.calls) <= r.failures
	r.mu.Unlock()
	if shouldFail {
		return errors.New("transient failure")
	}
	if r.done != nil {
		r.done <- struct{}{}
	}
	return nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testMessage(runID string) domain.JobMessage {
	return domain.JobMessage{
		RunID:      runID,
		AccountID:  "acct-1",
		ReportType: domain.ReportMarketSnapshot,
		Params: domain.ReportParams{
			ZipCodes:     []string{"94110"},
			LookbackDays: 30,
		},
		Attempt:     0,
		RequestedAt: time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestProcessorProcessesJobs(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	localQueue := queue.NewLocalQueue(8, 3, logger)
	runner := &fakeRunner{done: make(chan struct{}, 2)}
	processor := NewProcessor(localQueue, runner, 2, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go processor.Start(ctx)

	if err := localQueue.Enqueue(ctx, testMessage("run-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := localQueue.Enqueue(ctx, testMessage("run-2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-runner.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("job %d was not processed", i+1)
		}
	}

	if got := runner.callCount(); got != 2 {
		t.Fatalf("expected 2 runs, got %d", got)
	}
}

func TestProcessorRetriesFailedJob(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	localQueue := queue.NewLocalQueue(8, 3, logger)
	runner := &fakeRunner{failures: 1, done: make(chan struct{}, 1)}
	processor := NewProcessor(localQueue, runner, 1, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go processor.Start(ctx)

	if err := localQueue.Enqueue(ctx, testMessage("run-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-runner.done:
	case <-time.After(3 * time.Second):
		t.Fatal("job was not retried to success")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(runner.calls))
	}
	if runner.calls[1].Attempt != 1 {
		t.Fatalf("expected redelivered attempt 1, got %d", runner.calls[1].Attempt)
	}
}

func TestProcessorStopsOnContextCancel(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	localQueue := queue.NewLocalQueue(8, 3, logger)
	runner := &fakeRunner{}
	processor := NewProcessor(localQueue, runner, 2, logger)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		processor.Start(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop after cancel")
	}
}
