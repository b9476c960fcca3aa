package worker

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/queue"
)

// JobRunner executes a single report job end to end.
type JobRunner interface {
	Run(ctx context.Context, message domain.JobMessage) error
}

// Processor runs a pool of consumers that feed queue jobs into the
// report pipeline. A consume-loop error restarts the loop after a
// short pause rather than killing the worker.
type Processor struct {
	consumer queue.Consumer
	runner   JobRunner
	workers  int
	logger   *log.Logger
}

func NewProcessor(consumer queue.Consumer, runner JobRunner, workers int, logger *log.Logger) *Processor {
	if workers <= 0 {
		workers = 4
	}
	return &Processor{
		consumer: consumer,
		runner:   runner,
		workers:  workers,
		logger:   logger,
	}
}

// Start blocks until the context is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Printf("worker pool started workers=%d", p.workers)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		group.Go(func() error {
			p.consumeLoop(groupCtx, worker)
			return nil
		})
	}
	_ = group.Wait()
}

func (p *Processor) consumeLoop(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.logger.Printf("ERROR: worker %d consume loop: %v", worker, err)

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, message domain.JobMessage) error {
	started := time.Now()
	err := p.runner.Run(ctx, message)
	if err != nil {
		p.logger.Printf("ERROR: worker: run %s attempt %d: %v", message.RunID, message.Attempt, err)
		return err
	}
	p.logger.Printf("worker: run %s processed type=%s elapsed=%s",
		message.RunID, message.ReportType, time.Since(started).Round(time.Millisecond))
	return nil
}
