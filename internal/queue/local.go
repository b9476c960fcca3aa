package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/homescope/reports-back/internal/domain"
)

// LocalQueue is a fallback queue used when Redis is not configured.
// It lives in one process, so ticker and worker must share it.
type LocalQueue struct {
	ch          chan domain.JobMessage
	maxAttempts int
	logger      *log.Logger

	// OnExhausted is invoked before a message is parked in the DLQ.
	OnExhausted ExhaustedFunc

	dlqMu sync.Mutex
	dlq   []domain.JobMessage
}

func NewLocalQueue(bufferSize, maxAttempts int, logger *log.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &LocalQueue{
		ch:          make(chan domain.JobMessage, bufferSize),
		maxAttempts: maxAttempts,
		logger:      logger,
		dlq:         make([]domain.JobMessage, 0),
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, message domain.JobMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- message:
		return nil
	}
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.JobMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-q.ch:
			err := handler(ctx, message)
			if err == nil {
				continue
			}

			message.Attempt++
			if message.Attempt >= q.maxAttempts {
				if q.OnExhausted != nil {
					q.OnExhausted(ctx, message, err)
				}
				q.dlqMu.Lock()
				q.dlq = append(q.dlq, message)
				q.dlqMu.Unlock()
				if q.logger != nil {
					q.logger.Printf("local queue moved message to DLQ run_id=%s err=%v", message.RunID, err)
				}
				continue
			}

			delay := time.Duration(message.Attempt) * 500 * time.Millisecond
			go func(retryMessage domain.JobMessage) {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
				select {
				case <-ctx.Done():
				case q.ch <- retryMessage:
				}
			}(message)
		}
	}
}

func (q *LocalQueue) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}
