package queue

import (
	"context"

	"github.com/homescope/reports-back/internal/domain"
)

// Producer sends report jobs to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.JobMessage) error
}

// Consumer receives report jobs and executes handlers. Delivery is
// at-least-once: a failing handler gets the message redelivered with
// an incremented attempt until the backend gives up.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.JobMessage) error) error
}

// ExhaustedFunc is notified when a message has used up its delivery
// attempts and is being parked.
type ExhaustedFunc func(ctx context.Context, message domain.JobMessage, lastErr error)
