package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/homescope/reports-back/internal/domain"
)

// StaleLeaseWindow is how long a claim lease survives a crashed ticker
// before another replica may reclaim the schedule.
const StaleLeaseWindow = 5 * time.Minute

// SchedulesRepository is the ticker's and pipeline's view of the
// schedules table.
type SchedulesRepository interface {
	// ClaimDue atomically leases up to limit due schedules, oldest
	// next_run_at first, skipping rows already leased inside the stale
	// window. Claimed rows have processing_locked_at set to now.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	// CompleteTick advances the schedule after a successful claim.
	CompleteTick(ctx context.Context, scheduleID string, lastRunAt, nextRunAt time.Time) error
	// ReleaseLock clears the lease so a later tick retries the schedule.
	ReleaseLock(ctx context.Context, scheduleID string) error
	GetSchedule(ctx context.Context, scheduleID string) (*domain.Schedule, error)
	// RecordFailure increments the consecutive-failure counter and
	// reports whether the schedule was auto-paused by this failure.
	RecordFailure(ctx context.Context, scheduleID, message string, at time.Time) (bool, error)
	// ResetFailures clears the counter and last error after a
	// successful run.
	ResetFailures(ctx context.Context, scheduleID string) error
}

// MemorySchedulesRepository backs tests and local development.
type MemorySchedulesRepository struct {
	mu        sync.Mutex
	schedules map[string]*domain.Schedule
}

func NewMemorySchedulesRepository() *MemorySchedulesRepository {
	return &MemorySchedulesRepository{schedules: make(map[string]*domain.Schedule)}
}

func (r *MemorySchedulesRepository) Put(schedule *domain.Schedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *schedule
	r.schedules[schedule.ID] = &clone
}

func (r *MemorySchedulesRepository) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*domain.Schedule
	for _, schedule := range r.schedules {
		if !schedule.Active {
			continue
		}
		if schedule.NextRunAt != nil && schedule.NextRunAt.After(now) {
			continue
		}
		if schedule.ProcessingLockedAt != nil && schedule.ProcessingLockedAt.After(now.Add(-StaleLeaseWindow)) {
			continue
		}
		due = append(due, schedule)
	}

	sort.Slice(due, func(i, j int) bool {
		left, right := due[i].NextRunAt, due[j].NextRunAt
		if left == nil {
			return true
		}
		if right == nil {
			return false
		}
		return left.Before(*right)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]domain.Schedule, 0, len(due))
	for _, schedule := range due {
		lease := now
		schedule.ProcessingLockedAt = &lease
		claimed = append(claimed, *schedule)
	}
	return claimed, nil
}

func (r *MemorySchedulesRepository) CompleteTick(_ context.Context, scheduleID string, lastRunAt, nextRunAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedule, ok := r.schedules[scheduleID]
	if !ok {
		return ErrNotFound
	}
	schedule.LastRunAt = &lastRunAt
	schedule.NextRunAt = &nextRunAt
	schedule.ProcessingLockedAt = nil
	return nil
}

func (r *MemorySchedulesRepository) ReleaseLock(_ context.Context, scheduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedule, ok := r.schedules[scheduleID]
	if !ok {
		return ErrNotFound
	}
	schedule.ProcessingLockedAt = nil
	return nil
}

func (r *MemorySchedulesRepository) GetSchedule(_ context.Context, scheduleID string) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedule, ok := r.schedules[scheduleID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *schedule
	return &clone, nil
}

func (r *MemorySchedulesRepository) RecordFailure(_ context.Context, scheduleID, message string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedule, ok := r.schedules[scheduleID]
	if !ok {
		return false, ErrNotFound
	}
	schedule.ConsecutiveFailures++
	schedule.LastError = message
	schedule.LastErrorAt = &at

	paused := false
	if schedule.ConsecutiveFailures >= domain.AutoPauseThreshold && schedule.Active {
		schedule.Active = false
		paused = true
	}
	return paused, nil
}

func (r *MemorySchedulesRepository) ResetFailures(_ context.Context, scheduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedule, ok := r.schedules[scheduleID]
	if !ok {
		return ErrNotFound
	}
	schedule.ConsecutiveFailures = 0
	schedule.LastError = ""
	schedule.LastErrorAt = nil
	return nil
}
