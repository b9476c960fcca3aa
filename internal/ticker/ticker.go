package ticker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/homescope/reports-back/internal/clock"
	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/queue"
	"github.com/homescope/reports-back/internal/repository"
)

// Ticker periodically claims due schedules and turns each one into a
// queued report run plus a job message. It does no external I/O beyond
// the datastore and the queue; all heavy work happens in workers.
type Ticker struct {
	schedules  repository.SchedulesRepository
	reports    repository.ReportsRepository
	producer   queue.Producer
	logger     *log.Logger
	interval   time.Duration
	claimLimit int
	now        func() time.Time
}

func New(schedules repository.SchedulesRepository, reports repository.ReportsRepository, producer queue.Producer, interval time.Duration, claimLimit int, logger *log.Logger) *Ticker {
	if interval <= 0 {
		interval = time.Minute
	}
	if claimLimit <= 0 {
		claimLimit = 100
	}
	return &Ticker{
		schedules:  schedules,
		reports:    reports,
		producer:   producer,
		logger:     logger,
		interval:   interval,
		claimLimit: claimLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks until the context is cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	t.logger.Printf("ticker started interval=%s claim_limit=%d", t.interval, t.claimLimit)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if err := t.Tick(ctx); err != nil {
			t.logger.Printf("ERROR: tick: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick claims due schedules and fires each one. A failure on one
// schedule releases only that schedule's lock; the rest of the batch
// proceeds.
func (t *Ticker) Tick(ctx context.Context) error {
	now := t.now()
	claimed, err := t.schedules.ClaimDue(ctx, now, t.claimLimit)
	if err != nil {
		return fmt.Errorf("claim due schedules: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}
	t.logger.Printf("tick claimed %d schedules", len(claimed))

	for _, schedule := range claimed {
		if err := t.fire(ctx, schedule, now); err != nil {
			t.logger.Printf("ERROR: fire schedule %s: %v", schedule.ID, err)
			if releaseErr := t.schedules.ReleaseLock(ctx, schedule.ID); releaseErr != nil {
				t.logger.Printf("ERROR: release lock for schedule %s: %v", schedule.ID, releaseErr)
			}
		}
	}
	return nil
}

// fire creates the queued run rows, enqueues the job, and advances the
// schedule in that order, so a crash mid-way leaves the lease to be
// reclaimed rather than losing the firing.
func (t *Ticker) fire(ctx context.Context, schedule domain.Schedule, now time.Time) error {
	nextRun, err := NextRun(schedule, now)
	if err != nil {
		return fmt.Errorf("compute next run: %w", err)
	}

	runID := uuid.NewString()
	params := domain.ReportParams{
		City:         schedule.City,
		ZipCodes:     schedule.ZipCodes,
		LookbackDays: schedule.LookbackDays,
		Filters:      schedule.Filters,
		ScheduleID:   schedule.ID,
	}
	inputParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	if err := t.reports.CreateReport(ctx, &domain.ReportGeneration{
		ID:          runID,
		AccountID:   schedule.AccountID,
		ReportType:  schedule.ReportType,
		InputParams: inputParams,
		Status:      domain.ReportStatusQueued,
		ScheduleID:  schedule.ID,
		GeneratedAt: now,
	}); err != nil {
		return fmt.Errorf("create report run: %w", err)
	}
	if err := t.reports.CreateScheduleRun(ctx, &domain.ScheduleRun{
		ID:          uuid.NewString(),
		ScheduleID:  schedule.ID,
		ReportRunID: runID,
		Status:      domain.ScheduleRunQueued,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("create schedule run: %w", err)
	}

	if err := t.producer.Enqueue(ctx, domain.JobMessage{
		RunID:       runID,
		AccountID:   schedule.AccountID,
		ReportType:  schedule.ReportType,
		Params:      params,
		RequestedAt: now,
	}); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	if err := t.schedules.CompleteTick(ctx, schedule.ID, now, nextRun); err != nil {
		return fmt.Errorf("complete tick: %w", err)
	}
	t.logger.Printf("schedule %s fired run=%s next_run_at=%s", schedule.ID, runID, nextRun.Format(time.RFC3339))
	return nil
}

// NextRun computes the schedule's next fire instant in UTC, strictly
// after now, honoring the schedule's timezone and cadence.
func NextRun(schedule domain.Schedule, now time.Time) (time.Time, error) {
	loc, err := clock.LoadZone(schedule.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)

	switch schedule.Cadence {
	case domain.CadenceWeekly:
		return nextWeekly(schedule, now, local, loc)
	case domain.CadenceMonthly:
		return nextMonthly(schedule, now, local, loc)
	default:
		return time.Time{}, fmt.Errorf("unknown cadence %q", schedule.Cadence)
	}
}

func nextWeekly(schedule domain.Schedule, now, local time.Time, loc *time.Location) (time.Time, error) {
	if schedule.WeeklyDOW < 0 || schedule.WeeklyDOW > 6 {
		return time.Time{}, fmt.Errorf("weekly_dow %d out of range", schedule.WeeklyDOW)
	}

	for offset := 0; offset <= 7; offset++ {
		day := local.AddDate(0, 0, offset)
		if int(day.Weekday()) != schedule.WeeklyDOW {
			continue
		}
		candidate, _, err := clock.Resolve(day.Year(), day.Month(), day.Day(),
			schedule.SendHour, schedule.SendMinute, loc)
		if err != nil {
			return time.Time{}, err
		}
		if candidate.After(now) {
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("no weekly occurrence found for schedule %s", schedule.ID)
}

func nextMonthly(schedule domain.Schedule, now, local time.Time, loc *time.Location) (time.Time, error) {
	dom := schedule.MonthlyDOM
	if dom < 1 {
		return time.Time{}, fmt.Errorf("monthly_dom %d out of range", schedule.MonthlyDOM)
	}
	if dom > domain.MaxMonthlyDOM {
		dom = domain.MaxMonthlyDOM
	}

	for monthOffset := 0; monthOffset <= 2; monthOffset++ {
		anchor := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, monthOffset, 0)
		candidate, _, err := clock.Resolve(anchor.Year(), anchor.Month(), dom,
			schedule.SendHour, schedule.SendMinute, loc)
		if err != nil {
			return time.Time{}, err
		}
		if candidate.After(now) {
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("no monthly occurrence found for schedule %s", schedule.ID)
}
