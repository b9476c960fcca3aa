package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresSchedulesRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSchedulesRepository(pool *pgxpool.Pool) *PostgresSchedulesRepository {
	return &PostgresSchedulesRepository{pool: pool}
}

const scheduleColumns = `
	id, account_id, name, report_type, city, zip_codes, lookback_days,
	cadence, weekly_dow, monthly_dom, send_hour, send_minute, timezone,
	recipients, filters, include_attachment, active,
	last_run_at, next_run_at, processing_locked_at,
	consecutive_failures, last_error, last_error_at, created_at, updated_at`

// ClaimDue runs the claim inside one transaction: SKIP LOCKED keeps
// concurrent ticker replicas from selecting the same rows, and the
// stale-lease predicate reclaims schedules from crashed replicas.
func (r *PostgresSchedulesRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE schedules
		SET processing_locked_at = $1
		WHERE id IN (
			SELECT id FROM schedules
			WHERE active = true
			  AND (next_run_at IS NULL OR next_run_at <= $1)
			  AND (processing_locked_at IS NULL OR processing_locked_at < $2)
			ORDER BY next_run_at ASC NULLS FIRST
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+scheduleColumns,
		now, now.Add(-StaleLeaseWindow), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due schedules: %w", err)
	}

	schedules, err := scanSchedules(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return schedules, nil
}

func (r *PostgresSchedulesRepository) CompleteTick(ctx context.Context, scheduleID string, lastRunAt, nextRunAt time.Time) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET last_run_at = $2,
			next_run_at = $3,
			processing_locked_at = NULL,
			updated_at = now()
		WHERE id = $1
	`, scheduleID, lastRunAt, nextRunAt)
	if err != nil {
		return fmt.Errorf("complete tick: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSchedulesRepository) ReleaseLock(ctx context.Context, scheduleID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE schedules SET processing_locked_at = NULL WHERE id = $1
	`, scheduleID)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (r *PostgresSchedulesRepository) GetSchedule(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	schedules, err := scanSchedules(rows)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, ErrNotFound
	}
	return &schedules[0], nil
}

func (r *PostgresSchedulesRepository) RecordFailure(ctx context.Context, scheduleID, message string, at time.Time) (bool, error) {
	var active bool
	var failures int
	err := r.pool.QueryRow(ctx, `
		UPDATE schedules
		SET consecutive_failures = consecutive_failures + 1,
			last_error = $2,
			last_error_at = $3,
			active = CASE WHEN consecutive_failures + 1 >= $4 THEN false ELSE active END,
			updated_at = now()
		WHERE id = $1
		RETURNING active, consecutive_failures
	`, scheduleID, message, at, domain.AutoPauseThreshold).Scan(&active, &failures)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("record failure: %w", err)
	}
	return !active && failures == domain.AutoPauseThreshold, nil
}

func (r *PostgresSchedulesRepository) ResetFailures(ctx context.Context, scheduleID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET consecutive_failures = 0,
			last_error = NULL,
			last_error_at = NULL,
			updated_at = now()
		WHERE id = $1
	`, scheduleID)
	if err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}

func scanSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		var (
			schedule       domain.Schedule
			reportType     string
			cadence        string
			recipientsJSON []byte
			filtersJSON    []byte
			lastError      *string
		)
		err := rows.Scan(
			&schedule.ID, &schedule.AccountID, &schedule.Name, &reportType,
			&schedule.City, &schedule.ZipCodes, &schedule.LookbackDays,
			&cadence, &schedule.WeeklyDOW, &schedule.MonthlyDOM,
			&schedule.SendHour, &schedule.SendMinute, &schedule.Timezone,
			&recipientsJSON, &filtersJSON,
			&schedule.IncludeAttachment, &schedule.Active,
			&schedule.LastRunAt, &schedule.NextRunAt, &schedule.ProcessingLockedAt,
			&schedule.ConsecutiveFailures, &lastError, &schedule.LastErrorAt,
			&schedule.CreatedAt, &schedule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}

		schedule.ReportType = domain.ReportType(reportType)
		schedule.Cadence = domain.Cadence(cadence)
		if lastError != nil {
			schedule.LastError = *lastError
		}
		if schedule.Recipients, err = domain.DecodeRecipients(recipientsJSON); err != nil {
			return nil, err
		}
		if len(filtersJSON) > 0 {
			filters, err := decodeFilters(filtersJSON)
			if err != nil {
				return nil, err
			}
			schedule.Filters = filters
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}
