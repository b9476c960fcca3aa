package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresReportsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReportsRepository(pool *pgxpool.Pool) *PostgresReportsRepository {
	return &PostgresReportsRepository{pool: pool}
}

func (r *PostgresReportsRepository) CreateReport(ctx context.Context, report *domain.ReportGeneration) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO report_generations (
			id, account_id, report_type, input_params, status,
			source_vendor, schedule_id, generated_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9)
	`,
		report.ID, report.AccountID, string(report.ReportType), report.InputParams,
		string(report.Status), report.SourceVendor, report.ScheduleID,
		report.GeneratedAt, report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report generation: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) GetReport(ctx context.Context, reportID string) (*domain.ReportGeneration, error) {
	var (
		report     domain.ReportGeneration
		reportType string
		status     string
		scheduleID *string
		optional   = struct {
			resultJSON   []byte
			pdfURL       *string
			htmlURL      *string
			jsonURL      *string
			processingMS *int64
			errMessage   *string
		}{}
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, report_type, input_params, status, result_json,
			pdf_url, html_url, json_url, source_vendor, processing_time_ms,
			error, schedule_id, generated_at, updated_at
		FROM report_generations
		WHERE id = $1
	`, reportID).Scan(
		&report.ID, &report.AccountID, &reportType, &report.InputParams, &status,
		&optional.resultJSON, &optional.pdfURL, &optional.htmlURL, &optional.jsonURL,
		&report.SourceVendor, &optional.processingMS, &optional.errMessage,
		&scheduleID, &report.GeneratedAt, &report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get report generation: %w", err)
	}

	report.ReportType = domain.ReportType(reportType)
	report.Status = domain.ReportStatus(status)
	report.ResultJSON = optional.resultJSON
	if optional.pdfURL != nil {
		report.PDFURL = *optional.pdfURL
	}
	if optional.htmlURL != nil {
		report.HTMLURL = *optional.htmlURL
	}
	if optional.jsonURL != nil {
		report.JSONURL = *optional.jsonURL
	}
	if optional.processingMS != nil {
		report.ProcessingTimeMS = *optional.processingMS
	}
	if optional.errMessage != nil {
		report.Error = *optional.errMessage
	}
	if scheduleID != nil {
		report.ScheduleID = *scheduleID
	}
	return &report, nil
}

func (r *PostgresReportsRepository) MarkReportProcessing(ctx context.Context, reportID, sourceVendor string, inputParams json.RawMessage) error {
	return r.execReport(ctx, `
		UPDATE report_generations
		SET status = 'processing', source_vendor = $2, input_params = $3, updated_at = now()
		WHERE id = $1
	`, reportID, sourceVendor, inputParams)
}

func (r *PostgresReportsRepository) SaveReportResult(ctx context.Context, reportID string, resultJSON json.RawMessage) error {
	return r.execReport(ctx, `
		UPDATE report_generations SET result_json = $2, updated_at = now() WHERE id = $1
	`, reportID, resultJSON)
}

func (r *PostgresReportsRepository) SaveReportArtifacts(ctx context.Context, reportID, pdfURL, htmlURL string) error {
	return r.execReport(ctx, `
		UPDATE report_generations
		SET pdf_url = NULLIF($2,''), html_url = NULLIF($3,''), updated_at = now()
		WHERE id = $1
	`, reportID, pdfURL, htmlURL)
}

func (r *PostgresReportsRepository) CompleteReport(ctx context.Context, reportID string, processingTimeMS int64) error {
	return r.execReport(ctx, `
		UPDATE report_generations
		SET status = 'completed', processing_time_ms = $2, error = NULL, updated_at = now()
		WHERE id = $1
	`, reportID, processingTimeMS)
}

func (r *PostgresReportsRepository) FailReport(ctx context.Context, reportID, message string) error {
	return r.execReport(ctx, `
		UPDATE report_generations
		SET status = 'failed', error = $2, updated_at = now()
		WHERE id = $1
	`, reportID, truncateError(message))
}

func (r *PostgresReportsRepository) SkipReportLimit(ctx context.Context, reportID string) error {
	return r.execReport(ctx, `
		UPDATE report_generations SET status = 'skipped_limit', updated_at = now() WHERE id = $1
	`, reportID)
}

func (r *PostgresReportsRepository) execReport(ctx context.Context, sql string, args ...any) error {
	command, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update report generation: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresReportsRepository) CreateScheduleRun(ctx context.Context, run *domain.ScheduleRun) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_runs (id, schedule_id, report_run_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, run.ID, run.ScheduleID, run.ReportRunID, string(run.Status), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert schedule run: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) StartScheduleRun(ctx context.Context, reportID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE schedule_runs SET status = 'processing', started_at = $2 WHERE report_run_id = $1
	`, reportID, at)
	if err != nil {
		return fmt.Errorf("start schedule run: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) FinishScheduleRun(ctx context.Context, reportID string, status domain.ScheduleRunStatus, message string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE schedule_runs
		SET status = $2, error = NULLIF($3,''), finished_at = $4
		WHERE report_run_id = $1
	`, reportID, string(status), truncateError(message), at)
	if err != nil {
		return fmt.Errorf("finish schedule run: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) GetScheduleRunByReport(ctx context.Context, reportID string) (*domain.ScheduleRun, error) {
	var (
		run        domain.ScheduleRun
		status     string
		errMessage *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, schedule_id, report_run_id, status, started_at, finished_at, error, created_at
		FROM schedule_runs
		WHERE report_run_id = $1
	`, reportID).Scan(
		&run.ID, &run.ScheduleID, &run.ReportRunID, &status,
		&run.StartedAt, &run.FinishedAt, &errMessage, &run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get schedule run: %w", err)
	}
	run.Status = domain.ScheduleRunStatus(status)
	if errMessage != nil {
		run.Error = *errMessage
	}
	return &run, nil
}

func (r *PostgresReportsRepository) CountMonthlyUsage(ctx context.Context, accountID string, monthStart, monthEnd time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM report_generations
			 WHERE account_id = $1
			   AND generated_at BETWEEN $2 AND $3
			   AND status IN ('completed','processing'))
			+
			(SELECT count(*) FROM schedule_runs sr
			 JOIN schedules s ON s.id = sr.schedule_id
			 WHERE s.account_id = $1
			   AND sr.created_at BETWEEN $2 AND $3
			   AND sr.status IN ('completed','processing'))
	`, accountID, monthStart, monthEnd).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count monthly usage: %w", err)
	}
	return count, nil
}

// truncateError keeps stored error text at a sane column size.
func truncateError(message string) string {
	const maxLen = 500
	if len(message) > maxLen {
		return message[:maxLen]
	}
	return message
}
