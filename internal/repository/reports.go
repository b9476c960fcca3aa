package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/homescope/reports-back/internal/domain"
)

// ReportsRepository covers report_generations and schedule_runs. The
// two move together through the pipeline, so one gateway owns both.
type ReportsRepository interface {
	CreateReport(ctx context.Context, report *domain.ReportGeneration) error
	GetReport(ctx context.Context, reportID string) (*domain.ReportGeneration, error)
	MarkReportProcessing(ctx context.Context, reportID, sourceVendor string, inputParams json.RawMessage) error
	SaveReportResult(ctx context.Context, reportID string, resultJSON json.RawMessage) error
	SaveReportArtifacts(ctx context.Context, reportID, pdfURL, htmlURL string) error
	CompleteReport(ctx context.Context, reportID string, processingTimeMS int64) error
	FailReport(ctx context.Context, reportID, message string) error
	SkipReportLimit(ctx context.Context, reportID string) error

	CreateScheduleRun(ctx context.Context, run *domain.ScheduleRun) error
	// StartScheduleRun and FinishScheduleRun address the run through
	// the report it links to; the pipeline only knows the report id.
	StartScheduleRun(ctx context.Context, reportID string, at time.Time) error
	FinishScheduleRun(ctx context.Context, reportID string, status domain.ScheduleRunStatus, message string, at time.Time) error
	GetScheduleRunByReport(ctx context.Context, reportID string) (*domain.ScheduleRun, error)

	// CountMonthlyUsage is the usage governor's combined count of
	// report generations and schedule runs in the window with status
	// completed or processing.
	CountMonthlyUsage(ctx context.Context, accountID string, monthStart, monthEnd time.Time) (int, error)
}

// MemoryReportsRepository backs tests and local development.
type MemoryReportsRepository struct {
	mu      sync.Mutex
	reports map[string]*domain.ReportGeneration
	runs    map[string]*domain.ScheduleRun // keyed by report id

	// scheduleAccounts lets usage counting attribute runs to accounts
	// without a join table.
	scheduleAccounts map[string]string
}

func NewMemoryReportsRepository() *MemoryReportsRepository {
	return &MemoryReportsRepository{
		reports:          make(map[string]*domain.ReportGeneration),
		runs:             make(map[string]*domain.ScheduleRun),
		scheduleAccounts: make(map[string]string),
	}
}

// LinkScheduleAccount registers which account owns a schedule so
// CountMonthlyUsage can attribute its runs.
func (r *MemoryReportsRepository) LinkScheduleAccount(scheduleID, accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduleAccounts[scheduleID] = accountID
}

func (r *MemoryReportsRepository) CreateReport(_ context.Context, report *domain.ReportGeneration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *report
	r.reports[report.ID] = &clone
	return nil
}

func (r *MemoryReportsRepository) GetReport(_ context.Context, reportID string) (*domain.ReportGeneration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *report
	return &clone, nil
}

func (r *MemoryReportsRepository) MarkReportProcessing(_ context.Context, reportID, sourceVendor string, inputParams json.RawMessage) error {
	return r.mutateReport(reportID, func(report *domain.ReportGeneration) {
		report.Status = domain.ReportStatusProcessing
		report.SourceVendor = sourceVendor
		report.InputParams = append(json.RawMessage(nil), inputParams...)
	})
}

func (r *MemoryReportsRepository) SaveReportResult(_ context.Context, reportID string, resultJSON json.RawMessage) error {
	return r.mutateReport(reportID, func(report *domain.ReportGeneration) {
		report.ResultJSON = append(json.RawMessage(nil), resultJSON...)
	})
}

func (r *MemoryReportsRepository) SaveReportArtifacts(_ context.Context, reportID, pdfURL, htmlURL string) error {
	return r.mutateReport(reportID, func(report *domain.ReportGeneration) {
		report.PDFURL = pdfURL
		report.HTMLURL = htmlURL
	})
}

func (r *MemoryReportsRepository) CompleteReport(_ context.Context, reportID string, processingTimeMS int64) error {
	return r.mutateReport(reportID, func(report *domain.ReportGeneration) {
		report.Status = domain.ReportStatusCompleted
		report.ProcessingTimeMS = processingTimeMS
		report.Error = ""
	})
}

func (r *MemoryReportsRepository) FailReport(_ context.Context, reportID, message string) error {
	return r.mutateReport(reportID, func(report *domain.ReportGeneration) {
		report.Status = domain.ReportStatusFailed
		report.Error = message
	})
}

func (r *MemoryReportsRepository) SkipReportLimit(_ context.Context, reportID string) error {
	return r.mutateReport(reportID, func(report *domain.ReportGeneration) {
		report.Status = domain.ReportStatusSkippedLimit
	})
}

func (r *MemoryReportsRepository) mutateReport(reportID string, mutate func(*domain.ReportGeneration)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	mutate(report)
	report.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryReportsRepository) CreateScheduleRun(_ context.Context, run *domain.ScheduleRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *run
	r.runs[run.ReportRunID] = &clone
	return nil
}

func (r *MemoryReportsRepository) StartScheduleRun(_ context.Context, reportID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[reportID]
	if !ok {
		return ErrNotFound
	}
	run.Status = domain.ScheduleRunProcessing
	run.StartedAt = &at
	return nil
}

func (r *MemoryReportsRepository) FinishScheduleRun(_ context.Context, reportID string, status domain.ScheduleRunStatus, message string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[reportID]
	if !ok {
		return ErrNotFound
	}
	run.Status = status
	run.Error = message
	run.FinishedAt = &at
	return nil
}

func (r *MemoryReportsRepository) GetScheduleRunByReport(_ context.Context, reportID string) (*domain.ScheduleRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *run
	return &clone, nil
}

func (r *MemoryReportsRepository) CountMonthlyUsage(_ context.Context, accountID string, monthStart, monthEnd time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, report := range r.reports {
		if report.AccountID != accountID {
			continue
		}
		if report.GeneratedAt.Before(monthStart) || report.GeneratedAt.After(monthEnd) {
			continue
		}
		if report.Status == domain.ReportStatusCompleted || report.Status == domain.ReportStatusProcessing {
			count++
		}
	}
	for _, run := range r.runs {
		if r.scheduleAccounts[run.ScheduleID] != accountID {
			continue
		}
		if run.CreatedAt.Before(monthStart) || run.CreatedAt.After(monthEnd) {
			continue
		}
		if run.Status == domain.ScheduleRunCompleted || run.Status == domain.ScheduleRunProcessing {
			count++
		}
	}
	return count, nil
}
