package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/mail"
	"github.com/homescope/reports-back/internal/mls"
	"github.com/homescope/reports-back/internal/pdf"
	"github.com/homescope/reports-back/internal/report"
	"github.com/homescope/reports-back/internal/repository"
	"github.com/homescope/reports-back/internal/usage"
)

const sourceVendor = "simplyrets"

// ReportBuilder produces a report payload from market data.
type ReportBuilder interface {
	Build(ctx context.Context, reportType domain.ReportType, reportCtx report.Context) (*report.Payload, error)
}

// PhotoRewriter re-hosts hero photos in place; failures keep the
// original URLs.
type PhotoRewriter interface {
	RewriteHeroPhotos(ctx context.Context, accountID, runID string, cards []report.ListingCard)
}

// PDFService renders and stores the run's PDF artifact.
type PDFService interface {
	RenderAndStore(ctx context.Context, accountID, runID string, reportType domain.ReportType, city string) (string, error)
	PrintURL(runID string) string
}

// RecipientResolver expands recipient descriptors into emails.
type RecipientResolver interface {
	Resolve(ctx context.Context, accountID string, descriptors []domain.RecipientDescriptor) ([]string, error)
}

// EmailSender delivers the report email fan-out.
type EmailSender interface {
	Send(ctx context.Context, request mail.Request) error
}

// Governor gates scheduled runs on plan usage.
type Governor interface {
	Evaluate(ctx context.Context, accountID string, now time.Time) (usage.Decision, usage.Info, error)
}

// BrandComposer derives the presentation brand for an account.
type BrandComposer interface {
	Compose(ctx context.Context, accountID string) (domain.Brand, error)
}

// Pipeline runs one report job end to end: guard, fetch, build,
// persist, render, deliver. Each state transition commits
// independently so a crash never rolls back upstream progress.
type Pipeline struct {
	builder    ReportBuilder
	photos     PhotoRewriter
	pdf        PDFService
	recipients RecipientResolver
	mailer     EmailSender
	governor   Governor
	brands     BrandComposer

	schedules repository.SchedulesRepository
	reports   repository.ReportsRepository
	accounts  repository.AccountsRepository

	logger *log.Logger
	now    func() time.Time
}

type Deps struct {
	Builder    ReportBuilder
	Photos     PhotoRewriter
	PDF        PDFService
	Recipients RecipientResolver
	Mailer     EmailSender
	Governor   Governor
	Brands     BrandComposer
	Schedules  repository.SchedulesRepository
	Reports    repository.ReportsRepository
	Accounts   repository.AccountsRepository
	Logger     *log.Logger
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		builder:    deps.Builder,
		photos:     deps.Photos,
		pdf:        deps.PDF,
		recipients: deps.Recipients,
		mailer:     deps.Mailer,
		governor:   deps.Governor,
		brands:     deps.Brands,
		schedules:  deps.Schedules,
		reports:    deps.Reports,
		accounts:   deps.Accounts,
		logger:     deps.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run processes one job message. A nil return means the job reached a
// terminal state (including handled business failures); a non-nil
// return asks the queue to redeliver.
func (p *Pipeline) Run(ctx context.Context, message domain.JobMessage) error {
	started := p.now()

	row, err := p.reports.GetReport(ctx, message.RunID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", message.RunID, err)
	}

	switch row.Status {
	case domain.ReportStatusFailed, domain.ReportStatusSkippedLimit:
		p.logger.Printf("pipeline: run %s already terminal (%s), dropping redelivery", message.RunID, row.Status)
		return nil
	case domain.ReportStatusCompleted:
		// Redelivered after a crash between completion and email: skip
		// straight to delivery. A duplicate email is accepted.
		p.logger.Printf("pipeline: run %s already completed, resuming at email", message.RunID)
		return p.deliver(ctx, message, row)
	}

	if message.Params.ScheduleID != "" {
		blocked, err := p.gateOnUsage(ctx, message)
		if err != nil {
			return err
		}
		if blocked {
			return nil
		}
		if err := p.reports.StartScheduleRun(ctx, message.RunID, started); err != nil {
			return fmt.Errorf("start schedule run for %s: %w", message.RunID, err)
		}
	}

	inputParams, err := json.Marshal(message.Params)
	if err != nil {
		return fmt.Errorf("encode input params: %w", err)
	}
	if err := p.reports.MarkReportProcessing(ctx, message.RunID, sourceVendor, inputParams); err != nil {
		return fmt.Errorf("mark report processing: %w", err)
	}

	payload, err := p.builder.Build(ctx, message.ReportType, report.Context{
		City:         message.Params.City,
		ZipCodes:     message.Params.ZipCodes,
		LookbackDays: message.Params.LookbackDays,
		GeneratedAt:  started,
		Filters:      message.Params.Filters,
	})
	if err != nil {
		if errors.Is(err, mls.ErrMarketDataUnavailable) {
			return p.failRun(ctx, message, fmt.Sprintf("market data unavailable: %v", err))
		}
		return fmt.Errorf("build %s report for run %s: %w", message.ReportType, message.RunID, err)
	}

	resultJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode result payload: %w", err)
	}
	if err := p.reports.SaveReportResult(ctx, message.RunID, resultJSON); err != nil {
		return fmt.Errorf("save report result: %w", err)
	}

	if message.ReportType.GalleryType() && p.photos != nil && len(payload.Listings) > 0 {
		p.photos.RewriteHeroPhotos(ctx, message.AccountID, message.RunID, payload.Listings)
		rewritten, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode rewritten payload: %w", err)
		}
		if err := p.reports.SaveReportResult(ctx, message.RunID, rewritten); err != nil {
			return fmt.Errorf("save rewritten result: %w", err)
		}
	}

	pdfURL, err := p.pdf.RenderAndStore(ctx, message.AccountID, message.RunID, message.ReportType, message.Params.City)
	if err != nil {
		if errors.Is(err, pdf.ErrRenderFailed) {
			return p.failRun(ctx, message, fmt.Sprintf("pdf render failed: %v", err))
		}
		return fmt.Errorf("render pdf for run %s: %w", message.RunID, err)
	}
	if err := p.reports.SaveReportArtifacts(ctx, message.RunID, pdfURL, p.pdf.PrintURL(message.RunID)); err != nil {
		return fmt.Errorf("save report artifacts: %w", err)
	}

	elapsed := p.now().Sub(started).Milliseconds()
	if err := p.reports.CompleteReport(ctx, message.RunID, elapsed); err != nil {
		return fmt.Errorf("complete report %s: %w", message.RunID, err)
	}

	row, err = p.reports.GetReport(ctx, message.RunID)
	if err != nil {
		return fmt.Errorf("reload report %s: %w", message.RunID, err)
	}
	return p.deliver(ctx, message, row)
}

// gateOnUsage consults the governor before any work is done. A BLOCK
// terminates the run as skipped_limit.
func (p *Pipeline) gateOnUsage(ctx context.Context, message domain.JobMessage) (blocked bool, err error) {
	decision, info, err := p.governor.Evaluate(ctx, message.AccountID, p.now())
	if err != nil {
		return false, fmt.Errorf("evaluate usage for %s: %w", message.AccountID, err)
	}
	if decision != usage.Block {
		if decision == usage.AllowWithWarning {
			p.logger.Printf("WARN: pipeline: account %s nearing plan limit: usage=%d limit=%d",
				message.AccountID, info.Usage, info.Limit)
		}
		return false, nil
	}

	p.logger.Printf("pipeline: run %s blocked by plan limit: usage=%d limit=%d",
		message.RunID, info.Usage, info.Limit)
	if err := p.reports.SkipReportLimit(ctx, message.RunID); err != nil {
		return false, fmt.Errorf("mark report skipped_limit: %w", err)
	}
	note := fmt.Sprintf("monthly report limit reached (%d/%d)", info.Usage, info.Limit)
	if err := p.reports.FinishScheduleRun(ctx, message.RunID, domain.ScheduleRunSkippedLimit, note, p.now()); err != nil {
		return false, fmt.Errorf("finish schedule run skipped_limit: %w", err)
	}
	return true, nil
}

// deliver handles the post-completion email leg for scheduled runs and
// closes out the schedule bookkeeping.
func (p *Pipeline) deliver(ctx context.Context, message domain.JobMessage, row *domain.ReportGeneration) error {
	if message.Params.ScheduleID == "" {
		return nil
	}

	schedule, err := p.schedules.GetSchedule(ctx, message.Params.ScheduleID)
	if err != nil {
		return fmt.Errorf("load schedule %s: %w", message.Params.ScheduleID, err)
	}
	account, err := p.accounts.GetAccount(ctx, message.AccountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", message.AccountID, err)
	}
	composed, err := p.brands.Compose(ctx, message.AccountID)
	if err != nil {
		return fmt.Errorf("compose brand: %w", err)
	}
	emails, err := p.recipients.Resolve(ctx, message.AccountID, schedule.Recipients)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	var payload report.Payload
	if len(row.ResultJSON) > 0 {
		if err := json.Unmarshal(row.ResultJSON, &payload); err != nil {
			return fmt.Errorf("decode stored payload: %w", err)
		}
	}

	sendErr := p.mailer.Send(ctx, mail.Request{
		AccountID:   message.AccountID,
		AccountName: account.Name,
		ScheduleID:  schedule.ID,
		ReportID:    message.RunID,
		ReportType:  message.ReportType,
		Area:        payload.Area,
		Lookback:    payload.LookbackDays,
		Payload:     &payload,
		PDFURL:      row.PDFURL,
		Brand:       composed,
		Recipients:  emails,
	})
	if sendErr != nil {
		if errors.Is(sendErr, mail.ErrEmailSendFailed) {
			return p.failEmail(ctx, message, sendErr)
		}
		return fmt.Errorf("send report email: %w", sendErr)
	}

	if err := p.reports.FinishScheduleRun(ctx, message.RunID, domain.ScheduleRunCompleted, "", p.now()); err != nil {
		return fmt.Errorf("finish schedule run: %w", err)
	}
	if err := p.schedules.ResetFailures(ctx, message.Params.ScheduleID); err != nil {
		return fmt.Errorf("reset schedule failures: %w", err)
	}
	return nil
}

// failRun terminates a run on a handled business failure. It is not
// retried by the queue.
func (p *Pipeline) failRun(ctx context.Context, message domain.JobMessage, reason string) error {
	p.logger.Printf("ERROR: pipeline: run %s failed: %s", message.RunID, reason)
	if err := p.reports.FailReport(ctx, message.RunID, reason); err != nil {
		return fmt.Errorf("mark report failed: %w", err)
	}
	if message.Params.ScheduleID == "" {
		return nil
	}
	if err := p.reports.FinishScheduleRun(ctx, message.RunID, domain.ScheduleRunFailed, reason, p.now()); err != nil {
		return fmt.Errorf("finish schedule run failed: %w", err)
	}
	return p.recordScheduleFailure(ctx, message.Params.ScheduleID, reason)
}

// failEmail marks the delivery leg failed while the report itself
// stays completed. Email failures count toward auto-pause.
func (p *Pipeline) failEmail(ctx context.Context, message domain.JobMessage, sendErr error) error {
	p.logger.Printf("ERROR: pipeline: run %s email delivery failed: %v", message.RunID, sendErr)
	if err := p.reports.FinishScheduleRun(ctx, message.RunID, domain.ScheduleRunFailedEmail, sendErr.Error(), p.now()); err != nil {
		return fmt.Errorf("finish schedule run failed_email: %w", err)
	}
	return p.recordScheduleFailure(ctx, message.Params.ScheduleID, sendErr.Error())
}

func (p *Pipeline) recordScheduleFailure(ctx context.Context, scheduleID, reason string) error {
	paused, err := p.schedules.RecordFailure(ctx, scheduleID, reason, p.now())
	if err != nil {
		return fmt.Errorf("record schedule failure: %w", err)
	}
	if paused {
		p.logger.Printf("WARN: pipeline: schedule %s auto-paused after %d consecutive failures",
			scheduleID, domain.AutoPauseThreshold)
	}
	return nil
}

// HandleExhausted is called by the worker when the queue has given up
// redelivering a job; it records the terminal failure.
func (p *Pipeline) HandleExhausted(ctx context.Context, message domain.JobMessage, lastErr error) {
	reason := fmt.Sprintf("retries exhausted: %v", lastErr)
	if err := p.failRun(ctx, message, reason); err != nil {
		p.logger.Printf("ERROR: pipeline: recording exhausted run %s: %v", message.RunID, err)
	}
}
