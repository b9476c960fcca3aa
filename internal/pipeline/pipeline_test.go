package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/mail"
	"github.com/homescope/reports-back/internal/mls"
	"github.com/homescope/reports-back/internal/pdf"
	"github.com/homescope/reports-back/internal/report"
	"github.com/homescope/reports-back/internal/repository"
	"github.com/homescope/reports-back/internal/usage"
)

var pipelineNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

type fakeBuilder struct {
	payload *report.Payload
	err     error
	calls   int
}

func (b *fakeBuilder) Build(_ context.Context, reportType domain.ReportType, reportCtx report.Context) (*report.Payload, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	payload := *b.payload
	payload.ReportType = reportType
	payload.Area = reportCtx.Area()
	payload.LookbackDays = reportCtx.LookbackDays
	return &payload, nil
}

type fakePhotos struct{ calls int }

func (p *fakePhotos) RewriteHeroPhotos(_ context.Context, accountID, runID string, cards []report.ListingCard) {
	p.calls++
	for i := range cards {
		if cards[i].HeroPhotoURL != "" {
			cards[i].HeroPhotoURL = fmt.Sprintf("https://cdn.homescope.io/report-photos/%s/%s/%d.jpg", accountID, runID, i)
		}
	}
}

type fakePDF struct {
	url   string
	err   error
	calls int
}

func (p *fakePDF) RenderAndStore(_ context.Context, accountID, runID string, _ domain.ReportType, _ string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

func (p *fakePDF) PrintURL(runID string) string {
	return "https://worker.internal/print/" + runID
}

type fakeResolver struct{ emails []string }

func (r *fakeResolver) Resolve(context.Context, string, []domain.RecipientDescriptor) ([]string, error) {
	return r.emails, nil
}

type fakeMailer struct {
	err      error
	requests []mail.Request
}

func (m *fakeMailer) Send(_ context.Context, request mail.Request) error {
	m.requests = append(m.requests, request)
	return m.err
}

type fakeGovernor struct {
	decision usage.Decision
	info     usage.Info
	calls    int
}

func (g *fakeGovernor) Evaluate(context.Context, string, time.Time) (usage.Decision, usage.Info, error) {
	g.calls++
	return g.decision, g.info, nil
}

type fakeBrands struct{}

func (fakeBrands) Compose(context.Context, string) (domain.Brand, error) {
	return domain.Brand{DisplayName: "Jane Sells Homes"}, nil
}

type fixture struct {
	pipeline  *Pipeline
	builder   *fakeBuilder
	photos    *fakePhotos
	pdfSvc    *fakePDF
	mailer    *fakeMailer
	governor  *fakeGovernor
	schedules *repository.MemorySchedulesRepository
	reports   *repository.MemoryReportsRepository
	accounts  *repository.MemoryAccountsRepository
}

func newPipelineFixture() *fixture {
	fx := &fixture{
		builder:   &fakeBuilder{payload: &report.Payload{TotalListings: 9, GeneratedAt: pipelineNow}},
		photos:    &fakePhotos{},
		pdfSvc:    &fakePDF{url: "https://cdn.homescope.io/reports/acct-1/Austin_MarketSnapshot_run-1.pdf"},
		mailer:    &fakeMailer{},
		governor:  &fakeGovernor{decision: usage.Allow},
		schedules: repository.NewMemorySchedulesRepository(),
		reports:   repository.NewMemoryReportsRepository(),
		accounts:  repository.NewMemoryAccountsRepository(),
	}
	fx.pipeline = New(Deps{
		Builder:    fx.builder,
		Photos:     fx.photos,
		PDF:        fx.pdfSvc,
		Recipients: &fakeResolver{emails: []string{"buyer@example.com"}},
		Mailer:     fx.mailer,
		Governor:   fx.governor,
		Brands:     fakeBrands{},
		Schedules:  fx.schedules,
		Reports:    fx.reports,
		Accounts:   fx.accounts,
		Logger:     log.New(io.Discard, "", 0),
	})
	fx.pipeline.now = func() time.Time { return pipelineNow }
	return fx
}

func (fx *fixture) seedScheduledRun(t *testing.T, reportType domain.ReportType) domain.JobMessage {
	t.Helper()
	ctx := context.Background()

	fx.accounts.PutAccount(&domain.Account{ID: "acct-1", Name: "Jane Realty", IsActive: true})
	fx.schedules.Put(&domain.Schedule{
		ID:         "sched-1",
		AccountID:  "acct-1",
		ReportType: reportType,
		City:       "Austin",
		Cadence:    domain.CadenceWeekly,
		Active:     true,
		Recipients: []domain.RecipientDescriptor{domain.ManualEmailRecipient("buyer@example.com")},
	})
	fx.reports.LinkScheduleAccount("sched-1", "acct-1")

	if err := fx.reports.CreateReport(ctx, &domain.ReportGeneration{
		ID: "run-1", AccountID: "acct-1", ReportType: reportType,
		Status: domain.ReportStatusQueued, ScheduleID: "sched-1", GeneratedAt: pipelineNow,
	}); err != nil {
		t.Fatalf("seed report: %v", err)
	}
	if err := fx.reports.CreateScheduleRun(ctx, &domain.ScheduleRun{
		ID: "sr-1", ScheduleID: "sched-1", ReportRunID: "run-1",
		Status: domain.ScheduleRunQueued, CreatedAt: pipelineNow,
	}); err != nil {
		t.Fatalf("seed schedule run: %v", err)
	}

	return domain.JobMessage{
		RunID:      "run-1",
		AccountID:  "acct-1",
		ReportType: reportType,
		Params: domain.ReportParams{
			City: "Austin", LookbackDays: 30, ScheduleID: "sched-1",
		},
		RequestedAt: pipelineNow,
	}
}

func TestRunScheduledHappyPath(t *testing.T) {
	fx := newPipelineFixture()
	message := fx.seedScheduledRun(t, domain.ReportMarketSnapshot)

	if err := fx.pipeline.Run(context.Background(), message); err != nil {
		t.Fatalf("Run: %v", err)
	}

	row, _ := fx.reports.GetReport(context.Background(), "run-1")
	if row.Status != domain.ReportStatusCompleted {
		t.Errorf("report status = %s, want completed", row.Status)
	}
	if row.PDFURL == "" || !strings.Contains(row.PDFURL, "cdn.homescope.io") {
		t.Errorf("pdf_url = %q", row.PDFURL)
	}
	if row.HTMLURL != "https://worker.internal/print/run-1" {
		t.Errorf("html_url = %q", row.HTMLURL)
	}
	if row.SourceVendor != sourceVendor {
		t.Errorf("source_vendor = %q", row.SourceVendor)
	}

	run, _ := fx.reports.GetScheduleRunByReport(context.Background(), "run-1")
	if run.Status != domain.ScheduleRunCompleted {
		t.Errorf("schedule run status = %s, want completed", run.Status)
	}
	if len(fx.mailer.requests) != 1 {
		t.Fatalf("mailer requests = %d, want 1", len(fx.mailer.requests))
	}
	if fx.mailer.requests[0].PDFURL != row.PDFURL {
		t.Errorf("email pdf url = %q", fx.mailer.requests[0].PDFURL)
	}
	if fx.governor.calls != 1 {
		t.Errorf("governor calls = %d, want 1", fx.governor.calls)
	}
}

func TestRunBlockedByLimit(t *testing.T) {
	fx := newPipelineFixture()
	fx.governor.decision = usage.Block
	fx.governor.info = usage.Info{Usage: 56, Limit: 50}
	message := fx.seedScheduledRun(t, domain.ReportMarketSnapshot)

	if err := fx.pipeline.Run(context.Background(), message); err != nil {
		t.Fatalf("Run: %v", err)
	}

	row, _ := fx.reports.GetReport(context.Background(), "run-1")
	if row.Status != domain.ReportStatusSkippedLimit {
		t.Errorf("report status = %s, want skipped_limit", row.Status)
	}
	run, _ := fx.reports.GetScheduleRunByReport(context.Background(), "run-1")
	if run.Status != domain.ScheduleRunSkippedLimit {
		t.Errorf("schedule run status = %s, want skipped_limit", run.Status)
	}
	if fx.builder.calls != 0 {
		t.Errorf("builder called %d times on a blocked run", fx.builder.calls)
	}
	if len(fx.mailer.requests) != 0 {
		t.Errorf("email sent on a blocked run")
	}
}

func TestRunMarketDataUnavailable(t *testing.T) {
	fx := newPipelineFixture()
	fx.builder.err = fmt.Errorf("fetch properties: %w", mls.ErrMarketDataUnavailable)
	message := fx.seedScheduledRun(t, domain.ReportMarketSnapshot)

	if err := fx.pipeline.Run(context.Background(), message); err != nil {
		t.Fatalf("Run should handle market data failure internally: %v", err)
	}

	row, _ := fx.reports.GetReport(context.Background(), "run-1")
	if row.Status != domain.ReportStatusFailed {
		t.Errorf("report status = %s, want failed", row.Status)
	}
	run, _ := fx.reports.GetScheduleRunByReport(context.Background(), "run-1")
	if run.Status != domain.ScheduleRunFailed {
		t.Errorf("schedule run status = %s, want failed", run.Status)
	}
	schedule, _ := fx.schedules.GetSchedule(context.Background(), "sched-1")
	if schedule.ConsecutiveFailures != 1 {
		t.Errorf("consecutive_failures = %d, want 1", schedule.ConsecutiveFailures)
	}
}

func TestRunRenderFailure(t *testing.T) {
	fx := newPipelineFixture()
	fx.pdfSvc.err = fmt.Errorf("%w: backend returned 502", pdf.ErrRenderFailed)
	message := fx.seedScheduledRun(t, domain.ReportMarketSnapshot)

	if err := fx.pipeline.Run(context.Background(), message); err != nil {
		t.Fatalf("Run should handle render failure internally: %v", err)
	}

	row, _ := fx.reports.GetReport(context.Background(), "run-1")
	if row.Status != domain.ReportStatusFailed {
		t.Errorf("report status = %s, want failed", row.Status)
	}
	if !strings.Contains(row.Error, "pdf render failed") {
		t.Errorf("report error = %q", row.Error)
	}
}

func TestRunEmailFailureKeepsReportCompleted(t *testing.T) {
	fx := newPipelineFixture()
	fx.mailer.err = mail.ErrEmailSendFailed
	message := fx.seedScheduledRun(t, domain.ReportMarketSnapshot)

	if err := fx.pipeline.Run(context.Background(), message); err != nil {
		t.Fatalf("Run should handle email failure internally: %v", err)
	}

	row, _ := fx.reports.GetReport(context.Background(), "run-1")
	if row.Status != domain.ReportStatusCompleted {
		t.Errorf("report status = %s, want completed despite email failure", row.Status)
	}
	run, _ := fx.reports.GetScheduleRunByReport(context.Background(), "run-1")
	if run.Status != domain.ScheduleRunFailedEmail {
		t.Errorf("schedule run status = %s, want failed_email", run.Status)
	}
	schedule, _ := fx.schedules.GetSchedule(context.Background(), "sched-1")
	if schedule.ConsecutiveFailures != 1 {
		t.Errorf("consecutive_failures = %d, want 1 (email failures count)", schedule.ConsecutiveFailures)
	}
}

func TestRunAutoPauseAfterThreeEmailFailures(t *testing.T) {
	fx := newPipelineFixture()
	fx.mailer.err = mail.ErrEmailSendFailed
	message := fx.seedScheduledRun(t, domain.ReportMarketSnapshot)

	for i := 0; i < domain.AutoPauseThreshold; i++ {
		// Reset the run back to queued to simulate three separate firings.
		if err := fx.reports.CreateReport(context.Background(), &domain.ReportGeneration{
			ID: "run-1", AccountID: "acct-1", ReportType: domain.ReportMarketSnapshot,
			Status: domain.ReportStatusQueued, ScheduleID: "sched-1", GeneratedAt: pipelineNow,
		}); err != nil {
			t.Fatalf("reseed report: %v", err)
		}
		if err := fx.pipeline.Run(context.Background(), message); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	schedule, _ := fx.schedules.GetSchedule(context.Background(), "sched-1")
	if schedule.Active {
		t.Error("schedule still active after three consecutive failures")
	}
	if schedule.ConsecutiveFailures != domain.AutoPauseThreshold {
		t.Errorf("consecutive_failures = %d, want %d", schedule.ConsecutiveFailures, domain.AutoPauseThreshold)
	}
}

func TestRunRedeliveryAfterCompletionSkipsToEmail(t *testing.T) {
	fx := newPipelineFixture()
	message := fx.seedScheduledRun(t, domain.ReportMarketSnapshot)
	ctx := context.Background()

	// Simulate a worker crash after completion but before email.
	resultJSON, _ := json.Marshal(&report.Payload{Area: "Austin", LookbackDays: 30, TotalListings: 9})
	if err := fx.reports.SaveReportResult(ctx, "run-1", resultJSON); err != nil {
		t.Fatalf("SaveReportResult: %v", err)
	}
	if err := fx.reports.SaveReportArtifacts(ctx, "run-1", "https://cdn/x.pdf", "https://cdn/x.html"); err != nil {
		t.Fatalf("SaveReportArtifacts: %v", err)
	}
	if err := fx.reports.CompleteReport(ctx, "run-1", 1000); err != nil {
		t.Fatalf("CompleteReport: %v", err)
	}

	if err := fx.pipeline.Run(ctx, message); err != nil {
		t.Fatalf("Run on redelivery: %v", err)
	}
	if fx.builder.calls != 0 {
		t.Errorf("builder called %d times on redelivery of a completed run", fx.builder.calls)
	}
	if fx.pdfSvc.calls != 0 {
		t.Errorf("pdf rendered %d times on redelivery of a completed run", fx.pdfSvc.calls)
	}
	if len(fx.mailer.requests) != 1 {
		t.Fatalf("mailer requests = %d, want 1", len(fx.mailer.requests))
	}
	run, _ := fx.reports.GetScheduleRunByReport(ctx, "run-1")
	if run.Status != domain.ScheduleRunCompleted {
		t.Errorf("schedule run status = %s, want completed", run.Status)
	}
}

func TestRunGalleryRewritesPhotosInResult(t *testing.T) {
	fx := newPipelineFixture()
	fx.builder.payload = &report.Payload{
		TotalListings: 2,
		Listings: []report.ListingCard{
			{MLSID: "m1", HeroPhotoURL: "https://vendor.example.com/1.jpg"},
			{MLSID: "m2", HeroPhotoURL: "https://vendor.example.com/2.jpg"},
		},
	}
	message := fx.seedScheduledRun(t, domain.ReportNewListingsGallery)

	if err := fx.pipeline.Run(context.Background(), message); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fx.photos.calls != 1 {
		t.Fatalf("photo rewriter calls = %d, want 1", fx.photos.calls)
	}

	row, _ := fx.reports.GetReport(context.Background(), "run-1")
	var stored report.Payload
	if err := json.Unmarshal(row.ResultJSON, &stored); err != nil {
		t.Fatalf("decode stored payload: %v", err)
	}
	for _, card := range stored.Listings {
		if !strings.HasPrefix(card.HeroPhotoURL, "https://cdn.homescope.io/") {
			t.Errorf("hero photo %q not re-hosted", card.HeroPhotoURL)
		}
		if strings.Contains(card.HeroPhotoURL, "vendor.example.com") {
			t.Errorf("original vendor URL leaked: %q", card.HeroPhotoURL)
		}
	}
}

func TestRunNonGallerySkipsPhotoProxy(t *testing.T) {
	fx := newPipelineFixture()
	fx.builder.payload = &report.Payload{
		TotalListings: 1,
		Listings:      []report.ListingCard{{MLSID: "m1", HeroPhotoURL: "https://vendor.example.com/1.jpg"}},
	}
	message := fx.seedScheduledRun(t, domain.ReportNewListings)

	if err := fx.pipeline.Run(context.Background(), message); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fx.photos.calls != 0 {
		t.Errorf("photo rewriter calls = %d, want 0 for a non-gallery type", fx.photos.calls)
	}
}

func TestRunAdHocSkipsScheduleLeg(t *testing.T) {
	fx := newPipelineFixture()
	ctx := context.Background()
	fx.accounts.PutAccount(&domain.Account{ID: "acct-1", Name: "Jane Realty", IsActive: true})
	if err := fx.reports.CreateReport(ctx, &domain.ReportGeneration{
		ID: "run-2", AccountID: "acct-1", ReportType: domain.ReportInventory,
		Status: domain.ReportStatusQueued, GeneratedAt: pipelineNow,
	}); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	message := domain.JobMessage{
		RunID: "run-2", AccountID: "acct-1", ReportType: domain.ReportInventory,
		Params: domain.ReportParams{City: "Austin", LookbackDays: 30},
	}
	if err := fx.pipeline.Run(ctx, message); err != nil {
		t.Fatalf("Run: %v", err)
	}

	row, _ := fx.reports.GetReport(ctx, "run-2")
	if row.Status != domain.ReportStatusCompleted {
		t.Errorf("report status = %s, want completed", row.Status)
	}
	if fx.governor.calls != 0 {
		t.Errorf("governor consulted for an ad hoc run")
	}
	if len(fx.mailer.requests) != 0 {
		t.Errorf("email sent for an ad hoc run")
	}
}

func TestHandleExhaustedMarksFailed(t *testing.T) {
	fx := newPipelineFixture()
	message := fx.seedScheduledRun(t, domain.ReportMarketSnapshot)

	fx.pipeline.HandleExhausted(context.Background(), message, errors.New("connection reset"))

	row, _ := fx.reports.GetReport(context.Background(), "run-1")
	if row.Status != domain.ReportStatusFailed {
		t.Errorf("report status = %s, want failed", row.Status)
	}
	if !strings.Contains(row.Error, "retries exhausted") {
		t.Errorf("report error = %q", row.Error)
	}
}
