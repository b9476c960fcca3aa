package mail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/report"
	"github.com/homescope/reports-back/internal/repository"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrEmailSendFailed means every non-suppressed recipient failed after
// retries.
var ErrEmailSendFailed = errors.New("email send failed for all recipients")

const (
	maxSendAttempts   = 4 // initial try + 3 retries
	initialRetryDelay = 2 * time.Second
)

// sendClient is the slice of the sendgrid client the sender uses.
type sendClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// Request is one report email fan-out.
type Request struct {
	AccountID   string
	AccountName string
	ScheduleID  string
	ReportID    string
	ReportType  domain.ReportType
	Area        string
	Lookback    int
	Payload     *report.Payload
	PDFURL      string
	Brand       domain.Brand
	Recipients  []string
}

type Config struct {
	APIKey            string
	FromAddress       string
	FromName          string
	UnsubscribeSecret string
	UnsubscribeBase   string
}

// Sender composes the brand-aware report email and delivers it per
// recipient through the mail provider, recording every attempt in the
// email log.
type Sender struct {
	client  sendClient
	log     repository.EmailLogRepository
	config  Config
	logger  *log.Logger
	sleepFn func(time.Duration)
}

func NewSender(config Config, emailLog repository.EmailLogRepository, logger *log.Logger) *Sender {
	return &Sender{
		client:  sendgrid.NewSendClient(config.APIKey),
		log:     emailLog,
		config:  config,
		logger:  logger,
		sleepFn: time.Sleep,
	}
}

// Send delivers the report email to every recipient. Suppressed
// addresses are skipped and logged. It returns ErrEmailSendFailed only
// when no recipient could be reached.
func (s *Sender) Send(ctx context.Context, request Request) error {
	if len(request.Recipients) == 0 {
		return nil
	}

	title := reportTitle(request.ReportType)
	subject := fmt.Sprintf("%s: %s Report", request.Area, title)

	sent := 0
	failed := 0
	for _, recipient := range request.Recipients {
		suppressed, err := s.log.IsSuppressed(ctx, request.AccountID, recipient)
		if err != nil {
			return fmt.Errorf("check suppression for %s: %w", recipient, err)
		}
		if suppressed {
			s.logger.Printf("mail: skipping suppressed recipient %s for account %s", recipient, request.AccountID)
			s.record(ctx, request, recipient, subject, 0, domain.EmailStatusSuppressed, "")
			continue
		}

		html, text, err := s.compose(request, recipient, title)
		if err != nil {
			return err
		}

		statusCode, sendErr := s.deliver(ctx, recipient, subject, html, text)
		if sendErr != nil {
			failed++
			s.logger.Printf("ERROR: mail: send to %s failed: %v", recipient, sendErr)
			s.record(ctx, request, recipient, subject, statusCode, domain.EmailStatusFailed, sendErr.Error())
			continue
		}
		sent++
		s.record(ctx, request, recipient, subject, statusCode, domain.EmailStatusSent, "")
	}

	if sent == 0 && failed > 0 {
		return ErrEmailSendFailed
	}
	return nil
}

func (s *Sender) compose(request Request, recipient, title string) (html, text string, err error) {
	data := templateData{
		AccountName:    request.AccountName,
		ReportTitle:    title,
		Area:           request.Area,
		LookbackDays:   request.Lookback,
		Brand:          request.Brand,
		PDFURL:         request.PDFURL,
		UnsubscribeURL: UnsubscribeURL(s.config.UnsubscribeBase, s.config.UnsubscribeSecret, request.AccountID, recipient),
	}
	if request.Payload != nil {
		data.Snapshot = request.Payload.Snapshot
		data.TotalListings = request.Payload.TotalListings
		data.WideningNote = request.Payload.WideningNote
	}

	html, err = renderHTML(data)
	if err != nil {
		return "", "", err
	}
	return html, renderText(data), nil
}

// deliver sends one message, retrying transient provider responses
// with exponential backoff.
func (s *Sender) deliver(ctx context.Context, recipient, subject, html, text string) (int, error) {
	from := sgmail.NewEmail(s.config.FromName, s.config.FromAddress)
	to := sgmail.NewEmail(recipient, recipient)

	message := sgmail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject

	personalization := sgmail.NewPersonalization()
	personalization.AddTos(to)
	message.AddPersonalizations(personalization)

	message.AddContent(sgmail.NewContent("text/plain", text))
	message.AddContent(sgmail.NewContent("text/html", html))

	delay := initialRetryDelay
	var lastCode int
	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return lastCode, err
		}

		response, err := s.client.SendWithContext(ctx, message)
		switch {
		case err != nil:
			lastErr = err
		case response.StatusCode < 300:
			return response.StatusCode, nil
		case retryableStatus(response.StatusCode):
			lastCode = response.StatusCode
			lastErr = fmt.Errorf("mail provider returned %d", response.StatusCode)
		default:
			return response.StatusCode, fmt.Errorf("mail provider rejected message: %d", response.StatusCode)
		}

		if attempt < maxSendAttempts {
			s.logger.Printf("WARN: mail: attempt %d/%d to %s failed, retrying in %s: %v",
				attempt, maxSendAttempts, recipient, delay, lastErr)
			s.sleepFn(delay)
			delay *= 2
		}
	}
	return lastCode, fmt.Errorf("send after %d attempts: %w", maxSendAttempts, lastErr)
}

func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func (s *Sender) record(ctx context.Context, request Request, recipient, subject string, statusCode int, status domain.EmailStatus, errMessage string) {
	entry := &domain.EmailLog{
		ID:           uuid.NewString(),
		AccountID:    request.AccountID,
		ScheduleID:   request.ScheduleID,
		ReportID:     request.ReportID,
		Provider:     "sendgrid",
		ToEmails:     []string{recipient},
		Subject:      subject,
		ResponseCode: statusCode,
		Status:       status,
		Error:        errMessage,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.log.InsertEmailLog(ctx, entry); err != nil {
		s.logger.Printf("ERROR: mail: write email log: %v", err)
	}
}
