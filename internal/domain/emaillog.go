package domain

import "time"

type EmailStatus string

const (
	EmailStatusSent       EmailStatus = "sent"
	EmailStatusSuppressed EmailStatus = "suppressed"
	EmailStatusFailed     EmailStatus = "failed"
)

// EmailLog records one delivery attempt against the mail provider.
type EmailLog struct {
	ID           string
	AccountID    string
	ScheduleID   string
	ReportID     string
	Provider     string
	ToEmails     []string
	Subject      string
	ResponseCode int
	Status       EmailStatus
	Error        string
	CreatedAt    time.Time
}
