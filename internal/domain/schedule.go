package domain

import "time"

type Cadence string

const (
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// MaxMonthlyDOM caps monthly_dom so every month has the target day.
const MaxMonthlyDOM = 28

// AutoPauseThreshold is the consecutive-failure count at which a
// schedule is deactivated.
const AutoPauseThreshold = 3

// Schedule is the primary scheduling entity. Send time is interpreted
// in Timezone; every stored timestamp is UTC.
type Schedule struct {
	ID           string
	AccountID    string
	Name         string
	ReportType   ReportType
	City         string
	ZipCodes     []string
	LookbackDays int
	Cadence      Cadence
	WeeklyDOW    int // 0=Sunday..6=Saturday, valid when Cadence is weekly
	MonthlyDOM   int // 1..28, valid when Cadence is monthly
	SendHour     int
	SendMinute   int
	Timezone     string
	Recipients   []RecipientDescriptor
	Filters      *ReportFilters

	IncludeAttachment bool
	Active            bool

	LastRunAt           *time.Time
	NextRunAt           *time.Time
	ProcessingLockedAt  *time.Time
	ConsecutiveFailures int
	LastError           string
	LastErrorAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ScheduleRunStatus string

const (
	ScheduleRunQueued       ScheduleRunStatus = "queued"
	ScheduleRunProcessing   ScheduleRunStatus = "processing"
	ScheduleRunCompleted    ScheduleRunStatus = "completed"
	ScheduleRunFailed       ScheduleRunStatus = "failed"
	ScheduleRunFailedEmail  ScheduleRunStatus = "failed_email"
	ScheduleRunSkippedLimit ScheduleRunStatus = "skipped_limit"
)

// ScheduleRun is the audit record for one firing of a schedule.
type ScheduleRun struct {
	ID          string
	ScheduleID  string
	ReportRunID string
	Status      ScheduleRunStatus
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Error       string
	CreatedAt   time.Time
}
