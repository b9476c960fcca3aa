package usage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/repository"
)

// Decision is ordered: Allow < AllowWithWarning < Block.
type Decision int

const (
	Allow Decision = iota
	AllowWithWarning
	Block
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "ALLOW"
	case AllowWithWarning:
		return "ALLOW_WITH_WARNING"
	case Block:
		return "BLOCK"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

const (
	warnRatio  = 0.8
	blockRatio = 1.1

	// defaultMonthlyLimit applies when neither the account override nor
	// the plan provides a limit.
	defaultMonthlyLimit = 100
)

// Info carries the numbers behind a decision for logging and the
// warning email copy.
type Info struct {
	Usage          int
	Limit          int
	Unlimited      bool
	Ratio          float64
	OverageCents   int
	OverageAllowed bool
}

// PlanSource is satisfied by both the accounts repository and the
// plan-catalog cache.
type PlanSource interface {
	GetPlan(ctx context.Context, slug string) (*domain.Plan, error)
}

// Governor decides whether an account may generate another report this
// month.
type Governor struct {
	accounts repository.AccountsRepository
	plans    PlanSource
	reports  repository.ReportsRepository
	logger   *log.Logger
}

func NewGovernor(accounts repository.AccountsRepository, plans PlanSource, reports repository.ReportsRepository, logger *log.Logger) *Governor {
	return &Governor{accounts: accounts, plans: plans, reports: reports, logger: logger}
}

// Evaluate computes the month-to-date usage ratio for the account and
// maps it onto a decision. Overage-enabled plans are warned instead of
// blocked, with the projected overage cost attached.
func (g *Governor) Evaluate(ctx context.Context, accountID string, now time.Time) (Decision, Info, error) {
	account, err := g.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return Block, Info{}, fmt.Errorf("load account %s: %w", accountID, err)
	}

	var plan *domain.Plan
	if account.PlanSlug != "" {
		plan, err = g.plans.GetPlan(ctx, account.PlanSlug)
		if err != nil && err != repository.ErrNotFound {
			return Block, Info{}, fmt.Errorf("load plan %s: %w", account.PlanSlug, err)
		}
	}

	limit := defaultMonthlyLimit
	if plan != nil {
		limit = plan.MonthlyReportLimit
	}
	if account.PlanLimitOverride != nil {
		limit = *account.PlanLimitOverride
	}

	if limit <= 0 || limit >= domain.UnlimitedReportThreshold {
		return Allow, Info{Unlimited: true, Limit: limit}, nil
	}

	monthStart, monthEnd := monthWindow(now)
	count, err := g.reports.CountMonthlyUsage(ctx, accountID, monthStart, monthEnd)
	if err != nil {
		return Block, Info{}, fmt.Errorf("count monthly usage for %s: %w", accountID, err)
	}

	info := Info{
		Usage: count,
		Limit: limit,
		Ratio: float64(count) / float64(limit),
	}
	if plan != nil {
		info.OverageAllowed = plan.AllowOverage
	}

	switch {
	case info.Ratio < warnRatio:
		return Allow, info, nil
	case info.Ratio < blockRatio:
		return AllowWithWarning, info, nil
	case info.OverageAllowed:
		if plan != nil && count > limit {
			info.OverageCents = (count - limit) * plan.OveragePriceCents
		}
		g.logger.Printf("WARN: usage governor: account %s over limit with overage enabled: usage=%d limit=%d overage_cents=%d",
			accountID, count, limit, info.OverageCents)
		return AllowWithWarning, info, nil
	default:
		g.logger.Printf("WARN: usage governor: blocking account %s: usage=%d limit=%d", accountID, count, limit)
		return Block, info, nil
	}
}

// monthWindow returns the UTC calendar month containing now.
func monthWindow(now time.Time) (time.Time, time.Time) {
	utc := now.UTC()
	start := time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
