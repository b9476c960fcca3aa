package report

import (
	"context"
	"fmt"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/mls"
)

const (
	baselineLookbackDays = 90
	maxWidenAttempts     = 3
)

// Widening ladders for market-adaptive price strategies. Max-mode
// strategies widen by raising the percentage, min-mode by lowering it.
var (
	maxModeLadder = []float64{0.70, 0.85, 1.00, 1.20}
	minModeLadder = []float64{1.50, 1.30, 1.10, 0.90}
)

type baselineMedians struct {
	list  *float64
	close *float64
}

func (b *Builder) buildAdaptive(ctx context.Context, reportType domain.ReportType, reportCtx Context) (*Payload, error) {
	strategy := reportCtx.Filters.PriceStrategy
	if strategy.Value <= 0 || strategy.Value > 2 {
		return nil, fmt.Errorf("price strategy value %v out of range (0,2]", strategy.Value)
	}

	medians, err := b.fetchBaselineMedians(ctx, reportCtx)
	if err != nil {
		return nil, fmt.Errorf("baseline fetch: %w", err)
	}

	reference := medians.list
	if strategy.Mode.UsesCloseMedian() {
		reference = medians.close
	}
	if reference == nil || *reference <= 0 {
		// Dead market: no baseline median to anchor on. Run the report
		// without the strategy rather than failing it.
		payload, err := b.buildOnce(ctx, reportType, reportCtx, stripStrategy(reportCtx.Filters))
		if err != nil {
			return nil, err
		}
		payload.WideningNote = "price strategy skipped: no baseline median available"
		return payload, nil
	}

	floor := minRows(reportType)
	percentages := append([]float64{strategy.Value}, widenSteps(strategy.Mode, strategy.Value)...)

	var payload *Payload
	for attempt, pct := range percentages {
		filters := resolveStrategy(reportCtx.Filters, strategy.Mode, pct, *reference)
		payload, err = b.buildOnce(ctx, reportType, reportCtx, filters)
		if err != nil {
			return nil, err
		}
		if rowCount(payload) >= floor {
			if attempt > 0 {
				payload.WideningNote = fmt.Sprintf(
					"price filter widened from %.0f%% to %.0f%% of market median to reach %d listings",
					strategy.Value*100, pct*100, rowCount(payload))
			}
			return payload, nil
		}
	}

	payload.WideningNote = fmt.Sprintf(
		"only %d listings matched after widening the price filter to its limit", rowCount(payload))
	return payload, nil
}

func (b *Builder) fetchBaselineMedians(ctx context.Context, reportCtx Context) (baselineMedians, error) {
	baselineCtx := reportCtx
	baselineCtx.LookbackDays = baselineLookbackDays
	cutoff := reportCtx.GeneratedAt.AddDate(0, 0, -baselineLookbackDays)

	// Baseline queries drop bed/bath filters so the medians describe
	// the whole market segment, not the user's slice of it.
	activeQuery := mls.Query{Statuses: []string{"Active"}, City: reportCtx.City, PostalCodes: reportCtx.ZipCodes}
	active, _, err := b.fetchListings(ctx, activeQuery, reportCtx.GeneratedAt)
	if err != nil {
		return baselineMedians{}, fmt.Errorf("fetch baseline active: %w", err)
	}

	closedQuery := mls.Query{Statuses: []string{"Closed"}, City: reportCtx.City, PostalCodes: reportCtx.ZipCodes, MinDate: cutoff}
	closed, _, err := b.fetchListings(ctx, closedQuery, reportCtx.GeneratedAt)
	if err != nil {
		return baselineMedians{}, fmt.Errorf("fetch baseline closed: %w", err)
	}

	return baselineMedians{
		list:  median(listPrices(active)),
		close: median(closePrices(closedInWindow(closed, cutoff))),
	}, nil
}

// widenSteps returns the ladder percentages that actually widen the
// filter relative to the starting value, capped at three attempts.
func widenSteps(mode domain.PriceStrategyMode, value float64) []float64 {
	ladder := minModeLadder
	if mode.MaxMode() {
		ladder = maxModeLadder
	}

	var steps []float64
	for _, pct := range ladder {
		widens := pct < value
		if mode.MaxMode() {
			widens = pct > value
		}
		if widens {
			steps = append(steps, pct)
		}
		if len(steps) == maxWidenAttempts {
			break
		}
	}
	return steps
}

func resolveStrategy(filters *domain.ReportFilters, mode domain.PriceStrategyMode, pct, reference float64) *domain.ReportFilters {
	resolved := *filters
	resolved.PriceStrategy = nil

	amount := reference * pct
	if mode.MaxMode() {
		resolved.MaxPrice = &amount
	} else {
		resolved.MinPrice = &amount
	}
	return &resolved
}

func stripStrategy(filters *domain.ReportFilters) *domain.ReportFilters {
	if filters == nil {
		return nil
	}
	stripped := *filters
	stripped.PriceStrategy = nil
	return &stripped
}
