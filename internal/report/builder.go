package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/listing"
	"github.com/homescope/reports-back/internal/mls"
)

const (
	openHouseWindow  = 7 * 24 * time.Hour
	featuredTopN     = 4
	minRowsDefault   = 6
	minRowsFeatured  = 4
)

// Builder turns a report request into a payload, issuing the MLS
// queries each report type needs.
type Builder struct {
	fetcher mls.Fetcher
	logger  *log.Logger
	now     func() time.Time
}

func NewBuilder(fetcher mls.Fetcher, logger *log.Logger) *Builder {
	return &Builder{
		fetcher: fetcher,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Build produces the payload for one report run. When the filters carry
// a price strategy, the strategy is resolved against baseline medians
// first and the result is widened along the ladder until the row floor
// is met.
func (b *Builder) Build(ctx context.Context, reportType domain.ReportType, reportCtx Context) (*Payload, error) {
	if !reportType.Valid() {
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
	if reportCtx.GeneratedAt.IsZero() {
		reportCtx.GeneratedAt = b.now()
	}
	if reportCtx.LookbackDays <= 0 {
		reportCtx.LookbackDays = 30
	}

	if reportCtx.Filters == nil || reportCtx.Filters.PriceStrategy == nil {
		return b.buildOnce(ctx, reportType, reportCtx, reportCtx.Filters)
	}
	return b.buildAdaptive(ctx, reportType, reportCtx)
}

func (b *Builder) buildOnce(ctx context.Context, reportType domain.ReportType, reportCtx Context, filters *domain.ReportFilters) (*Payload, error) {
	payload := &Payload{
		ReportType:   reportType,
		Area:         reportCtx.Area(),
		LookbackDays: reportCtx.LookbackDays,
		GeneratedAt:  reportCtx.GeneratedAt,
		FiltersLabel: filtersLabel(reportCtx, filters),
	}

	switch reportType {
	case domain.ReportMarketSnapshot:
		if err := b.buildSnapshot(ctx, reportCtx, filters, payload); err != nil {
			return nil, err
		}
	case domain.ReportNewListings, domain.ReportNewListingsGallery:
		if err := b.buildNewListings(ctx, reportCtx, filters, payload); err != nil {
			return nil, err
		}
	case domain.ReportInventory:
		if err := b.buildInventory(ctx, reportCtx, filters, payload); err != nil {
			return nil, err
		}
	case domain.ReportClosed:
		if err := b.buildClosed(ctx, reportCtx, filters, payload); err != nil {
			return nil, err
		}
	case domain.ReportPriceBands:
		if err := b.buildPriceBands(ctx, reportCtx, filters, payload); err != nil {
			return nil, err
		}
	case domain.ReportOpenHouses:
		if err := b.buildOpenHouses(ctx, reportCtx, filters, payload); err != nil {
			return nil, err
		}
	case domain.ReportFeaturedListings:
		if err := b.buildFeatured(ctx, reportCtx, filters, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (b *Builder) fetchListings(ctx context.Context, query mls.Query, generatedAt time.Time) ([]domain.Listing, int, error) {
	records, err := b.fetcher.Fetch(ctx, query, 0)
	if err != nil {
		return nil, 0, err
	}
	listings, dropped := listing.NormalizeAll(records, generatedAt)
	if dropped > 0 && b.logger != nil {
		b.logger.Printf("dropped invalid listings count=%d statuses=%v", dropped, query.Statuses)
	}
	return listings, dropped, nil
}

func (b *Builder) buildSnapshot(ctx context.Context, reportCtx Context, filters *domain.ReportFilters, payload *Payload) error {
	cutoff := reportCtx.GeneratedAt.AddDate(0, 0, -reportCtx.LookbackDays)

	active, droppedActive, err := b.fetchListings(ctx, baseQuery(reportCtx, filters, "Active"), reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch active listings: %w", err)
	}
	closedQuery := baseQuery(reportCtx, filters, "Closed")
	closedQuery.MinDate = cutoff
	closed, droppedClosed, err := b.fetchListings(ctx, closedQuery, reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch closed listings: %w", err)
	}
	pending, droppedPending, err := b.fetchListings(ctx, baseQuery(reportCtx, filters, "Pending"), reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch pending listings: %w", err)
	}

	closed = closedInWindow(closed, cutoff)
	payload.Snapshot = snapshotStats(active, pending, closed, reportCtx.LookbackDays)
	payload.TotalListings = len(active) + len(pending) + len(closed)
	payload.DroppedRows = droppedActive + droppedClosed + droppedPending
	return nil
}

func (b *Builder) buildNewListings(ctx context.Context, reportCtx Context, filters *domain.ReportFilters, payload *Payload) error {
	cutoff := reportCtx.GeneratedAt.AddDate(0, 0, -reportCtx.LookbackDays)
	query := baseQuery(reportCtx, filters, "Active")
	query.MinDate = cutoff
	query.Sort = "-listdate"

	active, dropped, err := b.fetchListings(ctx, query, reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch new listings: %w", err)
	}

	recent := make([]domain.Listing, 0, len(active))
	for _, item := range active {
		if item.ListDate != nil && !item.ListDate.Before(cutoff) {
			recent = append(recent, item)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].ListDate.After(*recent[j].ListDate)
	})

	payload.Listings = cardsFor(recent)
	payload.TotalListings = len(recent)
	payload.DroppedRows = dropped
	return nil
}

func (b *Builder) buildInventory(ctx context.Context, reportCtx Context, filters *domain.ReportFilters, payload *Payload) error {
	active, dropped, err := b.fetchListings(ctx, baseQuery(reportCtx, filters, "Active"), reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch inventory: %w", err)
	}

	inWindow := make([]domain.Listing, 0, len(active))
	for _, item := range active {
		if item.DaysOnMarket != nil && *item.DaysOnMarket <= reportCtx.LookbackDays {
			inWindow = append(inWindow, item)
		}
	}

	payload.Listings = cardsFor(inWindow)
	payload.TotalListings = len(inWindow)
	payload.DroppedRows = dropped
	return nil
}

func (b *Builder) buildClosed(ctx context.Context, reportCtx Context, filters *domain.ReportFilters, payload *Payload) error {
	cutoff := reportCtx.GeneratedAt.AddDate(0, 0, -reportCtx.LookbackDays)
	query := baseQuery(reportCtx, filters, "Closed")
	query.MinDate = cutoff

	closed, dropped, err := b.fetchListings(ctx, query, reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch closed: %w", err)
	}

	recent := closedInWindow(closed, cutoff)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CloseDate.After(*recent[j].CloseDate)
	})

	payload.Listings = cardsFor(recent)
	payload.TotalListings = len(recent)
	payload.DroppedRows = dropped
	return nil
}

func (b *Builder) buildPriceBands(ctx context.Context, reportCtx Context, filters *domain.ReportFilters, payload *Payload) error {
	active, dropped, err := b.fetchListings(ctx, baseQuery(reportCtx, filters, "Active"), reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch price bands: %w", err)
	}

	payload.Bands = priceBands(active)
	payload.TotalListings = len(active)
	payload.DroppedRows = dropped
	return nil
}

func (b *Builder) buildOpenHouses(ctx context.Context, reportCtx Context, filters *domain.ReportFilters, payload *Payload) error {
	active, dropped, err := b.fetchListings(ctx, baseQuery(reportCtx, filters, "Active"), reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch open houses: %w", err)
	}

	windowEnd := reportCtx.GeneratedAt.Add(openHouseWindow)
	upcoming := make([]domain.Listing, 0, len(active))
	for _, item := range active {
		if hasOpenHouseBetween(item, reportCtx.GeneratedAt, windowEnd) {
			upcoming = append(upcoming, item)
		}
	}

	payload.Listings = cardsFor(upcoming)
	payload.TotalListings = len(upcoming)
	payload.DroppedRows = dropped
	return nil
}

func (b *Builder) buildFeatured(ctx context.Context, reportCtx Context, filters *domain.ReportFilters, payload *Payload) error {
	active, dropped, err := b.fetchListings(ctx, baseQuery(reportCtx, filters, "Active"), reportCtx.GeneratedAt)
	if err != nil {
		return fmt.Errorf("fetch featured: %w", err)
	}

	sort.SliceStable(active, func(i, j int) bool {
		return priceOrZero(active[i]) > priceOrZero(active[j])
	})
	if len(active) > featuredTopN {
		active = active[:featuredTopN]
	}

	payload.Listings = cardsFor(active)
	payload.TotalListings = len(active)
	payload.DroppedRows = dropped
	return nil
}

func baseQuery(reportCtx Context, filters *domain.ReportFilters, statuses ...string) mls.Query {
	query := mls.Query{
		Statuses:    statuses,
		City:        reportCtx.City,
		PostalCodes: reportCtx.ZipCodes,
	}
	if filters == nil {
		return query
	}
	query.MinPrice = filters.MinPrice
	query.MaxPrice = filters.MaxPrice
	query.MinBeds = filters.MinBeds
	query.MaxBeds = filters.MaxBeds
	query.MinBaths = filters.MinBaths
	return query
}

func closedInWindow(listings []domain.Listing, cutoff time.Time) []domain.Listing {
	result := make([]domain.Listing, 0, len(listings))
	for _, item := range listings {
		if item.CloseDate != nil && !item.CloseDate.Before(cutoff) {
			result = append(result, item)
		}
	}
	return result
}

func hasOpenHouseBetween(item domain.Listing, from, to time.Time) bool {
	for _, openHouse := range item.OpenHouses {
		if !openHouse.StartsAt.Before(from) && !openHouse.StartsAt.After(to) {
			return true
		}
	}
	return false
}

func priceOrZero(item domain.Listing) float64 {
	if item.ListPrice == nil {
		return 0
	}
	return *item.ListPrice
}

func filtersLabel(reportCtx Context, filters *domain.ReportFilters) string {
	if reportCtx.FiltersLabel != "" {
		return reportCtx.FiltersLabel
	}
	if filters != nil {
		return filters.Label
	}
	return ""
}

// rowCount is the figure compared against the widening floor.
func rowCount(payload *Payload) int {
	if payload.Snapshot != nil {
		return payload.Snapshot.ActiveCount
	}
	if len(payload.Bands) > 0 {
		total := 0
		for _, band := range payload.Bands {
			total += band.Count
		}
		return total
	}
	return len(payload.Listings)
}

func minRows(reportType domain.ReportType) int {
	if reportType == domain.ReportFeaturedListings {
		return minRowsFeatured
	}
	return minRowsDefault
}
