package report

import (
	"strings"
	"time"

	"github.com/homescope/reports-back/internal/domain"
)

// Context carries the inputs one report build needs beyond the listing
// rows themselves.
type Context struct {
	City         string
	ZipCodes     []string
	LookbackDays int
	GeneratedAt  time.Time
	Filters      *domain.ReportFilters
	FiltersLabel string
}

// Area renders the human-readable market area for subjects and
// payload headers.
func (c Context) Area() string {
	if c.City != "" {
		return c.City
	}
	return strings.Join(c.ZipCodes, ", ")
}

// ListingCard is the per-listing slice of a report payload. The hero
// photo URL is mutated in place by the photo proxy for gallery types.
type ListingCard struct {
	MLSID        string     `json:"mls_id"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	Zip          string     `json:"zip"`
	Status       string     `json:"status"`
	ListPrice    *float64   `json:"list_price,omitempty"`
	ClosePrice   *float64   `json:"close_price,omitempty"`
	ListDate     *time.Time `json:"list_date,omitempty"`
	CloseDate    *time.Time `json:"close_date,omitempty"`
	DaysOnMarket *int       `json:"days_on_market,omitempty"`
	Bedrooms     *int       `json:"bedrooms,omitempty"`
	Bathrooms    *float64   `json:"bathrooms,omitempty"`
	Sqft         *float64   `json:"sqft,omitempty"`
	PricePerSqft *float64   `json:"price_per_sqft,omitempty"`
	HeroPhotoURL string     `json:"hero_photo_url,omitempty"`

	OpenHouses []domain.OpenHouse `json:"open_houses,omitempty"`
}

// SnapshotStats is the aggregate block of a market_snapshot report.
type SnapshotStats struct {
	ActiveCount         int      `json:"active_count"`
	PendingCount        int      `json:"pending_count"`
	ClosedCount         int      `json:"closed_count"`
	MedianListPrice     *float64 `json:"median_list_price,omitempty"`
	MedianClosePrice    *float64 `json:"median_close_price,omitempty"`
	AvgDaysOnMarket     *float64 `json:"avg_days_on_market,omitempty"`
	AvgPricePerSqft     *float64 `json:"avg_price_per_sqft,omitempty"`
	AvgCloseToListRatio *float64 `json:"avg_close_to_list_ratio,omitempty"`
	MonthsOfInventory   float64  `json:"months_of_inventory"`
	AbsorptionRatePct   *float64 `json:"absorption_rate_pct,omitempty"`
}

// PriceBand is one bucket of a price_bands report.
type PriceBand struct {
	Label           string   `json:"label"`
	MinPrice        float64  `json:"min_price"`
	MaxPrice        float64  `json:"max_price,omitempty"`
	Count           int      `json:"count"`
	MedianPrice     *float64 `json:"median_price,omitempty"`
	AvgDaysOnMarket *float64 `json:"avg_days_on_market,omitempty"`
	AvgPricePerSqft *float64 `json:"avg_price_per_sqft,omitempty"`
}

// Payload is the persisted result_json of a report run.
type Payload struct {
	ReportType   domain.ReportType `json:"report_type"`
	Area         string            `json:"area"`
	LookbackDays int               `json:"lookback_days"`
	GeneratedAt  time.Time         `json:"generated_at"`
	FiltersLabel string            `json:"filters_label,omitempty"`
	WideningNote string            `json:"widening_note,omitempty"`

	Snapshot *SnapshotStats `json:"snapshot,omitempty"`
	Listings []ListingCard  `json:"listings,omitempty"`
	Bands    []PriceBand    `json:"bands,omitempty"`

	TotalListings int `json:"total_listings"`
	DroppedRows   int `json:"dropped_rows,omitempty"`
}

func cardFor(listing domain.Listing) ListingCard {
	return ListingCard{
		MLSID:        listing.MLSID,
		Address:      listing.Address,
		City:         listing.City,
		Zip:          listing.Zip,
		Status:       string(listing.Status),
		ListPrice:    listing.ListPrice,
		ClosePrice:   listing.ClosePrice,
		ListDate:     listing.ListDate,
		CloseDate:    listing.CloseDate,
		DaysOnMarket: listing.DaysOnMarket,
		Bedrooms:     listing.Bedrooms,
		Bathrooms:    listing.Bathrooms,
		Sqft:         listing.Sqft,
		PricePerSqft: listing.PricePerSqft,
		HeroPhotoURL: listing.HeroPhotoURL(),
		OpenHouses:   listing.OpenHouses,
	}
}

func cardsFor(listings []domain.Listing) []ListingCard {
	cards := make([]ListingCard, 0, len(listings))
	for _, listing := range listings {
		cards = append(cards, cardFor(listing))
	}
	return cards
}
