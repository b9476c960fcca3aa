package listing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/mls"
)

// ErrValidationRejected marks a listing dropped by the validation rules.
var ErrValidationRejected = errors.New("listing failed validation")

const minValidSqft = 100

var acceptedStatuses = map[domain.ListingStatus]struct{}{
	domain.ListingActive:        {},
	domain.ListingPending:       {},
	domain.ListingClosed:        {},
	domain.ListingExpired:       {},
	domain.ListingWithdrawn:     {},
	domain.ListingTempOffMarket: {},
}

// Normalize flattens a vendor record into the canonical listing shape,
// deriving price-per-sqft and close-to-list ratio when both inputs are
// positive.
func Normalize(record mls.Record) domain.Listing {
	listing := domain.Listing{
		MLSID:        mlsIDString(record.MLSID),
		Status:       domain.ListingStatus(record.MLS.Status),
		DaysOnMarket: record.MLS.DaysOnMarket,
		City:         record.Address.City,
		Zip:          record.Address.PostalCode,
		PropertyType: record.Property.Type,
		Sqft:         record.Property.Area,
		Bedrooms:     record.Property.Bedrooms,
		Address:      record.Address.Full,
		PhotoURLs:    record.Photos,
	}

	if record.ListPrice != 0 {
		price := record.ListPrice
		listing.ListPrice = &price
	}
	listing.ClosePrice = record.Sales.ClosePrice

	listing.ListDate = parseVendorDate(record.ListDate)
	listing.CloseDate = parseVendorDate(record.Sales.CloseDate)

	if record.Property.BathsFull != nil {
		baths := float64(*record.Property.BathsFull)
		if record.Property.BathsHalf != nil {
			baths += 0.5 * float64(*record.Property.BathsHalf)
		}
		listing.Bathrooms = &baths
	}

	if listing.ListPrice != nil && listing.Sqft != nil && *listing.ListPrice > 0 && *listing.Sqft > 0 {
		perSqft := *listing.ListPrice / *listing.Sqft
		listing.PricePerSqft = &perSqft
	}
	if listing.ClosePrice != nil && listing.ListPrice != nil && *listing.ClosePrice > 0 && *listing.ListPrice > 0 {
		ratio := *listing.ClosePrice / *listing.ListPrice * 100
		listing.CloseToListRatio = &ratio
	}

	for _, openHouse := range record.OpenHouses {
		starts := parseVendorDate(openHouse.StartTime)
		ends := parseVendorDate(openHouse.EndTime)
		if starts == nil {
			continue
		}
		entry := domain.OpenHouse{StartsAt: *starts, Remarks: openHouse.Remarks}
		if ends != nil {
			entry.EndsAt = *ends
		}
		listing.OpenHouses = append(listing.OpenHouses, entry)
	}

	return listing
}

// Validate returns ErrValidationRejected when the listing fails any of
// the drop rules; the caller drops the row and keeps going.
func Validate(listing domain.Listing, now time.Time) error {
	if listing.MLSID == "" {
		return fmt.Errorf("%w: missing mls_id", ErrValidationRejected)
	}
	if _, ok := acceptedStatuses[listing.Status]; !ok {
		return fmt.Errorf("%w: unknown status %q", ErrValidationRejected, listing.Status)
	}
	if listing.ListPrice != nil && *listing.ListPrice < 0 {
		return fmt.Errorf("%w: negative list price", ErrValidationRejected)
	}
	if listing.Sqft != nil && *listing.Sqft < minValidSqft {
		return fmt.Errorf("%w: sqft below %d", ErrValidationRejected, minValidSqft)
	}
	if listing.ListDate != nil && listing.ListDate.After(now) {
		return fmt.Errorf("%w: list date in the future", ErrValidationRejected)
	}
	return nil
}

// NormalizeAll flattens and validates a vendor page, dropping rejected
// rows and reporting how many were dropped.
func NormalizeAll(records []mls.Record, now time.Time) ([]domain.Listing, int) {
	listings := make([]domain.Listing, 0, len(records))
	dropped := 0
	for _, record := range records {
		listing := Normalize(record)
		if err := Validate(listing, now); err != nil {
			dropped++
			continue
		}
		listings = append(listings, listing)
	}
	return listings, dropped
}

func mlsIDString(raw any) string {
	switch value := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatInt(int64(value), 10)
	case int:
		return strconv.Itoa(value)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", value))
	}
}

func parseVendorDate(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}
