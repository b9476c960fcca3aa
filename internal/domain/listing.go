package domain

import "time"

type ListingStatus string

const (
	ListingActive        ListingStatus = "Active"
	ListingPending       ListingStatus = "Pending"
	ListingClosed        ListingStatus = "Closed"
	ListingExpired       ListingStatus = "Expired"
	ListingWithdrawn     ListingStatus = "Withdrawn"
	ListingTempOffMarket ListingStatus = "Temp Off Market"
)

// Listing is the canonical, validated shape of one MLS record. Optional
// numeric fields are pointers so a missing value never reads as zero.
type Listing struct {
	MLSID            string
	ListDate         *time.Time
	CloseDate        *time.Time
	Status           ListingStatus
	DaysOnMarket     *int
	ListPrice        *float64
	ClosePrice       *float64
	City             string
	Zip              string
	PropertyType     string
	Sqft             *float64
	PricePerSqft     *float64
	CloseToListRatio *float64
	Bedrooms         *int
	Bathrooms        *float64
	Address          string
	PhotoURLs        []string
	OpenHouses       []OpenHouse
}

// OpenHouse is a nested showing window attached to an active listing.
type OpenHouse struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Remarks  string    `json:"remarks,omitempty"`
}

// HeroPhotoURL returns the primary photo, or empty when none exist.
func (l Listing) HeroPhotoURL() string {
	if len(l.PhotoURLs) == 0 {
		return ""
	}
	return l.PhotoURLs[0]
}
