package domain

import (
	"encoding/json"
	"time"
)

type ReportType string

const (
	ReportMarketSnapshot      ReportType = "market_snapshot"
	ReportNewListings         ReportType = "new_listings"
	ReportInventory           ReportType = "inventory"
	ReportClosed              ReportType = "closed"
	ReportPriceBands          ReportType = "price_bands"
	ReportOpenHouses          ReportType = "open_houses"
	ReportNewListingsGallery  ReportType = "new_listings_gallery"
	ReportFeaturedListings    ReportType = "featured_listings"
)

// GalleryType reports true for report types whose payload carries hero
// photos that must be re-hosted before publishing.
func (t ReportType) GalleryType() bool {
	return t == ReportNewListingsGallery || t == ReportFeaturedListings
}

func (t ReportType) Valid() bool {
	switch t {
	case ReportMarketSnapshot, ReportNewListings, ReportInventory,
		ReportClosed, ReportPriceBands, ReportOpenHouses,
		ReportNewListingsGallery, ReportFeaturedListings:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportStatusQueued       ReportStatus = "queued"
	ReportStatusProcessing   ReportStatus = "processing"
	ReportStatusCompleted    ReportStatus = "completed"
	ReportStatusFailed       ReportStatus = "failed"
	ReportStatusSkippedLimit ReportStatus = "skipped_limit"
)

// ReportGeneration is one report job, whether schedule-triggered or ad hoc.
type ReportGeneration struct {
	ID               string
	AccountID        string
	ReportType       ReportType
	InputParams      json.RawMessage
	Status           ReportStatus
	ResultJSON       json.RawMessage
	PDFURL           string
	HTMLURL          string
	JSONURL          string
	SourceVendor     string
	ProcessingTimeMS int64
	Error            string
	ScheduleID       string
	GeneratedAt      time.Time
	UpdatedAt        time.Time
}

// PriceStrategyMode resolves a relative price filter against a market
// median computed from a baseline query.
type PriceStrategyMode string

const (
	MaxPricePctOfMedianList  PriceStrategyMode = "maxprice_pct_of_median_list"
	MaxPricePctOfMedianClose PriceStrategyMode = "maxprice_pct_of_median_close"
	MinPricePctOfMedianList  PriceStrategyMode = "minprice_pct_of_median_list"
	MinPricePctOfMedianClose PriceStrategyMode = "minprice_pct_of_median_close"
)

func (m PriceStrategyMode) MaxMode() bool {
	return m == MaxPricePctOfMedianList || m == MaxPricePctOfMedianClose
}

func (m PriceStrategyMode) UsesCloseMedian() bool {
	return m == MaxPricePctOfMedianClose || m == MinPricePctOfMedianClose
}

type PriceStrategy struct {
	Mode  PriceStrategyMode `json:"mode"`
	Value float64           `json:"value"`
}

// ReportFilters narrows the listing query for a report.
type ReportFilters struct {
	MinPrice      *float64       `json:"minprice,omitempty"`
	MaxPrice      *float64       `json:"maxprice,omitempty"`
	MinBeds       *int           `json:"minbeds,omitempty"`
	MaxBeds       *int           `json:"maxbeds,omitempty"`
	MinBaths      *int           `json:"minbaths,omitempty"`
	PropertyType  string         `json:"property_type,omitempty"`
	PriceStrategy *PriceStrategy `json:"price_strategy,omitempty"`
	Label         string         `json:"label,omitempty"`
}

// ReportParams is the job-queue parameter block; large state lives in
// the datastore keyed by the run id.
type ReportParams struct {
	City         string         `json:"city,omitempty"`
	ZipCodes     []string       `json:"zips,omitempty"`
	LookbackDays int            `json:"lookback_days"`
	Filters      *ReportFilters `json:"filters,omitempty"`
	ScheduleID   string         `json:"schedule_id,omitempty"`
}

// JobMessage is the transport format sent to queue backends.
type JobMessage struct {
	RunID       string       `json:"run_id"`
	AccountID   string       `json:"account_id"`
	ReportType  ReportType   `json:"report_type"`
	Params      ReportParams `json:"params"`
	Attempt     int          `json:"attempt"`
	RequestedAt time.Time    `json:"requested_at"`
}
