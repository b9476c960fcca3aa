package report

import (
	"sort"

	"github.com/homescope/reports-back/internal/domain"
)

// avgDaysInMonth moves between a lookback window and a monthly sales
// rate (365.25 / 12).
const avgDaysInMonth = 30.437

// moiUndefined is the sentinel months-of-inventory when no sales
// occurred in the window.
const moiUndefined = 999.0

func median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	result := sorted[mid]
	if len(sorted)%2 == 0 {
		result = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &result
}

func average(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	total := 0.0
	for _, value := range values {
		total += value
	}
	result := total / float64(len(values))
	return &result
}

func listPrices(listings []domain.Listing) []float64 {
	values := make([]float64, 0, len(listings))
	for _, listing := range listings {
		if listing.ListPrice != nil && *listing.ListPrice > 0 {
			values = append(values, *listing.ListPrice)
		}
	}
	return values
}

func closePrices(listings []domain.Listing) []float64 {
	values := make([]float64, 0, len(listings))
	for _, listing := range listings {
		if listing.ClosePrice != nil && *listing.ClosePrice > 0 {
			values = append(values, *listing.ClosePrice)
		}
	}
	return values
}

func daysOnMarket(listings []domain.Listing) []float64 {
	values := make([]float64, 0, len(listings))
	for _, listing := range listings {
		if listing.DaysOnMarket != nil {
			values = append(values, float64(*listing.DaysOnMarket))
		}
	}
	return values
}

func pricesPerSqft(listings []domain.Listing) []float64 {
	values := make([]float64, 0, len(listings))
	for _, listing := range listings {
		if listing.PricePerSqft != nil {
			values = append(values, *listing.PricePerSqft)
		}
	}
	return values
}

func closeToListRatios(listings []domain.Listing) []float64 {
	values := make([]float64, 0, len(listings))
	for _, listing := range listings {
		if listing.CloseToListRatio != nil {
			values = append(values, *listing.CloseToListRatio)
		}
	}
	return values
}

func snapshotStats(active, pending, closed []domain.Listing, lookbackDays int) *SnapshotStats {
	stats := &SnapshotStats{
		ActiveCount:         len(active),
		PendingCount:        len(pending),
		ClosedCount:         len(closed),
		MedianListPrice:     median(listPrices(active)),
		MedianClosePrice:    median(closePrices(closed)),
		AvgDaysOnMarket:     average(daysOnMarket(closed)),
		AvgPricePerSqft:     average(pricesPerSqft(active)),
		AvgCloseToListRatio: average(closeToListRatios(closed)),
		MonthsOfInventory:   moiUndefined,
	}

	if lookbackDays > 0 && len(closed) > 0 {
		monthlySalesRate := float64(len(closed)) * (avgDaysInMonth / float64(lookbackDays))
		if monthlySalesRate > 0 {
			stats.MonthsOfInventory = float64(len(active)) / monthlySalesRate
		}
	}
	if len(active) > 0 {
		absorption := float64(len(closed)) / float64(len(active)) * 100
		stats.AbsorptionRatePct = &absorption
	}
	return stats
}

// priceBandEdges are the fixed price_bands tiers; the last tier is
// open-ended.
var priceBandEdges = []PriceBand{
	{Label: "Under $500K", MinPrice: 0, MaxPrice: 500_000},
	{Label: "$500K-$750K", MinPrice: 500_000, MaxPrice: 750_000},
	{Label: "$750K-$1M", MinPrice: 750_000, MaxPrice: 1_000_000},
	{Label: "$1M-$1.5M", MinPrice: 1_000_000, MaxPrice: 1_500_000},
	{Label: "$1.5M-$2M", MinPrice: 1_500_000, MaxPrice: 2_000_000},
	{Label: "Over $2M", MinPrice: 2_000_000},
}

func bucketIndex(price float64) int {
	for index, band := range priceBandEdges {
		if band.MaxPrice == 0 || price <= band.MaxPrice {
			return index
		}
	}
	return len(priceBandEdges) - 1
}

func priceBands(listings []domain.Listing) []PriceBand {
	buckets := make([][]domain.Listing, len(priceBandEdges))
	for _, listing := range listings {
		if listing.ListPrice == nil || *listing.ListPrice <= 0 {
			continue
		}
		index := bucketIndex(*listing.ListPrice)
		buckets[index] = append(buckets[index], listing)
	}

	bands := make([]PriceBand, len(priceBandEdges))
	for index, edge := range priceBandEdges {
		band := edge
		bucket := buckets[index]
		band.Count = len(bucket)
		band.MedianPrice = median(listPrices(bucket))
		band.AvgDaysOnMarket = average(daysOnMarket(bucket))
		band.AvgPricePerSqft = average(pricesPerSqft(bucket))
		bands[index] = band
	}
	return bands
}
