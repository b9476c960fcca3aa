package mls

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query describes one /properties search against the vendor API.
type Query struct {
	Statuses    []string
	MinDate     time.Time
	MaxDate     time.Time
	City        string
	PostalCodes []string
	MinPrice    *float64
	MaxPrice    *float64
	MinBeds     *int
	MaxBeds     *int
	MinBaths    *int
	Sort        string
}

func (q Query) values(limit, offset int) url.Values {
	values := url.Values{}
	for _, status := range q.Statuses {
		values.Add("status", status)
	}
	if !q.MinDate.IsZero() {
		values.Set("mindate", q.MinDate.UTC().Format("2006-01-02"))
	}
	if !q.MaxDate.IsZero() {
		values.Set("maxdate", q.MaxDate.UTC().Format("2006-01-02"))
	}
	if len(q.PostalCodes) > 0 {
		values.Set("postalCodes", strings.Join(q.PostalCodes, ","))
	} else if q.City != "" {
		values.Set("q", q.City)
	}
	if q.MinPrice != nil {
		values.Set("minprice", strconv.FormatFloat(*q.MinPrice, 'f', 0, 64))
	}
	if q.MaxPrice != nil {
		values.Set("maxprice", strconv.FormatFloat(*q.MaxPrice, 'f', 0, 64))
	}
	if q.MinBeds != nil {
		values.Set("minbeds", strconv.Itoa(*q.MinBeds))
	}
	if q.MaxBeds != nil {
		values.Set("maxbeds", strconv.Itoa(*q.MaxBeds))
	}
	if q.MinBaths != nil {
		values.Set("minbaths", strconv.Itoa(*q.MinBaths))
	}
	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}
	values.Set("limit", strconv.Itoa(limit))
	values.Set("offset", strconv.Itoa(offset))
	return values
}

// Record is the raw vendor property shape; normalization into the
// canonical listing happens in the listing package.
type Record struct {
	MLSID     any    `json:"mlsId"`
	ListDate  string `json:"listDate"`
	ListPrice float64 `json:"listPrice"`

	MLS struct {
		Status       string `json:"status"`
		DaysOnMarket *int   `json:"daysOnMarket"`
	} `json:"mls"`

	Sales struct {
		CloseDate  string   `json:"closeDate"`
		ClosePrice *float64 `json:"closePrice"`
	} `json:"sales"`

	Property struct {
		Type      string   `json:"type"`
		Area      *float64 `json:"area"`
		Bedrooms  *int     `json:"bedrooms"`
		BathsFull *int     `json:"bathsFull"`
		BathsHalf *int     `json:"bathsHalf"`
	} `json:"property"`

	Address struct {
		City       string `json:"city"`
		PostalCode string `json:"postalCode"`
		Full       string `json:"full"`
	} `json:"address"`

	Photos []string `json:"photos"`

	OpenHouses []struct {
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
		Remarks   string `json:"remarks"`
	} `json:"openHouses"`
}
