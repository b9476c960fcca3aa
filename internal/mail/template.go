package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/report"
)

// templateData is everything the report email template renders.
type templateData struct {
	AccountName    string
	ReportTitle    string
	Area           string
	LookbackDays   int
	Brand          domain.Brand
	Snapshot       *report.SnapshotStats
	TotalListings  int
	WideningNote   string
	PDFURL         string
	UnsubscribeURL string
}

var reportTitles = map[domain.ReportType]string{
	domain.ReportMarketSnapshot:     "Market Snapshot",
	domain.ReportNewListings:        "New Listings",
	domain.ReportInventory:          "Current Inventory",
	domain.ReportClosed:             "Recently Closed",
	domain.ReportPriceBands:         "Price Band Analysis",
	domain.ReportOpenHouses:         "Upcoming Open Houses",
	domain.ReportNewListingsGallery: "New Listings Gallery",
	domain.ReportFeaturedListings:   "Featured Listings",
}

func reportTitle(reportType domain.ReportType) string {
	if title, ok := reportTitles[reportType]; ok {
		return title
	}
	return strings.ReplaceAll(string(reportType), "_", " ")
}

// formatMoney renders a dollar amount with thousands separators.
func formatMoney(value float64) string {
	digits := fmt.Sprintf("%.0f", value)
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

var emailTemplate = template.Must(template.New("report_email").Funcs(template.FuncMap{
	"money": func(value *float64) string {
		if value == nil {
			return "—"
		}
		return formatMoney(*value)
	},
	"number": func(value *float64) string {
		if value == nil {
			return "—"
		}
		return fmt.Sprintf("%.1f", *value)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.ReportTitle}} — {{.Area}}</title>
</head>
<body style="font-family: Arial, sans-serif; color: #333; margin: 0; padding: 0;">
  <div style="background-color: {{.Brand.PrimaryColor}}; padding: 24px; color: #fff;">
    {{if .Brand.LogoURL}}<img src="{{.Brand.LogoURL}}" alt="{{.Brand.DisplayName}}" style="max-height: 48px;">{{end}}
    <h1 style="margin: 8px 0 0 0; font-size: 22px;">{{.ReportTitle}}</h1>
    <p style="margin: 4px 0 0 0;">{{.Area}} &middot; last {{.LookbackDays}} days</p>
  </div>

  <div style="padding: 24px;">
    <p>Hi,</p>
    <p>{{.Brand.DisplayName}} has prepared your {{.ReportTitle}} report for {{.Area}}.</p>

    {{if .Snapshot}}
    <table style="width: 100%; border-collapse: collapse; margin: 16px 0;">
      <tr>
        <td style="padding: 8px; border: 1px solid #eee;">Active listings</td>
        <td style="padding: 8px; border: 1px solid #eee; text-align: right;">{{.Snapshot.ActiveCount}}</td>
      </tr>
      <tr>
        <td style="padding: 8px; border: 1px solid #eee;">Closed in period</td>
        <td style="padding: 8px; border: 1px solid #eee; text-align: right;">{{.Snapshot.ClosedCount}}</td>
      </tr>
      <tr>
        <td style="padding: 8px; border: 1px solid #eee;">Median list price</td>
        <td style="padding: 8px; border: 1px solid #eee; text-align: right;">{{money .Snapshot.MedianListPrice}}</td>
      </tr>
      <tr>
        <td style="padding: 8px; border: 1px solid #eee;">Median close price</td>
        <td style="padding: 8px; border: 1px solid #eee; text-align: right;">{{money .Snapshot.MedianClosePrice}}</td>
      </tr>
      <tr>
        <td style="padding: 8px; border: 1px solid #eee;">Avg days on market</td>
        <td style="padding: 8px; border: 1px solid #eee; text-align: right;">{{number .Snapshot.AvgDaysOnMarket}}</td>
      </tr>
    </table>
    {{else}}
    <p>This report covers <strong>{{.TotalListings}}</strong> listings.</p>
    {{end}}

    {{if .WideningNote}}<p style="color: #888; font-size: 13px;">{{.WideningNote}}</p>{{end}}

    {{if .PDFURL}}
    <p style="margin: 24px 0;">
      <a href="{{.PDFURL}}" style="background-color: {{.Brand.AccentColor}}; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 4px;">View Full Report (PDF)</a>
    </p>
    {{end}}

    <p style="margin-top: 32px;">
      {{.Brand.DisplayName}}<br>
      {{if .Brand.ContactLine1}}{{.Brand.ContactLine1}}<br>{{end}}
      {{if .Brand.ContactLine2}}{{.Brand.ContactLine2}}<br>{{end}}
      {{if .Brand.WebsiteURL}}<a href="{{.Brand.WebsiteURL}}">{{.Brand.WebsiteURL}}</a>{{end}}
    </p>
  </div>

  <div style="padding: 16px 24px; border-top: 1px solid #eee; font-size: 12px; color: #888;">
    <p>You are receiving this because {{.AccountName}} subscribed you to scheduled market reports.
    <a href="{{.UnsubscribeURL}}" style="color: #888;">Unsubscribe</a></p>
  </div>
</body>
</html>`))

func renderHTML(data templateData) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}

func renderText(data templateData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — %s (last %d days)\n\n", data.ReportTitle, data.Area, data.LookbackDays)
	fmt.Fprintf(&b, "%s has prepared your %s report.\n\n", data.Brand.DisplayName, data.ReportTitle)
	if data.Snapshot != nil {
		fmt.Fprintf(&b, "Active listings: %d\n", data.Snapshot.ActiveCount)
		fmt.Fprintf(&b, "Closed in period: %d\n", data.Snapshot.ClosedCount)
	} else {
		fmt.Fprintf(&b, "Listings covered: %d\n", data.TotalListings)
	}
	if data.PDFURL != "" {
		fmt.Fprintf(&b, "\nFull report: %s\n", data.PDFURL)
	}
	fmt.Fprintf(&b, "\nUnsubscribe: %s\n", data.UnsubscribeURL)
	return b.String()
}
