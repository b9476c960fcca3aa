package domain

import "time"

type AccountType string

const (
	AccountTypeRegular           AccountType = "REGULAR"
	AccountTypeIndustryAffiliate AccountType = "INDUSTRY_AFFILIATE"
)

// Account is a tenant. A REGULAR account may be sponsored by an
// INDUSTRY_AFFILIATE account, in which case it inherits the sponsor's
// branding; affiliates themselves never have a sponsor.
type Account struct {
	ID                string
	Name              string
	Email             string
	PlanSlug          string
	PlanLimitOverride *int
	AccountType       AccountType
	SponsorAccountID  *string
	IsActive          bool
	// Branding holds the account's own presentation columns; empty
	// fields fall back when a brand is composed.
	Branding          Brand
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Plan is one row of the plan catalog. A MonthlyReportLimit of 0 or
// >= 10000 means unlimited.
type Plan struct {
	Slug               string
	Name               string
	MonthlyReportLimit int
	AllowOverage       bool
	OveragePriceCents  int
	IsActive           bool
}

const UnlimitedReportThreshold = 10_000

// Unlimited reports true when the plan imposes no monthly cap.
func (p Plan) Unlimited() bool {
	return p.MonthlyReportLimit <= 0 || p.MonthlyReportLimit >= UnlimitedReportThreshold
}

// Brand is the presentation identity applied to rendered reports and
// emails. It is derived from the account (or its sponsor), never stored.
type Brand struct {
	DisplayName  string
	LogoURL      string
	PrimaryColor string
	AccentColor  string
	RepPhotoURL  string
	ContactLine1 string
	ContactLine2 string
	WebsiteURL   string
}
