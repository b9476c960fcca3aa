package brand

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/repository"
)

func newComposer() (*Composer, *repository.MemoryAccountsRepository) {
	accounts := repository.NewMemoryAccountsRepository()
	return NewComposer(accounts, log.New(io.Discard, "", 0)), accounts
}

func TestComposeUsesOwnBranding(t *testing.T) {
	composer, accounts := newComposer()
	accounts.PutAccount(&domain.Account{
		ID:          "acct-1",
		Name:        "Jane Realty",
		AccountType: domain.AccountTypeRegular,
		Branding: domain.Brand{
			DisplayName:  "Jane Sells Homes",
			LogoURL:      "https://cdn/logo.png",
			PrimaryColor: "#123456",
		},
	})

	brand, err := composer.Compose(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if brand.DisplayName != "Jane Sells Homes" || brand.LogoURL != "https://cdn/logo.png" {
		t.Errorf("brand = %+v", brand)
	}
	if brand.PrimaryColor != "#123456" {
		t.Errorf("primary color = %q, want the account's own", brand.PrimaryColor)
	}
	if brand.AccentColor != defaultAccentColor {
		t.Errorf("accent color = %q, want house default", brand.AccentColor)
	}
}

func TestComposeSponsoredAccountInheritsSponsorBranding(t *testing.T) {
	composer, accounts := newComposer()
	sponsor := "affiliate-1"
	accounts.PutAccount(&domain.Account{
		ID:          "affiliate-1",
		Name:        "BigBank Mortgage",
		AccountType: domain.AccountTypeIndustryAffiliate,
		Branding:    domain.Brand{DisplayName: "BigBank", LogoURL: "https://cdn/bigbank.png"},
	})
	accounts.PutAccount(&domain.Account{
		ID:               "agent-1",
		Name:             "Solo Agent",
		AccountType:      domain.AccountTypeRegular,
		SponsorAccountID: &sponsor,
		Branding:         domain.Brand{DisplayName: "Solo"},
	})

	brand, err := composer.Compose(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if brand.DisplayName != "BigBank" || brand.LogoURL != "https://cdn/bigbank.png" {
		t.Errorf("brand = %+v, want sponsor branding", brand)
	}
}

func TestComposeDanglingSponsorFallsBackToOwn(t *testing.T) {
	composer, accounts := newComposer()
	sponsor := "gone"
	accounts.PutAccount(&domain.Account{
		ID:               "agent-1",
		Name:             "Solo Agent",
		Email:            "solo@example.com",
		AccountType:      domain.AccountTypeRegular,
		SponsorAccountID: &sponsor,
	})

	brand, err := composer.Compose(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if brand.DisplayName != "Solo Agent" {
		t.Errorf("display name = %q, want account name fallback", brand.DisplayName)
	}
	if brand.ContactLine1 != "solo@example.com" {
		t.Errorf("contact line = %q, want account email fallback", brand.ContactLine1)
	}
}

func TestComposeAffiliateNeverFollowsSponsor(t *testing.T) {
	composer, accounts := newComposer()
	accounts.PutAccount(&domain.Account{
		ID:          "affiliate-1",
		Name:        "BigBank Mortgage",
		AccountType: domain.AccountTypeIndustryAffiliate,
	})

	brand, err := composer.Compose(context.Background(), "affiliate-1")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if brand.DisplayName != "BigBank Mortgage" {
		t.Errorf("display name = %q", brand.DisplayName)
	}
}
