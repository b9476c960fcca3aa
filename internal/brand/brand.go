package brand

import (
	"context"
	"fmt"
	"log"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/repository"
)

const (
	defaultPrimaryColor = "#1d3557"
	defaultAccentColor  = "#e63946"
)

// Composer derives the presentation brand for an account. A REGULAR
// account with a sponsor presents the sponsor's branding; anything the
// brand row leaves empty falls back to account basics and house
// defaults.
type Composer struct {
	accounts repository.AccountsRepository
	logger   *log.Logger
}

func NewComposer(accounts repository.AccountsRepository, logger *log.Logger) *Composer {
	return &Composer{accounts: accounts, logger: logger}
}

func (c *Composer) Compose(ctx context.Context, accountID string) (domain.Brand, error) {
	account, err := c.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return domain.Brand{}, fmt.Errorf("compose brand for %s: %w", accountID, err)
	}

	source := account
	if account.AccountType == domain.AccountTypeRegular && account.SponsorAccountID != nil {
		sponsor, err := c.accounts.GetAccount(ctx, *account.SponsorAccountID)
		if err != nil {
			// A dangling sponsor reference falls back to the account's
			// own branding rather than failing the run.
			c.logger.Printf("WARN: brand: sponsor %s of account %s unavailable: %v",
				*account.SponsorAccountID, accountID, err)
		} else {
			source = sponsor
		}
	}

	composed := source.Branding
	if composed.DisplayName == "" {
		composed.DisplayName = source.Name
	}
	if composed.ContactLine1 == "" {
		composed.ContactLine1 = source.Email
	}
	if composed.PrimaryColor == "" {
		composed.PrimaryColor = defaultPrimaryColor
	}
	if composed.AccentColor == "" {
		composed.AccentColor = defaultAccentColor
	}
	return composed, nil
}
