package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresAccountsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountsRepository(pool *pgxpool.Pool) *PostgresAccountsRepository {
	return &PostgresAccountsRepository{pool: pool}
}

func (r *PostgresAccountsRepository) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var (
		account     domain.Account
		accountType string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, plan_slug, plan_limit_override, account_type,
			sponsor_account_id, is_active,
			COALESCE(brand_display_name, ''), COALESCE(brand_logo_url, ''),
			COALESCE(brand_primary_color, ''), COALESCE(brand_accent_color, ''),
			COALESCE(brand_rep_photo_url, ''), COALESCE(brand_contact_line1, ''),
			COALESCE(brand_contact_line2, ''), COALESCE(brand_website_url, ''),
			created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(
		&account.ID, &account.Name, &account.Email, &account.PlanSlug,
		&account.PlanLimitOverride, &accountType, &account.SponsorAccountID,
		&account.IsActive,
		&account.Branding.DisplayName, &account.Branding.LogoURL,
		&account.Branding.PrimaryColor, &account.Branding.AccentColor,
		&account.Branding.RepPhotoURL, &account.Branding.ContactLine1,
		&account.Branding.ContactLine2, &account.Branding.WebsiteURL,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	account.AccountType = domain.AccountType(accountType)
	return &account, nil
}

func (r *PostgresAccountsRepository) GetPlan(ctx context.Context, slug string) (*domain.Plan, error) {
	var plan domain.Plan
	err := r.pool.QueryRow(ctx, `
		SELECT slug, name, monthly_report_limit, allow_overage, overage_price_cents, is_active
		FROM plans
		WHERE slug = $1
	`, slug).Scan(
		&plan.Slug, &plan.Name, &plan.MonthlyReportLimit,
		&plan.AllowOverage, &plan.OveragePriceCents, &plan.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

func (r *PostgresAccountsRepository) EarliestUserEmail(ctx context.Context, accountID string) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `
		SELECT email FROM users
		WHERE account_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`, accountID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("earliest user email: %w", err)
	}
	return email, nil
}
