package repository

import (
	"context"
	"fmt"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresEmailLogRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresEmailLogRepository(pool *pgxpool.Pool) *PostgresEmailLogRepository {
	return &PostgresEmailLogRepository{pool: pool}
}

func (r *PostgresEmailLogRepository) InsertEmailLog(ctx context.Context, entry *domain.EmailLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_logs (
			id, account_id, schedule_id, report_id, provider,
			to_emails, subject, response_code, status, error, created_at
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID, entry.AccountID, entry.ScheduleID, entry.ReportID, entry.Provider,
		entry.ToEmails, entry.Subject, entry.ResponseCode, string(entry.Status),
		truncateError(entry.Error), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

func (r *PostgresEmailLogRepository) IsSuppressed(ctx context.Context, accountID, email string) (bool, error) {
	var suppressed bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM email_suppressions
			WHERE account_id = $1 AND lower(email) = lower($2)
		)
	`, accountID, email).Scan(&suppressed)
	if err != nil {
		return false, fmt.Errorf("check suppression: %w", err)
	}
	return suppressed, nil
}

func (r *PostgresEmailLogRepository) Suppress(ctx context.Context, accountID, email string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_suppressions (account_id, email, created_at)
		VALUES ($1, lower($2), now())
		ON CONFLICT (account_id, email) DO NOTHING
	`, accountID, email)
	if err != nil {
		return fmt.Errorf("insert suppression: %w", err)
	}
	return nil
}
