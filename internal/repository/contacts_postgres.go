package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresContactsRepository scopes every query to the calling tenant
// both in the WHERE clause and via the session setting row policies
// consume.
type PostgresContactsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresContactsRepository(pool *pgxpool.Pool) *PostgresContactsRepository {
	return &PostgresContactsRepository{pool: pool}
}

func (r *PostgresContactsRepository) GetContact(ctx context.Context, accountID, contactID string) (*domain.Contact, error) {
	var contact domain.Contact
	err := withAccountScope(ctx, r.pool, accountID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT id, account_id, name, email, created_at
			FROM contacts
			WHERE id = $1 AND account_id = $2
		`, contactID, accountID).Scan(
			&contact.ID, &contact.AccountID, &contact.Name, &contact.Email, &contact.CreatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &contact, nil
}

func (r *PostgresContactsRepository) GetGroup(ctx context.Context, accountID, groupID string) (*domain.ContactGroup, error) {
	var group domain.ContactGroup
	err := withAccountScope(ctx, r.pool, accountID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT id, account_id, name, created_at
			FROM contact_groups
			WHERE id = $1 AND account_id = $2
		`, groupID, accountID).Scan(
			&group.ID, &group.AccountID, &group.Name, &group.CreatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contact group: %w", err)
	}
	return &group, nil
}

func (r *PostgresContactsRepository) ListGroupMembers(ctx context.Context, accountID, groupID string) ([]domain.ContactGroupMember, error) {
	var members []domain.ContactGroupMember
	err := withAccountScope(ctx, r.pool, accountID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT m.group_id, m.member_type, m.member_id
			FROM contact_group_members m
			JOIN contact_groups g ON g.id = m.group_id
			WHERE m.group_id = $1 AND g.account_id = $2
		`, groupID, accountID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var member domain.ContactGroupMember
			var memberType string
			if err := rows.Scan(&member.GroupID, &memberType, &member.MemberID); err != nil {
				return err
			}
			member.MemberType = domain.GroupMemberType(memberType)
			members = append(members, member)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}
