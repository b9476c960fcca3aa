package recipient

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/repository"
)

// Resolver expands recipient descriptors into a deduplicated email
// list. Every lookup is scoped to the requesting account: contacts and
// groups must belong to it, sponsored agents must name it as their
// sponsor. Descriptors that fail those checks are skipped with a
// warning, never surfaced as addresses.
type Resolver struct {
	contacts repository.ContactsRepository
	accounts repository.AccountsRepository
	logger   *log.Logger
}

func NewResolver(contacts repository.ContactsRepository, accounts repository.AccountsRepository, logger *log.Logger) *Resolver {
	return &Resolver{contacts: contacts, accounts: accounts, logger: logger}
}

// Resolve returns the email set for the descriptors, preserving first
// appearance order. Descriptors that cannot be resolved are skipped;
// an error is returned only when a backing lookup fails outright.
func (r *Resolver) Resolve(ctx context.Context, accountID string, descriptors []domain.RecipientDescriptor) ([]string, error) {
	seen := make(map[string]bool)
	var emails []string

	add := func(email string) {
		email = strings.TrimSpace(email)
		key := strings.ToLower(email)
		if email == "" || seen[key] {
			return
		}
		seen[key] = true
		emails = append(emails, email)
	}

	for _, descriptor := range descriptors {
		switch descriptor.Type {
		case domain.RecipientContact:
			email, ok, err := r.contactEmail(ctx, accountID, descriptor.ID)
			if err != nil {
				return nil, err
			}
			if ok {
				add(email)
			}
		case domain.RecipientSponsoredAgent:
			email, ok, err := r.sponsoredAgentEmail(ctx, accountID, descriptor.ID)
			if err != nil {
				return nil, err
			}
			if ok {
				add(email)
			}
		case domain.RecipientGroup:
			groupEmails, err := r.groupEmails(ctx, accountID, descriptor.ID)
			if err != nil {
				return nil, err
			}
			for _, email := range groupEmails {
				add(email)
			}
		case domain.RecipientManualEmail:
			if strings.Contains(descriptor.Email, "@") {
				add(descriptor.Email)
			} else {
				r.logger.Printf("WARN: recipient resolver: dropping manual email without @: %q", descriptor.Email)
			}
		default:
			r.logger.Printf("WARN: recipient resolver: unknown descriptor type %q", descriptor.Type)
		}
	}
	return emails, nil
}

func (r *Resolver) contactEmail(ctx context.Context, accountID, contactID string) (string, bool, error) {
	contact, err := r.contacts.GetContact(ctx, accountID, contactID)
	if err != nil {
		if err == repository.ErrNotFound {
			r.logger.Printf("WARN: recipient resolver: contact %s not found for account %s", contactID, accountID)
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve contact %s: %w", contactID, err)
	}
	if contact.AccountID != accountID {
		r.logger.Printf("WARN: recipient resolver: contact %s belongs to another account", contactID)
		return "", false, nil
	}
	return contact.Email, true, nil
}

func (r *Resolver) sponsoredAgentEmail(ctx context.Context, accountID, agentAccountID string) (string, bool, error) {
	agent, err := r.accounts.GetAccount(ctx, agentAccountID)
	if err != nil {
		if err == repository.ErrNotFound {
			r.logger.Printf("WARN: recipient resolver: sponsored agent account %s not found", agentAccountID)
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve sponsored agent %s: %w", agentAccountID, err)
	}
	if agent.SponsorAccountID == nil || *agent.SponsorAccountID != accountID {
		r.logger.Printf("WARN: recipient resolver: account %s is not sponsored by %s", agentAccountID, accountID)
		return "", false, nil
	}

	email, err := r.accounts.EarliestUserEmail(ctx, agentAccountID)
	if err != nil {
		if err == repository.ErrNotFound {
			r.logger.Printf("WARN: recipient resolver: sponsored agent account %s has no users", agentAccountID)
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve sponsored agent user %s: %w", agentAccountID, err)
	}
	return email, true, nil
}

func (r *Resolver) groupEmails(ctx context.Context, accountID, groupID string) ([]string, error) {
	group, err := r.contacts.GetGroup(ctx, accountID, groupID)
	if err != nil {
		if err == repository.ErrNotFound {
			r.logger.Printf("WARN: recipient resolver: group %s not found for account %s", groupID, accountID)
			return nil, nil
		}
		return nil, fmt.Errorf("resolve group %s: %w", groupID, err)
	}
	if group.AccountID != accountID {
		r.logger.Printf("WARN: recipient resolver: group %s belongs to another account", groupID)
		return nil, nil
	}

	members, err := r.contacts.ListGroupMembers(ctx, accountID, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members of group %s: %w", groupID, err)
	}

	var emails []string
	for _, member := range members {
		switch member.MemberType {
		case domain.GroupMemberContact:
			email, ok, err := r.contactEmail(ctx, accountID, member.MemberID)
			if err != nil {
				return nil, err
			}
			if ok {
				emails = append(emails, email)
			}
		case domain.GroupMemberSponsoredAgent:
			email, ok, err := r.sponsoredAgentEmail(ctx, accountID, member.MemberID)
			if err != nil {
				return nil, err
			}
			if ok {
				emails = append(emails, email)
			}
		default:
			r.logger.Printf("WARN: recipient resolver: unknown group member type %q", member.MemberType)
		}
	}
	return emails, nil
}
