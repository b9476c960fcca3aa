package repository

import (
	"context"
	"sync"

	"github.com/homescope/reports-back/internal/domain"
)

// ContactsRepository serves contacts and contact groups. Every lookup
// takes the calling account so tenant scoping happens at the query.
type ContactsRepository interface {
	GetContact(ctx context.Context, accountID, contactID string) (*domain.Contact, error)
	GetGroup(ctx context.Context, accountID, groupID string) (*domain.ContactGroup, error)
	ListGroupMembers(ctx context.Context, accountID, groupID string) ([]domain.ContactGroupMember, error)
}

// MemoryContactsRepository backs tests and local development.
type MemoryContactsRepository struct {
	mu       sync.RWMutex
	contacts map[string]*domain.Contact
	groups   map[string]*domain.ContactGroup
	members  map[string][]domain.ContactGroupMember
}

func NewMemoryContactsRepository() *MemoryContactsRepository {
	return &MemoryContactsRepository{
		contacts: make(map[string]*domain.Contact),
		groups:   make(map[string]*domain.ContactGroup),
		members:  make(map[string][]domain.ContactGroupMember),
	}
}

func (r *MemoryContactsRepository) PutContact(contact *domain.Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *contact
	r.contacts[contact.ID] = &clone
}

func (r *MemoryContactsRepository) PutGroup(group *domain.ContactGroup, members ...domain.ContactGroupMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *group
	r.groups[group.ID] = &clone
	r.members[group.ID] = append([]domain.ContactGroupMember(nil), members...)
}

func (r *MemoryContactsRepository) GetContact(_ context.Context, accountID, contactID string) (*domain.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	contact, ok := r.contacts[contactID]
	if !ok || contact.AccountID != accountID {
		return nil, ErrNotFound
	}
	clone := *contact
	return &clone, nil
}

func (r *MemoryContactsRepository) GetGroup(_ context.Context, accountID, groupID string) (*domain.ContactGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group, ok := r.groups[groupID]
	if !ok || group.AccountID != accountID {
		return nil, ErrNotFound
	}
	clone := *group
	return &clone, nil
}

func (r *MemoryContactsRepository) ListGroupMembers(_ context.Context, accountID, groupID string) ([]domain.ContactGroupMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group, ok := r.groups[groupID]
	if !ok || group.AccountID != accountID {
		return nil, ErrNotFound
	}
	return append([]domain.ContactGroupMember(nil), r.members[groupID]...), nil
}
