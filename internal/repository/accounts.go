package repository

import (
	"context"
	"sync"

	"github.com/homescope/reports-back/internal/domain"
)

// AccountsRepository serves accounts, the plan catalog and account
// users.
type AccountsRepository interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	GetPlan(ctx context.Context, slug string) (*domain.Plan, error)
	// EarliestUserEmail returns the email of the account's oldest
	// user; sponsored-agent recipients resolve through it.
	EarliestUserEmail(ctx context.Context, accountID string) (string, error)
}

// MemoryAccountsRepository backs tests and local development.
type MemoryAccountsRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	plans    map[string]*domain.Plan
	users    []domain.User
}

func NewMemoryAccountsRepository() *MemoryAccountsRepository {
	return &MemoryAccountsRepository{
		accounts: make(map[string]*domain.Account),
		plans:    make(map[string]*domain.Plan),
	}
}

func (r *MemoryAccountsRepository) PutAccount(account *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *account
	r.accounts[account.ID] = &clone
}

func (r *MemoryAccountsRepository) PutPlan(plan *domain.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *plan
	r.plans[plan.Slug] = &clone
}

func (r *MemoryAccountsRepository) PutUser(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, user)
}

func (r *MemoryAccountsRepository) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *MemoryAccountsRepository) GetPlan(_ context.Context, slug string) (*domain.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plan, ok := r.plans[slug]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *plan
	return &clone, nil
}

func (r *MemoryAccountsRepository) EarliestUserEmail(_ context.Context, accountID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var earliest *domain.User
	for index := range r.users {
		user := &r.users[index]
		if user.AccountID != accountID {
			continue
		}
		if earliest == nil || user.CreatedAt.Before(earliest.CreatedAt) {
			earliest = user
		}
	}
	if earliest == nil {
		return "", ErrNotFound
	}
	return earliest.Email, nil
}
