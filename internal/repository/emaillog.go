package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/homescope/reports-back/internal/domain"
)

// EmailLogRepository persists delivery attempts and answers
// unsubscribe suppression checks before each send.
type EmailLogRepository interface {
	InsertEmailLog(ctx context.Context, entry *domain.EmailLog) error
	IsSuppressed(ctx context.Context, accountID, email string) (bool, error)
	Suppress(ctx context.Context, accountID, email string) error
}

type MemoryEmailLogRepository struct {
	mu         sync.RWMutex
	logs       []domain.EmailLog
	suppressed map[string]bool
}

func NewMemoryEmailLogRepository() *MemoryEmailLogRepository {
	return &MemoryEmailLogRepository{suppressed: make(map[string]bool)}
}

func suppressionKey(accountID, email string) string {
	return accountID + "|" + strings.ToLower(email)
}

func (r *MemoryEmailLogRepository) InsertEmailLog(_ context.Context, entry *domain.EmailLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *entry)
	return nil
}

func (r *MemoryEmailLogRepository) IsSuppressed(_ context.Context, accountID, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suppressed[suppressionKey(accountID, email)], nil
}

func (r *MemoryEmailLogRepository) Suppress(_ context.Context, accountID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed[suppressionKey(accountID, email)] = true
	return nil
}

// Logs returns a copy of everything recorded, oldest first.
func (r *MemoryEmailLogRepository) Logs() []domain.EmailLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.EmailLog, len(r.logs))
	copy(out, r.logs)
	return out
}
