package plancache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/repository"
)

type entry struct {
	plan      domain.Plan
	createdAt time.Time
	expiresAt time.Time
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// Cache is a bounded read-through cache over the plan catalog. Plans
// change rarely; payment lifecycle events call Invalidate to drop a
// slug before its TTL lapses.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	source     repository.AccountsRepository
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func New(source repository.AccountsRepository, config Config) *Cache {
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 200
	}
	return &Cache{
		entries:    make(map[string]entry),
		source:     source,
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetPlan returns the cached plan for slug, loading it from the
// repository on miss or expiry.
func (c *Cache) GetPlan(ctx context.Context, slug string) (*domain.Plan, error) {
	c.mu.RLock()
	cached, exists := c.entries[slug]
	c.mu.RUnlock()

	if exists && c.now().Before(cached.expiresAt) {
		clone := cached.plan
		return &clone, nil
	}

	plan, err := c.source.GetPlan(ctx, slug)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	now := c.now()
	c.entries[slug] = entry{plan: *plan, createdAt: now, expiresAt: now.Add(c.ttl)}

	clone := *plan
	return &clone, nil
}

// Invalidate drops one slug so the next read hits the repository.
func (c *Cache) Invalidate(slug string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, slug)
}

func (c *Cache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	type pair struct {
		slug  string
		value entry
	}
	pairs := make([]pair, 0, len(c.entries))
	for slug, value := range c.entries {
		pairs = append(pairs, pair{slug: slug, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value.createdAt.Before(pairs[j].value.createdAt)
	})
	delete(c.entries, pairs[0].slug)
}
