package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/socialapp/backend/internal/models"
)

type cacheEntry struct {
	user    models.UserSummary
	expires time.Time
}

// CachingUserDirectory wraps another UserDirectory with a TTL-based in-memory
// cache of found users. Misses are never cached.
type CachingUserDirectory struct {
	base UserDirectory
	ttl  time.Duration

	NowFunc func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingUserDirectory returns a directory that caches lookups for the provided TTL.
func NewCachingUserDirectory(base UserDirectory, ttl time.Duration) *CachingUserDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingUserDirectory{
		base:    base,
		ttl:     ttl,
		NowFunc: time.Now,
		items:   make(map[string]cacheEntry),
	}
}

func (c *CachingUserDirectory) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now()
}

func (c *CachingUserDirectory) lookup(userID string, now time.Time) (models.UserSummary, bool) {
	c.mu.RLock()
	entry, ok := c.items[userID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.user, true
	}
	return models.UserSummary{}, false
}

func (c *CachingUserDirectory) store(users map[string]models.UserSummary, now time.Time) {
	c.mu.Lock()
	for id, user := range users {
		c.items[id] = cacheEntry{user: user, expires: now.Add(c.ttl)}
	}
	c.mu.Unlock()
}

// Exists answers from the cache when the user was recently seen.
func (c *CachingUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	if _, ok := c.lookup(userID, c.now()); ok {
		return true, nil
	}
	return c.base.Exists(ctx, userID)
}

// Get returns the cached summary when available, otherwise it delegates to the
// underlying directory and stores the result.
func (c *CachingUserDirectory) Get(ctx context.Context, userID string) (models.UserSummary, error) {
	now := c.now()
	if user, ok := c.lookup(userID, now); ok {
		return user, nil
	}

	user, err := c.base.Get(ctx, userID)
	if err != nil {
		return models.UserSummary{}, err
	}

	c.store(map[string]models.UserSummary{userID: user}, now)
	return user, nil
}

// GetMany serves cached ids locally and fetches the rest in one batch.
func (c *CachingUserDirectory) GetMany(ctx context.Context, userIDs []string) (map[string]models.UserSummary, error) {
	now := c.now()
	out := make(map[string]models.UserSummary, len(userIDs))

	var missing []string
	for _, id := range userIDs {
		if user, ok := c.lookup(id, now); ok {
			out[id] = user
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.base.GetMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	c.store(fetched, now)

	for id, user := range fetched {
		out[id] = user
	}
	return out, nil
}

var _ UserDirectory = (*CachingUserDirectory)(nil)
