// Package cache keeps recently computed per-user statistics for a short time.
// Entries are dropped as soon as a progress write for the user is announced.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/flashlearn/backend/internal/events"
	"github.com/flashlearn/backend/internal/logger"
	"github.com/flashlearn/backend/internal/models"
)

// StatsCache holds one DerivedStats per user.
//
// Writers take a Version before fetching the data they aggregate and pass
// it to Set. Invalidate bumps the version, so a Set computed from data read
// before the invalidation is dropped instead of hiding the newer write.
type StatsCache interface {
	// Get reports ok=false on a miss or an expired entry.
	Get(ctx context.Context, userID int64) (models.DerivedStats, bool, error)
	Version(ctx context.Context, userID int64) (uint64, error)
	// Set stores s only while the user's version still equals version.
	Set(ctx context.Context, userID int64, version uint64, s models.DerivedStats) error
	Invalidate(ctx context.Context, userID int64) error
}

// MemoryCache is a TTL map for single-instance deployments.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	entries  map[int64]memoryEntry
	versions map[int64]uint64
}

type memoryEntry struct {
	stats   models.DerivedStats
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[int64]memoryEntry),
		versions: make(map[int64]uint64),
	}
}

func (c *MemoryCache) Get(_ context.Context, userID int64) (models.DerivedStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return models.DerivedStats{}, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, userID)
		return models.DerivedStats{}, false, nil
	}
	return e.stats, true, nil
}

func (c *MemoryCache) Version(_ context.Context, userID int64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID], nil
}

func (c *MemoryCache) Set(_ context.Context, userID int64, version uint64, s models.DerivedStats) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return nil
	}
	c.entries[userID] = memoryEntry{stats: s, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	c.versions[userID]++
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}

// Watch drops a user's cached stats whenever the bus reports a progress
// write for that user.
func Watch(ctx context.Context, bus events.Bus, c StatsCache, log *logger.Logger) error {
	log = log.With("component", "StatsCacheWatcher")
	return bus.Subscribe(ctx, func(ctx context.Context, e events.Event) {
		if e.Type != events.TypeProgressUpdated {
			return
		}
		if err := c.Invalidate(ctx, e.UserID); err != nil {
			log.Warn("invalidate stats cache", "user_id", e.UserID, "error", err)
		}
	})
}
