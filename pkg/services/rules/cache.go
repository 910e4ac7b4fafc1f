package rules

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL = 5 * time.Minute

	refreshTimeout = 30 * time.Second
	loadKey        = "rules"
)

// Cache serves rule snapshots with a bounded TTL. The first Get loads
// synchronously; afterwards a stale snapshot is returned immediately while
// one background refresh replaces it. Snapshots are never mutated.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	current  *RuleSet
	loadedAt time.Time
}

// NewCache creates a cache over store. A nil store serves the built-in rules.
func NewCache(store Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if store == nil {
		store = StaticStore{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger.Named("rules-cache"),
		now:    time.Now,
	}
}

// Get returns the current snapshot. It only fails when nothing was ever
// loaded and the store is unavailable, in which case the built-in rules are
// returned alongside the error.
func (c *Cache) Get(ctx context.Context) (*RuleSet, error) {
	c.mu.RLock()
	current, loadedAt := c.current, c.loadedAt
	c.mu.RUnlock()

	if current == nil {
		rs, err := c.load(ctx)
		if err != nil {
			return Default(), err
		}
		return rs, nil
	}

	if c.now().Sub(loadedAt) >= c.ttl {
		c.refreshInBackground(ctx)
	}
	return current, nil
}

// Refresh reloads synchronously.
func (c *Cache) Refresh(ctx context.Context) (*RuleSet, error) {
	return c.load(ctx)
}

// Invalidate marks the snapshot stale so the next Get triggers a refresh.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) refreshInBackground(ctx context.Context) {
	// the refresh outlives the scan that noticed the stale snapshot
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	ch := c.group.DoChan(loadKey, func() (any, error) {
		return c.fetch(bg)
	})
	go func() {
		defer cancel()
		if res := <-ch; res.Err != nil {
			c.logger.Warn("Background rule refresh failed, keeping previous snapshot", zap.Error(res.Err))
		}
	}()
}

func (c *Cache) load(ctx context.Context) (*RuleSet, error) {
	v, err, _ := c.group.Do(loadKey, func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RuleSet), nil
}

// fetch loads, compiles and installs a new snapshot.
func (c *Cache) fetch(ctx context.Context) (*RuleSet, error) {
	doc, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	rs := Compile(doc, c.logger)
	rs.LoadedAt = c.now()

	c.mu.Lock()
	c.current = rs
	c.loadedAt = rs.LoadedAt
	c.mu.Unlock()

	c.logger.Debug("Rule snapshot loaded",
		zap.String("version", rs.Version),
		zap.Int("naming_rules", len(rs.Naming)),
		zap.Int("custom_pii_rules", len(rs.PII.Custom)),
		zap.Int("skipped", len(rs.Skipped)))
	return rs, nil
}
