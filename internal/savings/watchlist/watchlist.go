// Package watchlist caches the active wallets the detector matches against.
//
// The cache is rebuilt wholesale from the store once per TTL. A wallet added,
// deactivated or reconfigured by another process is seen only after the
// current window expires; writes made through this process call Invalidate.
package watchlist

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/logger"
)

const DefaultTTL = 5 * time.Minute

// Source loads the active wallets joined with owner configuration.
type Source interface {
	ListWatched(ctx context.Context) ([]domain.WatchedWallet, error)
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

type Cache struct {
	src   Source
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu        sync.RWMutex
	wallets   map[string]domain.WatchedWallet
	expiresAt time.Time
}

func New(src Source, opts ...Option) *Cache {
	c := &Cache{src: src, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the current address -> wallet mapping, reloading it when absent
// or expired. Callers must not mutate the returned map.
func (c *Cache) Get(ctx context.Context) (map[string]domain.WatchedWallet, error) {
	c.mu.RLock()
	m, exp := c.wallets, c.expiresAt
	c.mu.RUnlock()
	if m != nil && c.now().Before(exp) {
		return m, nil
	}
	return c.reload(ctx)
}

// Lookup finds a watched wallet by address, case-insensitively.
func (c *Cache) Lookup(ctx context.Context, address string) (domain.WatchedWallet, bool, error) {
	m, err := c.Get(ctx)
	if err != nil {
		return domain.WatchedWallet{}, false, err
	}
	w, ok := m[strings.ToLower(strings.TrimSpace(address))]
	return w, ok, nil
}

func (c *Cache) IsWatched(ctx context.Context, address string) (bool, error) {
	_, ok, err := c.Lookup(ctx, address)
	return ok, err
}

// Invalidate drops the cached mapping; the next Get reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.wallets = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// Refresh forces a reload now.
func (c *Cache) Refresh(ctx context.Context) error {
	c.Invalidate()
	_, err := c.reload(ctx)
	return err
}

// Size returns the number of cached wallets without reloading.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.wallets)
}

func (c *Cache) reload(ctx context.Context) (map[string]domain.WatchedWallet, error) {
	v, err, _ := c.group.Do("reload", func() (interface{}, error) {
		rows, err := c.src.ListWatched(ctx)
		if err != nil {
			return nil, err
		}
		m := make(map[string]domain.WatchedWallet, len(rows))
		for _, w := range rows {
			m[strings.ToLower(w.Address)] = w
		}

		c.mu.Lock()
		c.wallets = m
		c.expiresAt = c.now().Add(c.ttl)
		c.mu.Unlock()

		logger.Debug(ctx, "watch-list reloaded", zap.Int("wallets", len(m)))
		return m, nil
	})
	if err != nil {
		logger.Error(ctx, "watch-list reload failed", zap.Error(err))
		return nil, err
	}
	return v.(map[string]domain.WatchedWallet), nil
}
