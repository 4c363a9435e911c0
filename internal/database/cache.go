package database

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/nfrund/parley/internal/domain"
)

// CachedDirectory memoises FindUserByID for a short TTL. Sender resolution
// hits the directory once per broadcast and once per history row, and the same
// few senders dominate a busy room.
//
// Deletes made through this directory evict immediately; deletes made elsewhere
// become visible after at most ttl.
type CachedDirectory struct {
	domain.UserDirectory
	cache *ristretto.Cache[string, *domain.User]
	ttl   time.Duration
}

// NewCachedDirectory wraps next with a profile cache holding up to maxEntries users.
func NewCachedDirectory(next domain.UserDirectory, ttl time.Duration, maxEntries int64) (*CachedDirectory, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *domain.User]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}
	return &CachedDirectory{UserDirectory: next, cache: cache, ttl: ttl}, nil
}

// FindUserByID serves from the cache when possible.
func (d *CachedDirectory) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := d.cache.Get(id); ok {
		return u, nil
	}

	u, err := d.UserDirectory.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.SetWithTTL(id, u, 1, d.ttl)
	return u, nil
}

// DeleteUser removes the user and evicts it from the cache.
func (d *CachedDirectory) DeleteUser(ctx context.Context, id string) error {
	d.cache.Del(id)
	err := d.UserDirectory.DeleteUser(ctx, id)
	d.cache.Del(id)
	return err
}

// Wait blocks until pending cache writes are applied.
func (d *CachedDirectory) Wait() {
	d.cache.Wait()
}

// Close releases the cache's background goroutines.
func (d *CachedDirectory) Close() {
	d.cache.Close()
}
