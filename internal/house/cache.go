package house

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
)

// CacheConfig tunes the house cache.
type CacheConfig struct {
	// MaxHouses caps the number of house trees held in memory. Loading
	// beyond the cap evicts the least recently used house, which is safe
	// because every mutation is written through before it commits.
	MaxHouses int

	// LockTimeout bounds how long a command waits for the cache mutex
	// before giving up with ErrStateUnavailable.
	LockTimeout time.Duration
}

// Cache holds loaded house trees and serialises all access to them.
//
// A single bounded-wait mutex guards the whole cache: command handlers run
// their read-or-mutate closure under it, so the tree a handler sees is
// always internally consistent and two commands never interleave on the
// same house. The wait is bounded so a stuck handler degrades into
// state_unavailable errors instead of piling up goroutines.
type Cache struct {
	repo   Repository
	logger *logging.Logger

	sem     *semaphore.Weighted
	timeout time.Duration

	maxHouses int
	houses    map[int64]*cacheEntry
	lru       *list.List // front = most recently used; values are house ids
}

type cacheEntry struct {
	house *House
	elem  *list.Element
}

// NewCache creates a house cache backed by the given repository.
func NewCache(repo Repository, cfg CacheConfig, logger *logging.Logger) *Cache {
	if cfg.MaxHouses < 1 {
		cfg.MaxHouses = 1
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	return &Cache{
		repo:      repo,
		logger:    logger,
		sem:       semaphore.NewWeighted(1),
		timeout:   cfg.LockTimeout,
		maxHouses: cfg.MaxHouses,
		houses:    make(map[int64]*cacheEntry),
		lru:       list.New(),
	}
}

// Do runs fn with the house tree for houseID, loading it from the store
// on a cache miss. fn runs under the cache mutex and may mutate the tree;
// it must not retain the *House after returning.
//
// Returns ErrStateUnavailable when the mutex cannot be acquired within
// the configured timeout, and ErrHouseNotFound for unknown houses.
func (c *Cache) Do(ctx context.Context, houseID int64, fn func(*House) error) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.sem.Release(1)

	h, err := c.getOrLoad(ctx, houseID)
	if err != nil {
		return err
	}
	return fn(h)
}

// Contains reports whether the house is currently cached. Intended for
// tests and diagnostics; does not touch recency.
func (c *Cache) Contains(ctx context.Context, houseID int64) (bool, error) {
	if err := c.acquire(ctx); err != nil {
		return false, err
	}
	defer c.sem.Release(1)
	_, ok := c.houses[houseID]
	return ok, nil
}

// Len returns the number of cached houses.
func (c *Cache) Len(ctx context.Context) (int, error) {
	if err := c.acquire(ctx); err != nil {
		return 0, err
	}
	defer c.sem.Release(1)
	return len(c.houses), nil
}

// acquire takes the cache mutex, waiting at most the configured timeout.
func (c *Cache) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.sem.Acquire(waitCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: lock not acquired within %s", ErrStateUnavailable, c.timeout)
		}
		return fmt.Errorf("acquiring cache lock: %w", err)
	}
	return nil
}

// getOrLoad returns the cached tree for houseID, loading and inserting it
// on a miss. Caller holds the mutex.
func (c *Cache) getOrLoad(ctx context.Context, houseID int64) (*House, error) {
	if entry, ok := c.houses[houseID]; ok {
		c.lru.MoveToFront(entry.elem)
		return entry.house, nil
	}

	h, err := c.repo.LoadHouse(ctx, houseID)
	if err != nil {
		return nil, err
	}

	c.evictIfFull()
	c.houses[houseID] = &cacheEntry{
		house: h,
		elem:  c.lru.PushFront(houseID),
	}
	c.logger.Debug("house loaded into cache",
		"house_id", houseID, "rooms", len(h.Rooms), "cached", len(c.houses))
	return h, nil
}

// evictIfFull drops the least recently used house when the cache is at
// capacity. Evicted trees carry no unpersisted state: writes go through
// the repository before the cache commits them.
func (c *Cache) evictIfFull() {
	for len(c.houses) >= c.maxHouses {
		oldest := c.lru.Back()
		if oldest == nil {
			return
		}
		id := oldest.Value.(int64) //nolint:errcheck // list only ever holds int64 ids
		c.lru.Remove(oldest)
		delete(c.houses, id)
		c.logger.Debug("house evicted from cache", "house_id", id)
	}
}
