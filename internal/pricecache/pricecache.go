// Package pricecache provides the TTL-bounded unit-price cache sitting
// between the cost aggregator and the pricing APIs.
//
// Read precedence is fixed: operator override, then a fresh cached live
// price, then a live fetch, then the heuristic fallback. Overrides and
// heuristic prices are never persisted; the backend only ever holds
// prices that came from a live fetch.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/peralese/cloud-pricing-calculator/internal/workload"
)

// Source records where a price came from.
type Source string

const (
	SourceLive      Source = "live-fetch"
	SourceOverride  Source = "override-file"
	SourceHeuristic Source = "heuristic-fallback"
)

// Services a price can be keyed under.
const (
	ServiceCompute   = "compute"
	ServiceDatabase  = "database"
	ServiceBlockStor = "block-storage"
)

// Key identifies one priceable unit. Variant carries the axis that
// changes the price within a SKU: operating system for compute, engine
// plus deployment for databases.
type Key struct {
	Provider workload.Provider `json:"provider"`
	Region   string            `json:"region"`
	Service  string            `json:"service"`
	SKU      string            `json:"sku"`
	Variant  string            `json:"variant"`
}

// String renders the canonical cache key form.
func (k Key) String() string {
	return strings.Join([]string{string(k.Provider), k.Region, k.Service, k.SKU, k.Variant}, "|")
}

// Entry is one cached price. Entries are immutable; staleness is judged
// at read time against the caller's TTL, never stored on the entry.
type Entry struct {
	Key       Key       `json:"key"`
	UnitPrice float64   `json:"unit_price"`
	Unit      string    `json:"unit"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    Source    `json:"source"`
}

// FreshAt reports whether the entry is still usable at now given ttl.
func (e Entry) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// FetchFunc retrieves a live unit price. The context carries the
// caller's deadline; implementations must honor it.
type FetchFunc func(ctx context.Context, key Key) (price float64, unit string, err error)

// Heuristic estimates a unit price when no live price is reachable.
type Heuristic interface {
	Estimate(key Key) (price float64, unit string, ok bool)
}

// ErrNoPrice is returned when neither a fetch nor a heuristic can
// produce a price for a key.
var ErrNoPrice = errors.New("no price available")

// Cache is the TTL price cache. Concurrent callers of the same key are
// serialized so a key is fetched at most once per expiry.
type Cache struct {
	backend   Backend
	heuristic Heuristic
	overrides map[string]float64
	refresh   bool
	now       func() time.Time
	logger    zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithHeuristic installs a fallback estimator used when a fetch fails.
func WithHeuristic(h Heuristic) Option {
	return func(c *Cache) { c.heuristic = h }
}

// WithOverrides installs operator-pinned prices keyed by Key.String().
func WithOverrides(overrides map[string]float64) Option {
	return func(c *Cache) { c.overrides = overrides }
}

// WithForcedRefresh makes every read bypass cached entries. Fetched
// prices are still persisted for subsequent runs.
func WithForcedRefresh(force bool) Option {
	return func(c *Cache) { c.refresh = force }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a Cache over a backend.
func New(backend Backend, logger zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		now:     time.Now,
		logger:  logger,
		locks:   map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the price for key, fetching at most once per expiry
// window. An expired entry is replaced wholesale; entries are never
// mutated in place.
func (c *Cache) GetOrFetch(ctx context.Context, key Key, ttl time.Duration, fetch FetchFunc) (Entry, error) {
	if price, ok := c.overrides[key.String()]; ok {
		return Entry{Key: key, UnitPrice: price, Unit: unitFor(key.Service), FetchedAt: c.now(), Source: SourceOverride}, nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if !c.refresh {
		if entry, ok, err := c.backend.Load(key); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("cache read failed; refetching")
		} else if ok && entry.FreshAt(c.now(), ttl) {
			return entry, nil
		}
	}

	price, unit, err := fetch(ctx, key)
	if err == nil {
		entry := Entry{Key: key, UnitPrice: price, Unit: unit, FetchedAt: c.now(), Source: SourceLive}
		if storeErr := c.backend.Store(entry); storeErr != nil {
			// A full or read-only cache dir degrades to fetch-per-run.
			c.logger.Warn().Err(storeErr).Str("key", key.String()).Msg("cache write failed")
		}
		return entry, nil
	}

	c.logger.Warn().Err(err).Str("key", key.String()).Msg("price fetch failed")
	if c.heuristic != nil {
		if price, unit, ok := c.heuristic.Estimate(key); ok {
			return Entry{Key: key, UnitPrice: price, Unit: unit, FetchedAt: c.now(), Source: SourceHeuristic}, nil
		}
	}
	return Entry{}, fmt.Errorf("%s: %w: %s", key.String(), ErrNoPrice, err)
}

// unitFor labels a pinned override price by its service. Live entries
// carry whatever unit the API reported instead.
func unitFor(service string) string {
	if service == ServiceBlockStor {
		return "USD/GB-month"
	}
	return "USD/hour"
}

func (c *Cache) keyLock(key Key) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	lock, ok := c.locks[k]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[k] = lock
	}
	return lock
}
