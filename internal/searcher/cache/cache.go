package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dannyJ848/SOMA-sub037/internal/searcher/executor"
	"github.com/dannyJ848/SOMA-sub037/internal/searcher/parser"
	pkgredis "github.com/dannyJ848/SOMA-sub037/pkg/redis"
	"github.com/dannyJ848/SOMA-sub037/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the key-value backend. *pkgredis.Client satisfies it; Get must
// return pkgredis.ErrCacheMiss for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache memoizes search results. Every call names the index
// generation the caller is serving from and keys are scoped to it, so a
// result computed against one snapshot is never returned for another.
// Backend failures degrade to a miss: the breaker
// stops calling a failing Redis and the search is computed directly.
type QueryCache struct {
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	breaker   *resilience.CircuitBreaker
	group     singleflight.Group
	logger    *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type Option func(*QueryCache)

// WithBreaker replaces the default circuit breaker, for example to report
// its state changes to metrics.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *QueryCache) {
		c.breaker = cb
	}
}

// WithOpTimeout bounds each backend round-trip.
func WithOpTimeout(d time.Duration) Option {
	return func(c *QueryCache) {
		c.opTimeout = d
	}
}

func New(store Store, ttl time.Duration, opts ...Option) *QueryCache {
	c := &QueryCache{
		store:     store,
		ttl:       ttl,
		opTimeout: 50 * time.Millisecond,
		logger:    slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
		})
	}
	return c
}

// Get looks up the result of plan against index generation gen.
func (c *QueryCache) Get(ctx context.Context, gen string, plan *parser.QueryPlan, limit int) (*executor.SearchResult, bool) {
	key := c.buildKey(gen, plan, limit)
	var data string
	err := c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, "cache get", func(ctx context.Context) error {
			var err error
			data, err = c.store.Get(ctx, key)
			if errors.Is(err, pkgredis.ErrCacheMiss) {
				return nil
			}
			return err
		})
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if data == "" {
		c.misses.Add(1)
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", plan.RawQuery, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, gen string, plan *parser.QueryPlan, limit int, result *executor.SearchResult) {
	key := c.buildKey(gen, plan, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, "cache set", func(ctx context.Context) error {
			return c.store.Set(ctx, key, data, c.ttl)
		})
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or computes, stores and returns a
// fresh one. gen must identify the snapshot computeFn runs against.
// Concurrent misses for the same key share one computation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	gen string,
	plan *parser.QueryPlan,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, gen, plan, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(gen, plan, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, gen, plan, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.State()
}

// buildKey hashes everything that can change a result: the lower-cased,
// trimmed phrase (which determines both the terms and the name bonus), the
// category filter, the limit and the index generation.
func (c *QueryCache) buildKey(gen string, plan *parser.QueryPlan, limit int) string {
	raw := strings.Join([]string{
		gen,
		plan.Phrase,
		plan.Category,
		fmt.Sprintf("limit=%d", limit),
	}, "\x00")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
