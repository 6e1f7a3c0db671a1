// Package resultcache memoizes escalation results per query fingerprint.
//
// Entries live for a fixed TTL from insertion and are evicted oldest-insert
// first once the capacity is reached. Concurrent lookups for the same
// fingerprint share one compute. Invalidating a scope drops every entry whose
// chain contains it and bumps the scope generation so that computes already
// in flight do not store results read before the invalidation.
package resultcache

import (
	"container/list"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/escalation"
	"github.com/kailas-cloud/medrag/internal/domain/query"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
	"github.com/kailas-cloud/medrag/internal/metrics"
)

const (
	// DefaultTTL is the lifetime of an entry from insertion.
	DefaultTTL = 15 * time.Minute
	// DefaultMaxEntries caps the number of cached results.
	DefaultMaxEntries = 10000

	// maxSharedRetries bounds how often a waiter recomputes after the shared
	// compute was cancelled by another caller.
	maxSharedRetries = 2
)

// Compute produces the result for a fingerprint on a miss.
type Compute = func(ctx context.Context) (*escalation.Result, error)

type entry struct {
	key        string
	chain      []string
	result     *escalation.Result
	insertedAt time.Time
}

// Cache is a TTL + FIFO result cache with single-flight computes.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest insert
	byScope map[string]map[string]struct{}
	gens    map[string]uint64

	group  singleflight.Group
	ttl    time.Duration
	max    int
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxEntries overrides DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.max = n
		}
	}
}

// New creates an empty cache.
func New(logger *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		byScope: make(map[string]map[string]struct{}),
		gens:    make(map[string]uint64),
		ttl:     DefaultTTL,
		max:     DefaultMaxEntries,
		now:     time.Now,
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrCompute returns the cached result for fp or runs compute once for all
// concurrent callers. Errors are returned to every waiter and never stored.
// Each caller stops waiting when its own context is done.
func (c *Cache) GetOrCompute(ctx context.Context, fp query.Fingerprint, compute Compute) (*escalation.Result, error) {
	for attempt := 0; ; attempt++ {
		if res, ok := c.lookup(fp.Key()); ok {
			metrics.ResultCacheTotal.WithLabelValues("hit").Inc()
			return res, nil
		}

		chain := fp.Chain().Keys()
		flightKey, gens := c.flightKey(fp.Key(), chain)

		ch := c.group.DoChan(flightKey, func() (any, error) {
			res, err := compute(ctx)
			if err != nil {
				return nil, err
			}
			c.store(fp.Key(), chain, gens, res)
			return res, nil
		})

		select {
		case <-ctx.Done():
			return nil, deadlineErr(ctx.Err())
		case r := <-ch:
			if r.Shared {
				metrics.ResultCacheTotal.WithLabelValues("shared").Inc()
			} else {
				metrics.ResultCacheTotal.WithLabelValues("miss").Inc()
			}
			if r.Err != nil {
				// The shared compute ran under another caller's context.
				if r.Shared && ctx.Err() == nil && attempt < maxSharedRetries && errors.Is(r.Err, domain.ErrDeadlineExceeded) {
					continue
				}
				return nil, r.Err
			}
			return r.Val.(*escalation.Result), nil
		}
	}
}

// Origins of an invalidation.
const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// Invalidate drops every entry whose chain contains s. It is idempotent.
func (c *Cache) Invalidate(s scope.Scope) int {
	return c.InvalidateFrom(s, OriginLocal)
}

// InvalidateFrom is Invalidate labelled with where the change happened.
func (c *Cache) InvalidateFrom(s scope.Scope, origin string) int {
	metrics.CacheInvalidationsTotal.WithLabelValues(origin).Inc()
	key := s.Key()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[key]++
	fps := c.byScope[key]
	n := 0
	for fp := range fps {
		if el, ok := c.entries[fp]; ok {
			c.removeLocked(el)
			n++
		}
	}
	delete(c.byScope, key)
	metrics.ResultCacheEntries.Set(float64(len(c.entries)))
	if n > 0 {
		c.logger.Debug("Result cache invalidated", zap.String("scope", s.Redacted()), zap.Int("entries", n))
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (*escalation.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.removeLocked(el)
		metrics.ResultCacheEntries.Set(float64(len(c.entries)))
		return nil, false
	}
	return e.result, true
}

// flightKey binds the single-flight key to the current generations of the
// chain so that callers arriving after an invalidation start a fresh compute.
func (c *Cache) flightKey(fp string, chain []string) (string, []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gens := make([]uint64, len(chain))
	var b strings.Builder
	b.WriteString(fp)
	for i, k := range chain {
		gens[i] = c.gens[k]
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(gens[i], 10))
	}
	return b.String(), gens
}

func (c *Cache) store(key string, chain []string, gens []uint64, res *escalation.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, k := range chain {
		if c.gens[k] != gens[i] {
			c.logger.Debug("Discarding result computed before invalidation", zap.Int("tier", i))
			return
		}
	}

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	for len(c.entries) >= c.max {
		c.removeLocked(c.order.Front())
	}

	el := c.order.PushBack(&entry{key: key, chain: chain, result: res, insertedAt: c.now()})
	c.entries[key] = el
	for _, k := range chain {
		set, ok := c.byScope[k]
		if !ok {
			set = make(map[string]struct{})
			c.byScope[k] = set
		}
		set[key] = struct{}{}
	}
	metrics.ResultCacheEntries.Set(float64(len(c.entries)))
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, e.key)
	for _, k := range e.chain {
		if set, ok := c.byScope[k]; ok {
			delete(set, e.key)
			if len(set) == 0 {
				delete(c.byScope, k)
			}
		}
	}
}

func deadlineErr(err error) error {
	return &domain.EscalationError{
		State:  string(escalation.Exhausted),
		Reason: domain.ErrDeadlineExceeded,
		Cause:  err,
	}
}
