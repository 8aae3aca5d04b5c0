// Package querycache is the request cache the UI reads through: one typed
// Cache per resource, entries keyed by query, with a stale time, one in-flight
// fetch per key, and snapshots for optimistic updates.
package querycache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Meta struct {
	FetchedAt time.Time
	Stale     bool
}

type entry[T any] struct {
	value       T
	fetchedAt   time.Time
	invalidated bool
}

type Cache[T any] struct {
	mu        sync.RWMutex
	entries   map[string]entry[T]
	versions  map[string]uint64
	staleTime time.Duration
	clone     func(T) T
	now       func() time.Time
	group     singleflight.Group
}

type Option[T any] func(*Cache[T])

// WithClone deep-copies values on the way in and out so callers never alias
// cached data.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(c *Cache[T]) { c.clone = clone }
}

func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) { c.now = now }
}

func New[T any](staleTime time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries:   map[string]entry[T]{},
		versions:  map[string]uint64{},
		staleTime: staleTime,
		clone:     func(v T) T { return v },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[T]) Get(key string) (T, Meta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, Meta{}, false
	}
	return c.clone(e.value), c.meta(e), true
}

func (c *Cache[T]) meta(e entry[T]) Meta {
	stale := e.invalidated
	if c.staleTime >= 0 && c.now().Sub(e.fetchedAt) >= c.staleTime {
		stale = true
	}
	return Meta{FetchedAt: e.fetchedAt, Stale: stale}
}

func (c *Cache[T]) Set(key string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, v)
}

func (c *Cache[T]) setLocked(key string, v T) {
	c.entries[key] = entry[T]{value: c.clone(v), fetchedAt: c.now()}
	c.versions[key]++
}

// Fetch returns the cached value while it is fresh, otherwise calls fn. Calls
// for the same key share one in-flight request. A result is only stored when
// nothing touched the key (Set, Update, Invalidate, Restore) while fn ran, so a
// slow response cannot overwrite newer local state.
func (c *Cache[T]) Fetch(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	if v, meta, ok := c.Get(key); ok && !meta.Stale {
		return v, nil
	}
	return c.Refetch(ctx, key, fn)
}

// Refetch always calls fn (deduplicated per key).
func (c *Cache[T]) Refetch(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	c.mu.RLock()
	startVersion := c.versions[key]
	c.mu.RUnlock()

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.versions[key] == startVersion {
			c.setLocked(key, v)
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("querycache: unexpected result type %T", res)
	}
	return c.clone(v), nil
}

// Invalidate marks every entry whose key has prefix as stale. Stale values stay
// readable so the UI can keep showing them while it refetches.
func (c *Cache[T]) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if strings.HasPrefix(k, prefix) {
			e.invalidated = true
			c.entries[k] = e
			c.versions[k]++
			n++
		}
	}
	return n
}

// Clear drops everything, e.g. on logout.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		c.versions[k]++
	}
	c.entries = map[string]entry[T]{}
}

func (c *Cache[T]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Update applies fn to every entry; entries for which fn reports a change are
// replaced. It returns the keys it changed.
func (c *Cache[T]) Update(fn func(key string, v T) (T, bool)) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var touched []string
	for k, e := range c.entries {
		next, changed := fn(k, c.clone(e.value))
		if !changed {
			continue
		}
		e.value = c.clone(next)
		c.entries[k] = e
		c.versions[k]++
		touched = append(touched, k)
	}
	sort.Strings(touched)
	return touched
}
