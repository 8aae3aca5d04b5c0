package querycache

import "context"

// Snapshot is a deep copy of cache entries.
type Snapshot[T any] struct {
	entries map[string]entry[T]
}

func (c *Cache[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := Snapshot[T]{entries: make(map[string]entry[T], len(c.entries))}
	for k, e := range c.entries {
		e.value = c.clone(e.value)
		out.entries[k] = e
	}
	return out
}

// Restore puts back the snapshotted entries for keys (all keys when none are
// given). Keys absent from the snapshot are removed.
func (c *Cache[T]) Restore(s Snapshot[T], keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 0 {
		for k := range c.entries {
			keys = append(keys, k)
		}
		for k := range s.entries {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			e.value = c.clone(e.value)
			c.entries[k] = e
		} else {
			delete(c.entries, k)
		}
		c.versions[k]++
	}
}

// Optimistic runs the snapshot / apply / commit / rollback / reconcile cycle:
// apply is visible to readers before commit is sent; if commit fails the
// touched entries are restored exactly as they were and the error returned.
// refetch runs afterwards either way.
func Optimistic[T any](
	ctx context.Context,
	c *Cache[T],
	apply func(key string, v T) (T, bool),
	commit func(context.Context) error,
	refetch func(context.Context),
) error {
	snap := c.Snapshot()
	touched := c.Update(apply)

	err := commit(ctx)
	if err != nil && len(touched) > 0 {
		c.Restore(snap, touched...)
	}
	if refetch != nil {
		refetch(ctx)
	}
	return err
}
