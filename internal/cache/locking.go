package cache

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// FillFunc populates the cache as a side effect, usually through Put. It may
// decline to store anything.
type FillFunc func(ctx context.Context) error

// LockingCache is an LRU whose fills run one at a time, across all keys, in
// the order callers asked for them.
type LockingCache[K comparable, V any] struct {
	*LRU[K, V]
	fills *semaphore.Weighted
}

func NewLocking[K comparable, V any](size int) *LockingCache[K, V] {
	return &LockingCache[K, V]{
		LRU:   NewLRU[K, V](size),
		fills: semaphore.NewWeighted(1),
	}
}

// GetOrPopulate waits for its turn in the fill queue, runs fill, and then
// reports whatever the cache holds for key. A caller whose context ends while
// queued leaves without running fill. A fill error is returned to this caller
// only; queued fills behind it still run.
func (c *LockingCache[K, V]) GetOrPopulate(ctx context.Context, key K, fill FillFunc) (V, bool, error) {
	var zero V
	if err := c.fills.Acquire(ctx, 1); err != nil {
		return zero, false, err
	}
	err := c.runFill(ctx, fill)
	if err != nil {
		return zero, false, err
	}
	value, ok := c.Get(key)
	return value, ok, nil
}

// Exclusive runs fn while holding the fill lock.
func (c *LockingCache[K, V]) Exclusive(ctx context.Context, fn FillFunc) error {
	if err := c.fills.Acquire(ctx, 1); err != nil {
		return err
	}
	return c.runFill(ctx, fn)
}

func (c *LockingCache[K, V]) runFill(ctx context.Context, fill FillFunc) error {
	defer c.fills.Release(1)
	if fill == nil {
		return nil
	}
	return fill(ctx)
}

// Load returns the cached value for key, filling it through load on a miss.
// It rechecks the cache once its fill turn comes so concurrent callers for
// the same key fetch once.
func Load[K comparable, V any](ctx context.Context, c *LockingCache[K, V], key K, load func(ctx context.Context) (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, _, err := c.GetOrPopulate(ctx, key, func(ctx context.Context) error {
		if _, ok := c.Get(key); ok {
			return nil
		}
		loaded, err := load(ctx)
		if err != nil {
			return err
		}
		c.Put(key, loaded)
		return nil
	})
	return value, err
}
