// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

// Cache is a small LIFO of freed values kept in front of a TypedPool.
//
// A Cache is not synchronized and must have exactly one owner. Containers
// keep one per participant of the reclamation domain, so recycled nodes
// are reused without touching the pool mutex and no cache is ever shared
// between goroutines.
type Cache[T any] struct {
	pool   *TypedPool[T]
	items  []*T
	hits   uint64
	misses uint64
}

// NewCache creates a cache holding at most size values. A size of zero
// turns the cache into a pass-through to the pool.
func NewCache[T any](p *TypedPool[T], size int) *Cache[T] {
	return &Cache[T]{
		pool:  p,
		items: make([]*T, 0, max(size, 0)),
	}
}

// Get returns a recycled zero value, or allocates from the pool.
func (c *Cache[T]) Get() (*T, error) {
	if n := len(c.items); n > 0 {
		x := c.items[n-1]
		c.items[n-1] = nil
		c.items = c.items[:n-1]
		c.hits++
		return x, nil
	}
	c.misses++
	return c.pool.Allocate(nil)
}

// Put recycles x. When the cache is full x goes back to the pool.
func (c *Cache[T]) Put(x *T) {
	if x == nil {
		return
	}
	if len(c.items) < cap(c.items) {
		c.pool.scrub(x)
		c.items = append(c.items, x)
		return
	}
	c.pool.Deallocate(x)
}

// Flush returns every cached value to the pool.
func (c *Cache[T]) Flush() {
	for i, x := range c.items {
		c.pool.release(x)
		c.items[i] = nil
	}
	c.items = c.items[:0]
}

// Len returns the number of cached values.
func (c *Cache[T]) Len() int { return len(c.items) }

// Hits returns how many Get calls were served from the cache.
func (c *Cache[T]) Hits() uint64 { return c.hits }

// Misses returns how many Get calls fell through to the pool.
func (c *Cache[T]) Misses() uint64 { return c.misses }
