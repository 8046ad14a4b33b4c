// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"log/slog"
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// TypedPool is a fixed-slot allocator for values of type T.
//
// It follows the BlockPool growth policy (chunks of about MaxBlocks/4 slots,
// hard maximum of MaxBlocks) but keeps its slots in typed chunks, so the
// collector still sees every pointer a T holds.
//
// Allocate runs an initializer on the fresh slot; if the initializer fails
// or panics the slot goes back to the free list before the failure reaches
// the caller. Deallocate runs the destroy hook, zeroes the value and frees
// the slot.
type TypedPool[T any] struct {
	maxBlocks int
	destroy   func(*T)

	mu     sync.Mutex
	free   *slot[T]
	chunks [][]slot[T]
	carved int
	closed bool

	allocated atomix.Int64
	arrays    atomix.Int64

	logger *slog.Logger
}

// slot is the unit of a typed chunk. val must stay the first field:
// Deallocate maps *T back to its slot by address.
type slot[T any] struct {
	val  T
	next *slot[T]
	live bool
}

// Array is a length-prefixed array of T obtained from AllocateArray.
type Array[T any] struct {
	n     int
	items []T
}

// Len returns the recorded element count.
func (a *Array[T]) Len() int {
	if a == nil {
		return 0
	}
	return a.n
}

// At returns a pointer to element i.
func (a *Array[T]) At(i int) *T {
	return &a.items[i]
}

// Slice returns the elements as a slice sharing the array storage.
func (a *Array[T]) Slice() []T {
	if a == nil {
		return nil
	}
	return a.items[:a.n:a.n]
}

// TypedStats is a point-in-time view of a TypedPool.
type TypedStats struct {
	MaxBlocks int   `json:"max_blocks"`
	Allocated int64 `json:"allocated"`
	Carved    int   `json:"carved"`
	Chunks    int   `json:"chunks"`
	Arrays    int64 `json:"arrays"`
}

// TypedOption configures a TypedPool.
type TypedOption[T any] func(*TypedPool[T])

// WithDestroy sets a hook run on every value passed to Deallocate or
// DeallocateArray before the slot is zeroed.
func WithDestroy[T any](fn func(*T)) TypedOption[T] {
	return func(p *TypedPool[T]) {
		p.destroy = fn
	}
}

// WithTypedLogger sets the structured logger. A nil logger selects
// slog.Default().
func WithTypedLogger[T any](logger *slog.Logger) TypedOption[T] {
	return func(p *TypedPool[T]) {
		p.logger = logger
	}
}

// NewTypedPool creates a pool holding at most maxBlocks values of T.
func NewTypedPool[T any](maxBlocks int, opts ...TypedOption[T]) (*TypedPool[T], error) {
	if maxBlocks <= 0 {
		return nil, errInvalidConfig("max blocks must be > 0")
	}
	p := &TypedPool[T]{maxBlocks: maxBlocks}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Allocate takes a free slot and runs init on it. A nil init leaves the
// zero value. On error or panic from init the slot is returned first and
// the failure propagates unchanged.
func (p *TypedPool[T]) Allocate(init func(*T) error) (*T, error) {
	s, err := p.take()
	if err != nil {
		return nil, err
	}
	if init == nil {
		return &s.val, nil
	}
	if err := p.construct(s, init); err != nil {
		return nil, err
	}
	return &s.val, nil
}

// Deallocate destroys x and returns its slot. Passing nil is a no-op.
// Deallocating the same value twice panics.
func (p *TypedPool[T]) Deallocate(x *T) {
	if x == nil {
		return
	}
	if p.destroy != nil {
		p.destroy(x)
	}
	p.release(x)
}

// AllocateArray returns n zero-valued elements behind a length prefix.
// n == 0 returns a nil array.
//
// Arrays are larger than a slot, so like oversized BlockPool requests they
// are served from the heap and do not count against MaxBlocks.
func (p *TypedPool[T]) AllocateArray(n int) (*Array[T], error) {
	if n < 0 {
		return nil, ErrInvalidSize
	}
	if n == 0 {
		return nil, nil
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}
	p.arrays.Add(1)
	return &Array[T]{n: n, items: make([]T, n)}, nil
}

// DeallocateArray destroys exactly the recorded number of elements.
// Passing nil is a no-op.
func (p *TypedPool[T]) DeallocateArray(a *Array[T]) {
	if a == nil || a.items == nil {
		return
	}
	for i := range a.n {
		if p.destroy != nil {
			p.destroy(&a.items[i])
		}
	}
	clear(a.items)
	a.items = nil
	a.n = 0
	p.arrays.Add(-1)
}

// Close drops every chunk. Allocate fails with ErrPoolClosed afterwards
// and Deallocate panics.
func (p *TypedPool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.chunks = nil
	p.free = nil
}

// Allocated returns the number of slots currently handed out.
func (p *TypedPool[T]) Allocated() int {
	return int(p.allocated.Load())
}

// MaxBlocks returns the configured maximum slot count.
func (p *TypedPool[T]) MaxBlocks() int { return p.maxBlocks }

// Stats returns a snapshot of the pool counters.
func (p *TypedPool[T]) Stats() TypedStats {
	p.mu.Lock()
	carved, chunks := p.carved, len(p.chunks)
	p.mu.Unlock()
	return TypedStats{
		MaxBlocks: p.maxBlocks,
		Allocated: p.allocated.Load(),
		Carved:    carved,
		Chunks:    chunks,
		Arrays:    p.arrays.Load(),
	}
}

func (p *TypedPool[T]) construct(s *slot[T], init func(*T) error) (err error) {
	ok := false
	defer func() {
		if !ok {
			p.put(s)
		}
	}()
	err = init(&s.val)
	ok = err == nil
	return err
}

func (p *TypedPool[T]) take() (*slot[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if p.free == nil {
		if err := p.grow(); err != nil {
			return nil, err
		}
	}
	s := p.free
	p.free = s.next
	s.next = nil
	s.live = true
	p.allocated.Add(1)
	return s, nil
}

func (p *TypedPool[T]) put(s *slot[T]) {
	var zero T
	s.val = zero

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		panic("pool: deallocate after close")
	}
	if !s.live {
		p.mu.Unlock()
		panic("pool: double deallocation")
	}
	s.live = false
	s.next = p.free
	p.free = s
	p.mu.Unlock()
	p.allocated.Add(-1)
}

// grow carves a typed chunk. Caller holds p.mu.
func (p *TypedPool[T]) grow() error {
	n := growBy(p.maxBlocks, p.carved)
	if n == 0 {
		p.logger.Warn("pool: typed pool exhausted",
			slog.Int("max_blocks", p.maxBlocks))
		return ErrOutOfCapacity
	}
	c := make([]slot[T], n)
	for i := range n - 1 {
		c[i].next = &c[i+1]
	}
	c[n-1].next = p.free
	p.free = &c[0]
	p.chunks = append(p.chunks, c)
	p.carved += n

	p.logger.Debug("pool: carved typed chunk",
		slog.Int("slots", n),
		slog.Int("carved", p.carved),
		slog.Int("max_blocks", p.maxBlocks))
	return nil
}

// release returns x's slot without running the destroy hook.
func (p *TypedPool[T]) release(x *T) {
	p.put((*slot[T])(unsafe.Pointer(x)))
}

// scrub runs the destroy hook and zeroes x without freeing its slot.
func (p *TypedPool[T]) scrub(x *T) {
	if p.destroy != nil {
		p.destroy(x)
	}
	var zero T
	*x = zero
}
