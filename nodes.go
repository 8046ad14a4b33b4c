// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"errors"
	"unsafe"

	"code.hybscloud.com/lfc/hazard"
	"code.hybscloud.com/lfc/pool"
)

// nodeAlloc hands out container nodes from a TypedPool through a
// per-participant cache, and is the Reclaimer for retired nodes.
//
// Nodes held in one participant's cache or retired list are invisible to
// the others. Caches are capped at MaxBlocks/8, and once the pool passes
// its high-water mark every retirement scans so reclaimed nodes overflow
// back into the pool.
type nodeAlloc[N any] struct {
	pool      *pool.TypedPool[N]
	cacheSize int
	highWater int
}

func newNodeAlloc[N any](b *Builder) (*nodeAlloc[N], error) {
	tp, err := pool.NewTypedPool[N](b.cfg.MaxBlocks, pool.WithTypedLogger[N](b.logger))
	if err != nil {
		return nil, err
	}
	return &nodeAlloc[N]{
		pool:      tp,
		cacheSize: cacheSize(b.cfg),
		highWater: b.cfg.MaxBlocks - b.cfg.MaxBlocks/4,
	}, nil
}

// cacheSize is the effective per-participant cache size for c.
func cacheSize(c Config) int {
	return min(c.MaxCachedBlocks, c.MaxBlocks/8)
}

// cache returns p's cache for this allocator.
func (a *nodeAlloc[N]) cache(p *hazard.Participant) *pool.Cache[N] {
	return p.Local(a, func() any {
		return pool.NewCache(a.pool, a.cacheSize)
	}).(*pool.Cache[N])
}

// build takes a zeroed node and runs init on it. On error or panic from
// init the node goes back to the cache before the failure propagates.
func (a *nodeAlloc[N]) build(p *hazard.Participant, init func(*N) error) (n *N, err error) {
	c := a.cache(p)
	n, err = c.Get()
	if errors.Is(err, pool.ErrOutOfCapacity) {
		// Reclaim what p itself still holds, then try once more.
		p.Flush()
		n, err = c.Get()
	}
	if err != nil || init == nil {
		return n, err
	}
	ok := false
	defer func() {
		if !ok {
			c.Put(n)
			n = nil
		}
	}()
	err = init(n)
	ok = err == nil
	return n, err
}

// Reclaim implements hazard.Reclaimer. Nodes go to the scanning
// participant's cache, or straight back to the pool when the domain
// drains orphans.
func (a *nodeAlloc[N]) Reclaim(p *hazard.Participant, ptr unsafe.Pointer) {
	n := (*N)(ptr)
	if p == nil {
		a.pool.Deallocate(n)
		return
	}
	a.cache(p).Put(n)
}

// UnderPressure implements hazard.Pressure.
func (a *nodeAlloc[N]) UnderPressure() bool {
	return a.pool.Allocated() >= a.highWater
}

// release returns a node that was never published.
func (a *nodeAlloc[N]) release(p *hazard.Participant, n *N) {
	a.cache(p).Put(n)
}
