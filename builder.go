// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"cmp"
	"fmt"
	"log/slog"
	"time"

	"code.hybscloud.com/lfc/hazard"
	"code.hybscloud.com/lfc/pool"
)

// Builder creates containers with fluent configuration.
//
// A Builder binds containers to a reclamation domain and carries the
// Config every container it builds starts from. Builders hold no shared
// state: each Build call creates an independent container with its own
// node pool.
//
// Example:
//
//	dom, _ := hazard.NewDomain(hazard.Options{})
//	b := lfc.New(dom).MaxBlocks(1 << 20).Statistics(false)
//
//	q, err := lfc.BuildQueue[Event](b)
//	s, err := lfc.BuildStack[*Task](b)
//	m, err := lfc.BuildMap[string, Quote](b)
type Builder struct {
	dom    *hazard.Domain
	cfg    Config
	logger *slog.Logger
}

// New creates a builder bound to dom with DefaultConfig.
//
// Panics if dom is nil.
func New(dom *hazard.Domain) *Builder {
	if dom == nil {
		panic("lfc: domain must not be nil")
	}
	return &Builder{dom: dom, cfg: DefaultConfig(), logger: dom.Logger()}
}

// Config replaces every tunable with c.
func (b *Builder) Config(c Config) *Builder {
	b.cfg = c
	return b
}

// BlockSize sets the block size of pools from BuildBlockPool.
func (b *Builder) BlockSize(n int) *Builder {
	b.cfg.BlockSize = n
	return b
}

// MaxBlocks sets the node pool limit of each container.
func (b *Builder) MaxBlocks(n int) *Builder {
	b.cfg.MaxBlocks = n
	return b
}

// MaxCachedBlocks sets the per-participant node cache size.
func (b *Builder) MaxCachedBlocks(n int) *Builder {
	b.cfg.MaxCachedBlocks = n
	return b
}

// Statistics turns operation statistics on or off.
func (b *Builder) Statistics(on bool) *Builder {
	b.cfg.EnableStatistics = on
	return b
}

// Backoff turns exponential contention backoff on or off.
func (b *Builder) Backoff(on bool) *Builder {
	b.cfg.EnableBackoff = on
	return b
}

// BackoffDelays sets the minimum and maximum backoff sleep.
func (b *Builder) BackoffDelays(lo, hi time.Duration) *Builder {
	b.cfg.MinBackoffDelay = lo
	b.cfg.MaxBackoffDelay = hi
	return b
}

// BackoffMultiplier sets the backoff growth factor.
func (b *Builder) BackoffMultiplier(f float64) *Builder {
	b.cfg.BackoffMultiplier = f
	return b
}

// Logger sets the structured logger. Nil selects the domain's logger.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// prepare validates the builder for a container needing guards guards
// per participant.
func (b *Builder) prepare(kind string, guards int) error {
	if err := b.cfg.Validate(); err != nil {
		return fmt.Errorf("lfc: build %s: %w", kind, err)
	}
	if have := b.dom.Guards(); have < guards {
		return fmt.Errorf("lfc: build %s: %w: need %d, have %d", kind, ErrTooFewGuards, guards, have)
	}
	if b.logger == nil {
		b.logger = b.dom.Logger()
	}
	b.logger.Debug("lfc: building container",
		slog.String("kind", kind),
		slog.Int("max_blocks", b.cfg.MaxBlocks),
		slog.Int("max_cached_blocks", b.cfg.MaxCachedBlocks),
		slog.Bool("statistics", b.cfg.EnableStatistics),
		slog.Bool("backoff", b.cfg.EnableBackoff))
	return nil
}

// BuildQueue creates a lock-free FIFO queue.
func BuildQueue[T any](b *Builder) (*Queue[T], error) {
	if err := b.prepare("queue", queueGuards); err != nil {
		return nil, err
	}
	return newQueue[T](b)
}

// BuildStack creates a lock-free LIFO stack.
func BuildStack[T any](b *Builder) (*Stack[T], error) {
	if err := b.prepare("stack", stackGuards); err != nil {
		return nil, err
	}
	return newStack[T](b)
}

// BuildMap creates a lock-free ordered map over a naturally ordered key.
func BuildMap[K cmp.Ordered, V any](b *Builder) (*Map[K, V], error) {
	return BuildMapFunc[K, V](b, cmp.Compare[K])
}

// BuildMapFunc creates a lock-free ordered map ordered by compare, which
// returns a negative number, zero or a positive number as a < b, a == b
// or a > b.
func BuildMapFunc[K, V any](b *Builder, compare func(a, b K) int) (*Map[K, V], error) {
	if compare == nil {
		return nil, fmt.Errorf("lfc: build map: %w: nil comparator", ErrInvalidConfig)
	}
	if err := b.prepare("map", mapGuards); err != nil {
		return nil, err
	}
	return newMap[K, V](b, compare)
}

// BuildBlockPool creates a byte block pool sized by BlockSize and
// MaxBlocks.
func (b *Builder) BuildBlockPool() (*pool.BlockPool, error) {
	if err := b.prepare("block pool", 0); err != nil {
		return nil, err
	}
	return pool.NewBlockPool(b.cfg.BlockSize, b.cfg.MaxBlocks, pool.WithLogger(b.logger))
}
