// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc_test

import (
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/lfc"
	"code.hybscloud.com/lfc/hazard"
)

// =============================================================================
// Config and Builder
// =============================================================================

func TestConfigValidate(t *testing.T) {
	def := lfc.DefaultConfig()
	if err := def.Validate(); err != nil {
		t.Fatalf("DefaultConfig.Validate: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*lfc.Config)
	}{
		{"block size", func(c *lfc.Config) { c.BlockSize = 0 }},
		{"max blocks", func(c *lfc.Config) { c.MaxBlocks = -1 }},
		{"cached blocks", func(c *lfc.Config) { c.MaxCachedBlocks = -1 }},
		{"min delay", func(c *lfc.Config) { c.MinBackoffDelay = 0 }},
		{"max below min", func(c *lfc.Config) { c.MaxBackoffDelay = c.MinBackoffDelay / 2 }},
		{"multiplier", func(c *lfc.Config) { c.BackoffMultiplier = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := lfc.DefaultConfig()
			tt.mut(&c)
			if err := c.Validate(); !errors.Is(err, lfc.ErrInvalidConfig) {
				t.Fatalf("Validate: got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	b, _ := newBuilder(t)
	b.BackoffDelays(time.Millisecond, time.Microsecond)
	if _, err := lfc.BuildQueue[int](b); !errors.Is(err, lfc.ErrInvalidConfig) {
		t.Fatalf("BuildQueue: got %v, want ErrInvalidConfig", err)
	}
	if _, err := lfc.BuildMap[int, int](b); !errors.Is(err, lfc.ErrInvalidConfig) {
		t.Fatalf("BuildMap: got %v, want ErrInvalidConfig", err)
	}
}

func TestBuilderTooFewGuards(t *testing.T) {
	dom, err := hazard.NewDomain(hazard.Options{Guards: 1, Logger: quiet})
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	defer dom.Close()

	b := lfc.New(dom)
	if _, err := lfc.BuildQueue[int](b); !errors.Is(err, lfc.ErrTooFewGuards) {
		t.Fatalf("BuildQueue: got %v, want ErrTooFewGuards", err)
	}
	if _, err := lfc.BuildMap[int, int](b); !errors.Is(err, lfc.ErrTooFewGuards) {
		t.Fatalf("BuildMap: got %v, want ErrTooFewGuards", err)
	}
	// A stack needs one guard.
	if _, err := lfc.BuildStack[int](b); err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
}

func TestNewNilDomainPanics(t *testing.T) {
	mustPanicWith(t, "New(nil)", "lfc: domain must not be nil", func() {
		lfc.New(nil)
	})
}

func TestBuilderBlockPool(t *testing.T) {
	b, _ := newBuilder(t)
	bp, err := b.BlockSize(64).MaxBlocks(2).BuildBlockPool()
	if err != nil {
		t.Fatalf("BuildBlockPool: %v", err)
	}
	if bp.BlockSize() != 64 {
		t.Fatalf("BlockSize: got %d, want 64", bp.BlockSize())
	}
	x, err := bp.Acquire(16, 64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	y, err := bp.Acquire(16, 64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := bp.Acquire(16, 64); !errors.Is(err, lfc.ErrOutOfCapacity) {
		t.Fatalf("Allocate on full pool: got %v, want ErrOutOfCapacity", err)
	}
	bp.Release(x, 64, 16)
	bp.Release(y, 64, 16)
}

func TestBuilderStatisticsOff(t *testing.T) {
	b, dom := newBuilder(t)
	q, err := lfc.BuildQueue[int](b.Statistics(false))
	if err != nil {
		t.Fatalf("BuildQueue: %v", err)
	}
	p := dom.Attach()
	defer p.Detach()
	_ = q.Push(p, 1)
	q.Pop(p)
	if s := q.Statistics(); s.Operations != 0 {
		t.Fatalf("Operations: got %d, want 0 with statistics off", s.Operations)
	}
}
