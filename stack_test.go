// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc_test

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfc"
	"code.hybscloud.com/lfc/hazard"
)

// =============================================================================
// Stack - Basic Operations
// =============================================================================

// TestStackLIFO checks that single-threaded pushes pop in reverse order.
func TestStackLIFO(t *testing.T) {
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[int](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	p := dom.Attach()
	defer p.Detach()

	if !s.Empty() || s.Depth() != 0 {
		t.Fatalf("new stack: Empty=%v Depth=%d, want true 0", s.Empty(), s.Depth())
	}
	for i := range 50 {
		if err := s.Push(p, i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	if s.Depth() != 50 {
		t.Fatalf("Depth: got %d, want 50", s.Depth())
	}
	for i := 49; i >= 0; i-- {
		v, ok := s.Pop(p)
		if !ok || v != i {
			t.Fatalf("Pop: got (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := s.Pop(p); ok {
		t.Fatal("Pop on empty: got ok")
	}
	if !s.Empty() || s.Depth() != 0 {
		t.Fatalf("drained stack: Empty=%v Depth=%d, want true 0", s.Empty(), s.Depth())
	}
}

func TestStackEmplace(t *testing.T) {
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[[]byte](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	p := dom.Attach()
	defer p.Detach()

	if err := s.Emplace(p, func(v *[]byte) error {
		*v = []byte("frame")
		return nil
	}); err != nil {
		t.Fatalf("Emplace: %v", err)
	}
	errBad := errors.New("bad frame")
	if err := s.Emplace(p, func(*[]byte) error { return errBad }); !errors.Is(err, errBad) {
		t.Fatalf("Emplace: got %v, want errBad", err)
	}
	if s.Depth() != 1 {
		t.Fatalf("Depth: got %d, want 1", s.Depth())
	}
	v, ok := s.Pop(p)
	if !ok || string(v) != "frame" {
		t.Fatalf("Pop: got (%q, %v), want (frame, true)", v, ok)
	}
}

// TestStackDepthLimit issues 20 pushes with a limit of 10 on one
// goroutine: exactly 10 succeed.
func TestStackDepthLimit(t *testing.T) {
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[int](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	p := dom.Attach()
	defer p.Detach()

	ok := 0
	for i := range 20 {
		err := s.PushWithDepthLimit(p, i, 10)
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, lfc.ErrDepthLimit):
			t.Fatalf("PushWithDepthLimit(%d): %v", i, err)
		}
	}
	if ok != 10 {
		t.Fatalf("successful pushes: got %d, want 10", ok)
	}
	if s.Depth() != 10 {
		t.Fatalf("Depth: got %d, want 10", s.Depth())
	}

	// Popping makes room again.
	s.Pop(p)
	if err := s.PushWithDepthLimit(p, 99, 10); err != nil {
		t.Fatalf("PushWithDepthLimit after Pop: %v", err)
	}
}

// TestStackDepthLimitConcurrent races 20 goroutines on a limit of 10. The
// bound is relaxed by the number of racing goroutines.
func TestStackDepthLimitConcurrent(t *testing.T) {
	if lfc.RaceEnabled {
		t.Skip("skip: concurrent node reuse")
	}
	const (
		workers = 20
		limit   = 10
	)
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[int](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}

	var succeeded atomix.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			dom.Do(func(p *hazard.Participant) {
				<-start
				if s.PushWithDepthLimit(p, v, limit) == nil {
					succeeded.Add(1)
				}
			})
		}(i)
	}
	close(start)
	wg.Wait()

	n := int(succeeded.Load())
	if n < limit {
		t.Fatalf("successful pushes: got %d, want >= %d", n, limit)
	}
	if d := s.Depth(); d != n || d > limit+workers-1 {
		t.Fatalf("Depth: got %d, want %d and <= %d", d, n, limit+workers-1)
	}
}

func TestStackTransferTo(t *testing.T) {
	b, dom := newBuilder(t)
	src, err := lfc.BuildStack[int](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	dst, err := lfc.BuildStack[int](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	p := dom.Attach()
	defer p.Detach()

	for i := range 5 {
		_ = src.Push(p, i)
	}
	n, err := src.TransferTo(p, dst)
	if err != nil || n != 5 {
		t.Fatalf("TransferTo: got (%d, %v), want (5, nil)", n, err)
	}
	if !src.Empty() {
		t.Fatal("source not empty after TransferTo")
	}
	// The transfer reverses the order.
	for i := range 5 {
		v, ok := dst.Pop(p)
		if !ok || v != i {
			t.Fatalf("dst.Pop: got (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

func TestStackTransferToSelf(t *testing.T) {
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[int](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	p := dom.Attach()
	defer p.Detach()

	_ = s.Push(p, 1)
	n, err := s.TransferTo(p, s)
	if n != 0 || !errors.Is(err, lfc.ErrSelfTransfer) {
		t.Fatalf("TransferTo(self): got (%d, %v), want (0, ErrSelfTransfer)", n, err)
	}
	if s.Depth() != 1 {
		t.Fatalf("Depth: got %d, want 1", s.Depth())
	}
}

// TestStackSeparatePushPop pushes from one participant and pops from
// another through a small node pool.
func TestStackSeparatePushPop(t *testing.T) {
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[int](b.MaxBlocks(32))
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	prod, cons := dom.Attach(), dom.Attach()
	defer prod.Detach()
	defer cons.Detach()

	for i := range 10000 {
		if err := s.Push(prod, i); err != nil {
			t.Fatalf("Push #%d (depth %d): %v", i, s.Depth(), err)
		}
		if v, ok := s.Pop(cons); !ok || v != i {
			t.Fatalf("Pop: got (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

func TestStackTransferToQueue(t *testing.T) {
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[int](b)
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}
	// Room for the dummy and two elements.
	q, err := lfc.BuildQueue[int](lfc.New(dom).Logger(quiet).MaxBlocks(3).MaxCachedBlocks(0))
	if err != nil {
		t.Fatalf("BuildQueue: %v", err)
	}
	p := dom.Attach()
	defer p.Detach()

	for i := range 4 {
		_ = s.Push(p, i)
	}
	n, err := s.TransferTo(p, q)
	if n != 2 || !errors.Is(err, lfc.ErrOutOfCapacity) {
		t.Fatalf("TransferTo: got (%d, %v), want (2, ErrOutOfCapacity)", n, err)
	}
	// The rejected element went back on the stack.
	if s.Depth() != 2 {
		t.Fatalf("Depth: got %d, want 2", s.Depth())
	}
	if v, _ := s.Pop(p); v != 1 {
		t.Fatalf("Pop: got %d, want 1", v)
	}
	got := q.DrainTo(p, nil, 0)
	if !slices.Equal(got, []int{3, 2}) {
		t.Fatalf("queue: got %v, want [3 2]", got)
	}
}

// =============================================================================
// Stack - Concurrency
// =============================================================================

func TestStackConcurrentNoLossNoDup(t *testing.T) {
	if lfc.RaceEnabled {
		t.Skip("skip: concurrent node reuse")
	}
	const (
		numP    = 4
		numC    = 4
		perProd = 5000
		total   = numP * perProd
	)
	b, dom := newBuilder(t)
	s, err := lfc.BuildStack[int](b.MaxBlocks(1 << 18))
	if err != nil {
		t.Fatalf("BuildStack: %v", err)
	}

	seen := make([]atomix.Int32, total)
	var consumed atomix.Int64
	var wg sync.WaitGroup
	for id := range numP {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			dom.Do(func(p *hazard.Participant) {
				for i := range perProd {
					if err := s.Push(p, id*perProd+i); err != nil {
						t.Errorf("Push: %v", err)
						return
					}
				}
			})
		}(id)
	}
	deadline := time.Now().Add(10 * time.Second)
	for range numC {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dom.Do(func(p *hazard.Participant) {
				backoff := iox.Backoff{}
				for consumed.Load() < total {
					if time.Now().After(deadline) {
						t.Errorf("timed out with %d/%d consumed", consumed.Load(), total)
						return
					}
					v, ok := s.Pop(p)
					if !ok {
						backoff.Wait()
						continue
					}
					backoff.Reset()
					seen[v].Add(1)
					consumed.Add(1)
				}
			})
		}()
	}
	wg.Wait()

	for i := range total {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("value %d popped %d times, want 1", i, n)
		}
	}
	if s.Depth() != 0 {
		t.Fatalf("Depth: got %d, want 0", s.Depth())
	}
}
