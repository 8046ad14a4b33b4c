// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"log/slog"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfc/hazard"
)

const stackGuards = 1

// Stack is an unbounded lock-free MPMC LIFO stack (Treiber).
//
// Pop protects the observed top with a hazard guard before reading its
// successor, so a node cannot be recycled and pushed back between the read
// and the CAS.
//
// The depth counter is best effort: it is updated after the linking CAS
// and is not linearized with it.
type Stack[T any] struct {
	_     pad
	top   atomix.Pointer[snode[T]]
	_     pad
	depth atomix.Int64
	_     pad

	dom    *hazard.Domain
	nodes  *nodeAlloc[snode[T]]
	cfg    Config
	stats  *Statistics
	logger *slog.Logger
}

type snode[T any] struct {
	next atomix.Pointer[snode[T]]
	val  T
}

func newStack[T any](b *Builder) (*Stack[T], error) {
	nodes, err := newNodeAlloc[snode[T]](b)
	if err != nil {
		return nil, err
	}
	return &Stack[T]{
		dom:    b.dom,
		nodes:  nodes,
		cfg:    b.cfg,
		stats:  newStatistics(b.cfg.EnableStatistics),
		logger: b.logger,
	}, nil
}

// Push adds v on top.
// Returns ErrOutOfCapacity if the node pool is exhausted.
func (s *Stack[T]) Push(p *hazard.Participant, v T) error {
	p.Require(s.dom)
	start := s.stats.begin()
	n, err := s.nodes.build(p, nil)
	if err != nil {
		return err
	}
	n.val = v
	s.link(n)
	s.stats.record(OpPush, start)
	return nil
}

// Emplace constructs an element in place on top.
// If init fails or panics the stack is unchanged.
func (s *Stack[T]) Emplace(p *hazard.Participant, init func(*T) error) error {
	p.Require(s.dom)
	start := s.stats.begin()
	n, err := s.nodes.build(p, func(n *snode[T]) error {
		if init == nil {
			return nil
		}
		return init(&n.val)
	})
	if err != nil {
		return err
	}
	s.link(n)
	s.stats.record(OpPush, start)
	return nil
}

func (s *Stack[T]) link(n *snode[T]) {
	bo := NewBackoff(s.cfg)
	for {
		top := s.top.LoadAcquire()
		n.next.StoreRelaxed(top)
		if s.top.CompareAndSwapAcqRel(top, n) {
			s.depth.Add(1)
			return
		}
		s.stats.contention()
		bo.OnContention()
	}
}

// Pop removes and returns the top element.
// Returns (zero-value, false) if the stack is empty.
func (s *Stack[T]) Pop(p *hazard.Participant) (T, bool) {
	p.Require(s.dom)
	start := s.stats.begin()
	g := p.Guard()
	defer g.Release()

	bo := NewBackoff(s.cfg)
	for {
		top := hazard.Load(g, &s.top)
		if top == nil {
			var zero T
			s.stats.record(OpPop, start)
			return zero, false
		}
		next := top.next.LoadAcquire()
		if s.top.CompareAndSwapAcqRel(top, next) {
			val := top.val
			g.Clear()
			s.depth.Add(-1)
			p.Retire(unsafe.Pointer(top), s.nodes)
			s.stats.record(OpPop, start)
			return val, true
		}
		s.stats.contention()
		bo.OnContention()
	}
}

// Empty reports whether the stack was observed empty.
func (s *Stack[T]) Empty() bool {
	return s.top.LoadAcquire() == nil
}

// Depth returns the best-effort element count.
func (s *Stack[T]) Depth() int {
	return int(max(s.depth.Load(), 0))
}

// Statistics returns a snapshot of the stack counters.
func (s *Stack[T]) Statistics() Snapshot { return s.stats.Snapshot() }

// ResetStatistics zeroes the stack counters.
func (s *Stack[T]) ResetStatistics() { s.stats.Reset() }

// Domain returns the reclamation domain the stack is bound to.
func (s *Stack[T]) Domain() *hazard.Domain { return s.dom }
