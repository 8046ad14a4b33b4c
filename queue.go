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

// queueGuards is the number of guards a participant needs for Pop.
const queueGuards = 2

// Queue is an unbounded lock-free MPMC FIFO queue (Michael–Scott).
//
// The list always starts with a dummy node; head points at it and the
// first element lives in head.next. Nodes come from a bounded TypedPool
// through the caller's participant cache and are retired into the
// domain when dequeued.
//
// FIFO order holds across all producers collectively.
//
// Memory: one pooled node per element plus the dummy
type Queue[T any] struct {
	_    pad
	head atomix.Pointer[qnode[T]]
	_    pad
	tail atomix.Pointer[qnode[T]]
	_    pad

	dom    *hazard.Domain
	nodes  *nodeAlloc[qnode[T]]
	cfg    Config
	stats  *Statistics
	logger *slog.Logger
}

type qnode[T any] struct {
	next atomix.Pointer[qnode[T]]
	val  T
}

func newQueue[T any](b *Builder) (*Queue[T], error) {
	nodes, err := newNodeAlloc[qnode[T]](b)
	if err != nil {
		return nil, err
	}
	dummy, err := nodes.pool.Allocate(nil)
	if err != nil {
		return nil, err
	}
	q := &Queue[T]{
		dom:    b.dom,
		nodes:  nodes,
		cfg:    b.cfg,
		stats:  newStatistics(b.cfg.EnableStatistics),
		logger: b.logger,
	}
	q.head.StoreRelease(dummy)
	q.tail.StoreRelease(dummy)
	return q, nil
}

// Push adds v at the tail.
// Returns ErrOutOfCapacity if the node pool is exhausted.
func (q *Queue[T]) Push(p *hazard.Participant, v T) error {
	p.Require(q.dom)
	start := q.stats.begin()
	n, err := q.nodes.build(p, nil)
	if err != nil {
		return err
	}
	n.val = v
	q.link(p, n)
	q.stats.record(OpPush, start)
	return nil
}

// Emplace constructs an element in place at the tail.
// If init fails or panics the node is released and the queue is
// unchanged; the failure reaches the caller.
func (q *Queue[T]) Emplace(p *hazard.Participant, init func(*T) error) error {
	p.Require(q.dom)
	start := q.stats.begin()
	n, err := q.nodes.build(p, func(n *qnode[T]) error {
		if init == nil {
			return nil
		}
		return init(&n.val)
	})
	if err != nil {
		return err
	}
	q.link(p, n)
	q.stats.record(OpPush, start)
	return nil
}

// link appends a private node n.
func (q *Queue[T]) link(p *hazard.Participant, n *qnode[T]) {
	g := p.Guard()
	defer g.Release()
	bo := NewBackoff(q.cfg)
	for {
		tail := hazard.Load(g, &q.tail)
		next := tail.next.LoadAcquire()
		if tail != q.tail.LoadAcquire() {
			continue
		}
		if next != nil {
			// Tail is lagging; help swing it.
			q.tail.CompareAndSwapAcqRel(tail, next)
			continue
		}
		if tail.next.CompareAndSwapAcqRel(nil, n) {
			q.tail.CompareAndSwapAcqRel(tail, n)
			return
		}
		q.stats.contention()
		bo.OnContention()
	}
}

// Pop removes and returns the element at the head.
// Returns (zero-value, false) if the queue is empty.
func (q *Queue[T]) Pop(p *hazard.Participant) (T, bool) {
	p.Require(q.dom)
	start := q.stats.begin()
	gh, gn := p.Guard(), p.Guard()
	defer gh.Release()
	defer gn.Release()

	bo := NewBackoff(q.cfg)
	for {
		head := hazard.Load(gh, &q.head)
		tail := q.tail.LoadAcquire()
		next := head.next.LoadAcquire()
		gn.Protect(unsafe.Pointer(next))
		if head != q.head.LoadAcquire() {
			continue
		}
		if next == nil {
			var zero T
			q.stats.record(OpPop, start)
			return zero, false
		}
		if head == tail {
			q.tail.CompareAndSwapAcqRel(tail, next)
			continue
		}
		val := next.val
		if q.head.CompareAndSwapAcqRel(head, next) {
			gh.Clear()
			p.Retire(unsafe.Pointer(head), q.nodes)
			q.stats.record(OpPop, start)
			return val, true
		}
		q.stats.contention()
		bo.OnContention()
	}
}

// Empty reports whether the queue was observed empty.
// The answer may be stale by the time it returns.
//
// Empty compares head and tail without dereferencing either, since it
// holds no guard. Tail never lags behind head, and a tail equal to head
// means no completed push is pending.
func (q *Queue[T]) Empty() bool {
	for {
		head := q.head.LoadAcquire()
		tail := q.tail.LoadAcquire()
		if head == q.head.LoadAcquire() {
			return head == tail
		}
	}
}

// Statistics returns a snapshot of the queue counters.
func (q *Queue[T]) Statistics() Snapshot { return q.stats.Snapshot() }

// ResetStatistics zeroes the queue counters.
func (q *Queue[T]) ResetStatistics() { q.stats.Reset() }

// Domain returns the reclamation domain the queue is bound to.
func (q *Queue[T]) Domain() *hazard.Domain { return q.dom }
