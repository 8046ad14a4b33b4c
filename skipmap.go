// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import (
	"log/slog"
	"math/rand/v2"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfc/hazard"
)

const (
	// maxLevel is the tower height limit.
	maxLevel = 16

	mapGuards = 3
)

// Node lifecycle bits. A removed node is retired by whichever of its
// inserter and its eraser finishes last.
const (
	stLinked uint64 = 1 << iota
	stErased
)

// Map is a lock-free ordered map built as a skip list (Herlihy–Shavit
// with Fraser-style unlinking).
//
// Every successor reference is an immutable box holding the successor and
// a deletion mark; a CAS on the box pointer swaps both at once. A node is
// logically removed when its level-0 reference is marked. Traversals snip
// marked nodes they pass.
//
// Towers come from a bounded TypedPool and are retired into the domain
// once unlinked from every level. Traversals hold three guards
// (predecessor, current, successor) and validate each hop before reading
// the node.
//
// Insert never overwrites an existing key. Use UpdateIf, or Erase then
// Insert, to change a value.
type Map[K, V any] struct {
	head *mnode[K, V]
	cmp  func(a, b K) int
	size atomix.Int64

	dom    *hazard.Domain
	nodes  *nodeAlloc[mnode[K, V]]
	cfg    Config
	stats  *Statistics
	logger *slog.Logger
}

type mnode[K, V any] struct {
	key    K
	val    atomix.Pointer[V]
	height int
	state  atomix.Uint64
	next   [maxLevel]atomix.Pointer[mref[K, V]]
}

// mref is a marked successor reference. Never mutated after publication.
type mref[K, V any] struct {
	n      *mnode[K, V]
	marked bool
}

// window is the search result of find for each level.
type window[K, V any] struct {
	preds [maxLevel]*mnode[K, V]
	refs  [maxLevel]*mref[K, V]
	succs [maxLevel]*mnode[K, V]
}

// tower is the set of guards one map operation holds. find rotates the
// roles as it advances.
type tower struct {
	pred, curr, succ *hazard.Guard
}

func newMap[K, V any](b *Builder, cmp func(a, b K) int) (*Map[K, V], error) {
	nodes, err := newNodeAlloc[mnode[K, V]](b)
	if err != nil {
		return nil, err
	}
	head := &mnode[K, V]{height: maxLevel}
	for l := range head.next {
		head.next[l].StoreRelease(&mref[K, V]{})
	}
	return &Map[K, V]{
		head:   head,
		cmp:    cmp,
		dom:    b.dom,
		nodes:  nodes,
		cfg:    b.cfg,
		stats:  newStatistics(b.cfg.EnableStatistics),
		logger: b.logger,
	}, nil
}

func acquireTower(p *hazard.Participant) *tower {
	return &tower{pred: p.Guard(), curr: p.Guard(), succ: p.Guard()}
}

func (t *tower) release() {
	t.pred.Release()
	t.curr.Release()
	t.succ.Release()
}

// Insert adds key with val. Returns false if key is already present; the
// existing value is kept. Returns ErrOutOfCapacity if the node pool is
// exhausted.
func (m *Map[K, V]) Insert(p *hazard.Participant, key K, val V) (bool, error) {
	p.Require(m.dom)
	start := m.stats.begin()
	defer m.stats.record(OpInsert, start)
	t := acquireTower(p)
	defer t.release()

	var w window[K, V]
	var n *mnode[K, V]
	bo := NewBackoff(m.cfg)
	for {
		if m.find(t, key, &w) {
			if n != nil {
				m.nodes.release(p, n)
			}
			return false, nil
		}
		if n == nil {
			var err error
			if n, err = m.nodes.build(p, nil); err != nil {
				return false, err
			}
			n.key = key
			n.val.StoreRelaxed(&val)
			n.height = randomLevel()
		}
		for l := range n.height {
			n.next[l].StoreRelaxed(&mref[K, V]{n: w.succs[l]})
		}
		if w.preds[0].next[0].CompareAndSwapAcqRel(w.refs[0], &mref[K, V]{n: n}) {
			break
		}
		m.stats.contention()
		bo.OnContention()
	}
	m.size.Add(1)
	bo.Reset()

link:
	for l := 1; l < n.height; l++ {
		for {
			r := n.next[l].LoadAcquire()
			if r.marked {
				break link
			}
			if r.n != w.succs[l] && !n.next[l].CompareAndSwapAcqRel(r, &mref[K, V]{n: w.succs[l]}) {
				continue
			}
			if w.preds[l].next[l].CompareAndSwapAcqRel(w.refs[l], &mref[K, V]{n: n}) {
				break
			}
			m.stats.contention()
			bo.OnContention()
			if !m.find(t, key, &w) || w.succs[0] != n {
				break link
			}
		}
	}
	m.settle(p, t, n, stLinked)
	return true, nil
}

// Erase removes key. Returns false if key is absent.
func (m *Map[K, V]) Erase(p *hazard.Participant, key K) bool {
	p.Require(m.dom)
	start := m.stats.begin()
	defer m.stats.record(OpErase, start)
	t := acquireTower(p)
	defer t.release()

	var w window[K, V]
	if !m.find(t, key, &w) {
		return false
	}
	n := w.succs[0]
	for l := n.height - 1; l >= 1; l-- {
		for {
			r := n.next[l].LoadAcquire()
			if r.marked || n.next[l].CompareAndSwapAcqRel(r, &mref[K, V]{n: r.n, marked: true}) {
				break
			}
		}
	}
	for {
		r := n.next[0].LoadAcquire()
		if r.marked {
			// Another eraser won.
			return false
		}
		if n.next[0].CompareAndSwapAcqRel(r, &mref[K, V]{n: r.n, marked: true}) {
			m.size.Add(-1)
			m.settle(p, t, n, stErased)
			return true
		}
		m.stats.contention()
	}
}

// Find returns the value stored under key.
func (m *Map[K, V]) Find(p *hazard.Participant, key K) (V, bool) {
	p.Require(m.dom)
	start := m.stats.begin()
	defer m.stats.record(OpFind, start)
	t := acquireTower(p)
	defer t.release()

	var w window[K, V]
	if !m.find(t, key, &w) {
		var zero V
		return zero, false
	}
	return *w.succs[0].val.LoadAcquire(), true
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(p *hazard.Participant, key K) bool {
	_, ok := m.Find(p, key)
	return ok
}

// ForEach calls fn for each entry in key order until fn returns false.
//
// Iteration is weakly consistent: it reflects some but not necessarily
// all insertions and removals that run concurrently with it, and never
// visits a key twice.
func (m *Map[K, V]) ForEach(p *hazard.Participant, fn func(K, V) bool) {
	p.Require(m.dom)
	t := acquireTower(p)
	defer t.release()
	m.scan(t, nil, func(n *mnode[K, V]) bool {
		return fn(n.key, *n.val.LoadAcquire())
	})
}

// Len returns the best-effort number of entries.
func (m *Map[K, V]) Len() int {
	return int(max(m.size.Load(), 0))
}

// Empty reports whether the map was observed empty.
func (m *Map[K, V]) Empty() bool {
	r := m.head.next[0].LoadAcquire()
	return r.n == nil
}

// Statistics returns a snapshot of the map counters.
func (m *Map[K, V]) Statistics() Snapshot { return m.stats.Snapshot() }

// ResetStatistics zeroes the map counters.
func (m *Map[K, V]) ResetStatistics() { m.stats.Reset() }

// Domain returns the reclamation domain the map is bound to.
func (m *Map[K, V]) Domain() *hazard.Domain { return m.dom }

// find locates key on every level, snipping marked nodes on the way.
//
// On return w.succs[l] is the first node with key >= key on level l and
// w.preds[l] its predecessor, with w.refs[l] the reference read from it.
// t.pred and t.curr protect w.preds[0] and w.succs[0]. Higher levels are
// not protected; callers only CAS on them, and a CAS against a box taken
// from a reclaimed node always fails.
func (m *Map[K, V]) find(t *tower, key K, w *window[K, V]) bool {
retry:
	for {
		pred := m.head
		t.pred.Clear()
		var curr *mnode[K, V]
		for l := maxLevel - 1; l >= 0; l-- {
			predRef := pred.next[l].LoadAcquire()
			if predRef.marked {
				continue retry
			}
			curr = predRef.n
			t.curr.Protect(unsafe.Pointer(curr))
			if pred.next[l].LoadAcquire() != predRef {
				continue retry
			}
			for curr != nil {
				currRef := curr.next[l].LoadAcquire()
				succ := currRef.n
				t.succ.Protect(unsafe.Pointer(succ))
				if currRef.marked {
					// Snip curr; the CAS also validates succ.
					ref := &mref[K, V]{n: succ}
					if !pred.next[l].CompareAndSwapAcqRel(predRef, ref) {
						continue retry
					}
					predRef = ref
					curr = succ
					t.curr, t.succ = t.succ, t.curr
					continue
				}
				if curr.next[l].LoadAcquire() != currRef {
					continue retry
				}
				if m.cmp(curr.key, key) >= 0 {
					break
				}
				pred, predRef, curr = curr, currRef, succ
				t.pred, t.curr, t.succ = t.curr, t.succ, t.pred
			}
			w.preds[l], w.refs[l], w.succs[l] = pred, predRef, curr
		}
		return curr != nil && m.cmp(curr.key, key) == 0
	}
}

// scan walks level 0 from the first node with key >= *from (or from the
// start when from is nil), calling visit on each unmarked node until it
// returns false. visit runs while the node is protected.
func (m *Map[K, V]) scan(t *tower, from *K, visit func(*mnode[K, V]) bool) {
	var w window[K, V]
	var curr *mnode[K, V]
	if from == nil {
		curr = m.first(t)
	} else {
		m.find(t, *from, &w)
		curr = w.succs[0]
	}
	for curr != nil {
		ref := curr.next[0].LoadAcquire()
		if !ref.marked && !visit(curr) {
			return
		}
		t.succ.Protect(unsafe.Pointer(ref.n))
		if !ref.marked && curr.next[0].LoadAcquire() == ref {
			curr = ref.n
			t.curr, t.succ = t.succ, t.curr
			continue
		}
		// curr changed under us; resume after its key.
		curr = m.after(t, curr.key, &w)
	}
}

// first returns the first node on level 0, protected by t.curr.
func (m *Map[K, V]) first(t *tower) *mnode[K, V] {
	for {
		r := m.head.next[0].LoadAcquire()
		t.curr.Protect(unsafe.Pointer(r.n))
		if m.head.next[0].LoadAcquire() == r {
			return r.n
		}
	}
}

// after returns the first node with key > key, protected by t.curr.
func (m *Map[K, V]) after(t *tower, key K, w *window[K, V]) *mnode[K, V] {
	for {
		if !m.find(t, key, w) {
			return w.succs[0]
		}
		n := w.succs[0]
		r := n.next[0].LoadAcquire()
		t.succ.Protect(unsafe.Pointer(r.n))
		if !r.marked && n.next[0].LoadAcquire() == r {
			t.curr, t.succ = t.succ, t.curr
			return r.n
		}
	}
}

// settle records that the inserter (stLinked) or the eraser (stErased) of
// n is done with it. The second one to arrive unlinks n from every level
// and retires it.
func (m *Map[K, V]) settle(p *hazard.Participant, t *tower, n *mnode[K, V], bit uint64) {
	for {
		s := n.state.LoadAcquire()
		if !n.state.CompareAndSwapAcqRel(s, s|bit) {
			continue
		}
		if s|bit != stLinked|stErased {
			return
		}
		var w window[K, V]
		m.find(t, n.key, &w)
		p.Retire(unsafe.Pointer(n), m.nodes)
		return
	}
}

// randomLevel returns a tower height with P(h > k) = 4^-k.
func randomLevel() int {
	h := 1
	for r := rand.Uint64(); h < maxLevel && r&3 == 0; r >>= 2 {
		h++
	}
	return h
}
