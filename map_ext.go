// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import "code.hybscloud.com/lfc/hazard"

// RangeQuery returns the entries with lo <= key <= hi in key order.
// It shares ForEach's weak consistency.
func (m *Map[K, V]) RangeQuery(p *hazard.Participant, lo, hi K) []Entry[K, V] {
	p.Require(m.dom)
	start := m.stats.begin()
	defer m.stats.record(OpRangeQuery, start)
	t := acquireTower(p)
	defer t.release()

	var out []Entry[K, V]
	if m.cmp(lo, hi) > 0 {
		return out
	}
	m.scan(t, &lo, func(n *mnode[K, V]) bool {
		if m.cmp(n.key, hi) > 0 {
			return false
		}
		out = append(out, Entry[K, V]{Key: n.key, Value: *n.val.LoadAcquire()})
		return true
	})
	return out
}

// UpdateIf replaces the value under key with fn(current).
//
// It is an optimistic retry loop: fn may run several times when other
// goroutines update the same key, and only the result of the call whose
// CAS succeeds is stored. Returns false if key is absent or disappears
// before an update succeeds.
func (m *Map[K, V]) UpdateIf(p *hazard.Participant, key K, fn func(V) V) bool {
	p.Require(m.dom)
	start := m.stats.begin()
	defer m.stats.record(OpUpdate, start)
	t := acquireTower(p)
	defer t.release()

	var w window[K, V]
	bo := NewBackoff(m.cfg)
	for {
		if !m.find(t, key, &w) {
			return false
		}
		n := w.succs[0]
		old := n.val.LoadAcquire()
		nv := fn(*old)
		if n.val.CompareAndSwapAcqRel(old, &nv) {
			return true
		}
		m.stats.contention()
		bo.OnContention()
	}
}

// BulkErase erases every entry for which pred returns true and returns how
// many it removed. Keys are collected with ForEach and erased one by one.
func (m *Map[K, V]) BulkErase(p *hazard.Participant, pred func(K, V) bool) int {
	start := m.stats.begin()
	defer m.stats.record(OpBulkErase, start)

	var keys []K
	m.ForEach(p, func(k K, v V) bool {
		if pred(k, v) {
			keys = append(keys, k)
		}
		return true
	})
	n := 0
	for _, k := range keys {
		if m.Erase(p, k) {
			n++
		}
	}
	return n
}
