// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import "code.hybscloud.com/lfc/hazard"

// Batch operations are repeated single-element operations. Each element is
// linearized on its own; other goroutines may interleave mid-batch.

// PushBatch pushes vs in order and returns how many were pushed. It stops
// at the first error, which is returned.
func (q *Queue[T]) PushBatch(p *hazard.Participant, vs []T) (int, error) {
	start := q.stats.begin()
	defer q.stats.record(OpBatchPush, start)
	for i := range vs {
		if err := q.Push(p, vs[i]); err != nil {
			return i, err
		}
	}
	return len(vs), nil
}

// PopBatch pops up to len(dst) elements into dst and returns the count.
// It stops early when the queue is observed empty.
func (q *Queue[T]) PopBatch(p *hazard.Participant, dst []T) int {
	start := q.stats.begin()
	defer q.stats.record(OpBatchPop, start)
	for i := range dst {
		v, ok := q.Pop(p)
		if !ok {
			return i
		}
		dst[i] = v
	}
	return len(dst)
}

// DrainTo appends popped elements to dst until the queue is observed
// empty or limit elements were taken, and returns the extended slice.
// A limit <= 0 drains without limit.
func (q *Queue[T]) DrainTo(p *hazard.Participant, dst []T, limit int) []T {
	start := q.stats.begin()
	defer q.stats.record(OpBatchPop, start)
	for n := 0; limit <= 0 || n < limit; n++ {
		v, ok := q.Pop(p)
		if !ok {
			break
		}
		dst = append(dst, v)
	}
	return dst
}
