// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfc provides unbounded lock-free containers with pooled nodes
// and hazard-pointer reclamation.
//
// The package offers three containers:
//
//   - Queue: Michael–Scott MPMC FIFO queue
//   - Stack: Treiber MPMC LIFO stack
//   - Map: ordered skip-list map
//
// Nodes come from a bounded [pool.TypedPool] per container, through a
// small cache owned by the calling participant. Unlinked nodes are retired
// into a [hazard.Domain] and recycled once no guard references them.
//
// # Quick Start
//
// Every goroutine that touches a container attaches its own participant:
//
//	dom, err := hazard.NewDomain(hazard.Options{})
//	if err != nil {
//	    return err
//	}
//	q, err := lfc.BuildQueue[int](lfc.New(dom))
//	if err != nil {
//	    return err
//	}
//
//	dom.Do(func(p *hazard.Participant) {
//	    _ = q.Push(p, 42)
//	    v, ok := q.Pop(p)
//	    fmt.Println(v, ok) // 42 true
//	})
//
// Long-lived workers attach once and detach on exit:
//
//	go func() {
//	    p := dom.Attach()
//	    defer p.Detach()
//	    for task := range tasks {
//	        if err := q.Push(p, task); err != nil {
//	            // ErrOutOfCapacity: shed load
//	        }
//	    }
//	}()
//
// # Errors
//
// Contention is never surfaced: failed CAS attempts are retried under
// [Backoff]. Emptiness and absence are reported as (zero, false). Push,
// Emplace and Insert fail only with [ErrOutOfCapacity] or with the error
// returned by an Emplace initializer, leaving the container unchanged.
// Running an operation with a participant that is nil, detached or
// attached to another domain panics with [ErrNotAttached].
//
// # Extended Operations
//
// Batch and bulk operations are built from single-element operations and
// add no atomicity across elements:
//
//	n, err := q.PushBatch(p, items)
//	out := q.DrainTo(p, nil, 0)
//	err = s.PushWithDepthLimit(p, v, 10)
//	moved, err := s.TransferTo(p, other)
//	entries := m.RangeQuery(p, 10, 20)
//	ok := m.UpdateIf(p, "BTC", func(q Quote) Quote { ... })
//	removed := m.BulkErase(p, func(k string, v Quote) bool { ... })
//
// # Statistics
//
// With statistics enabled each container counts operations, pushes, pops
// and contention, and accumulates operation time:
//
//	snap := q.Statistics()
//	lfc.LogStatistics(logger, "updates", snap)
//	q.ResetStatistics()
//
// # Thread Safety
//
// Containers are safe for concurrent use by any number of goroutines, each
// with its own participant. A participant must not be shared.
//
// # Race Detection
//
// Node recycling is ordered through hazard slots that the race detector
// does not observe, so concurrent container tests are skipped under -race
// via the RaceEnabled constant.
package lfc
