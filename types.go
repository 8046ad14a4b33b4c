// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfc

import "code.hybscloud.com/lfc/hazard"

// Producer is the interface for adding elements.
//
// Push stores a copy of v. It fails only when the node pool is exhausted
// (ErrOutOfCapacity); contention is retried internally.
type Producer[T any] interface {
	Push(p *hazard.Participant, v T) error
}

// Consumer is the interface for removing elements.
//
// Pop returns (zero-value, false) when the container is observed empty.
// Empty is a stable observation; contention is retried internally.
type Consumer[T any] interface {
	Pop(p *hazard.Participant) (T, bool)
}

// Container is the combined interface implemented by Queue and Stack.
//
// Every operation takes the caller's attached participant. Running an
// operation with a nil, detached or foreign participant panics with
// ErrNotAttached.
type Container[T any] interface {
	Producer[T]
	Consumer[T]
	Empty() bool
	Statistics() Snapshot
	ResetStatistics()
}

// Entry is a key/value pair returned by Map.RangeQuery.
type Entry[K, V any] struct {
	Key   K
	Value V
}

var (
	_ Container[int] = (*Queue[int])(nil)
	_ Container[int] = (*Stack[int])(nil)
)

// pad is cache line padding to prevent false sharing.
type pad [64]byte
