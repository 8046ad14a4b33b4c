// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ring provides the bounded hand-off ring the reclamation domain
// uses to pass retired entries from detaching participants to the ones
// that are still scanning.
package ring

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Ring is a bounded multi-producer multi-consumer hand-off ring.
//
// Producers hand over whole batches with PutAll and consumers take
// batches with Take. Each cell carries a turn counter: a cell at index i
// is writable for position pos when turn == pos and readable when
// turn == pos+1. A consumer releases the cell for the next lap by setting
// turn to pos+size.
type Ring[T any] struct {
	_     pad
	put   atomix.Uint64
	_     pad
	take  atomix.Uint64
	_     pad
	cells []cell[T]
	mask  uint64
}

type cell[T any] struct {
	turn atomix.Uint64
	v    T
	_    padShort
}

// New creates a ring holding at least size entries. size is rounded up
// to a power of two; sizes below 2 panic.
func New[T any](size int) *Ring[T] {
	if size < 2 {
		panic("ring: size must be >= 2")
	}
	n := ceilPow2(uint64(size))
	r := &Ring[T]{cells: make([]cell[T], n), mask: n - 1}
	for i := range r.cells {
		r.cells[i].turn.StoreRelaxed(uint64(i))
	}
	return r
}

// PutAll stores vs in order until the ring fills and returns how many it
// stored. The caller keeps vs[n:].
func (r *Ring[T]) PutAll(vs []T) int {
	for i := range vs {
		if !r.put1(vs[i]) {
			return i
		}
	}
	return len(vs)
}

// Take appends up to limit entries to dst, oldest first, and returns the
// extended slice. A negative limit takes everything currently stored.
func (r *Ring[T]) Take(dst []T, limit int) []T {
	for n := 0; limit < 0 || n < limit; n++ {
		v, ok := r.take1()
		if !ok {
			break
		}
		dst = append(dst, v)
	}
	return dst
}

// Size returns the number of cells.
func (r *Ring[T]) Size() int { return len(r.cells) }

func (r *Ring[T]) put1(v T) bool {
	sw := spin.Wait{}
	for {
		pos := r.put.LoadAcquire()
		c := &r.cells[pos&r.mask]
		switch turn := c.turn.LoadAcquire(); {
		case turn == pos:
			if r.put.CompareAndSwapAcqRel(pos, pos+1) {
				c.v = v
				c.turn.StoreRelease(pos + 1)
				return true
			}
		case turn < pos:
			// The cell still holds the entry from the previous lap.
			return false
		}
		sw.Once()
	}
}

func (r *Ring[T]) take1() (T, bool) {
	sw := spin.Wait{}
	for {
		pos := r.take.LoadAcquire()
		c := &r.cells[pos&r.mask]
		switch turn := c.turn.LoadAcquire(); {
		case turn == pos+1:
			if r.take.CompareAndSwapAcqRel(pos, pos+1) {
				v := c.v
				var zero T
				c.v = zero
				c.turn.StoreRelease(pos + uint64(len(r.cells)))
				return v, true
			}
		case turn < pos+1:
			var zero T
			return zero, false
		}
		sw.Once()
	}
}

func ceilPow2(n uint64) uint64 {
	p := uint64(2)
	for p < n {
		p <<= 1
	}
	return p
}

type pad [64]byte

type padShort [64 - 8]byte
