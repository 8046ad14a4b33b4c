// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazard

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Guard is a single hazard slot owned by a participant.
//
// While a guard publishes a pointer, no scan reclaims it. A guard
// protects at most one pointer at a time.
type Guard struct {
	p   *Participant
	idx int
}

// Protect publishes ptr. The caller must re-validate that ptr is still
// reachable after Protect returns; see Load.
func (g *Guard) Protect(ptr unsafe.Pointer) {
	s := &g.p.slots[g.idx].v
	// The owner is the only writer, so the CAS succeeds first time. It is
	// used for its full barrier between the publish and the re-validation.
	for !s.CompareAndSwapAcqRel(s.LoadAcquire(), uintptr(ptr)) {
	}
}

// Clear stops protecting the current pointer. The guard stays owned.
func (g *Guard) Clear() {
	g.p.slots[g.idx].v.StoreRelease(0)
}

// Release clears the guard and returns it to its participant.
func (g *Guard) Release() {
	g.Clear()
	g.p.used &^= 1 << g.idx
}

// Protected returns the currently published pointer value, 0 if none.
func (g *Guard) Protected() uintptr {
	return g.p.slots[g.idx].v.LoadAcquire()
}

// Load reads src and protects the result with g, retrying until the
// published pointer is still the value of src. The returned pointer is
// safe to dereference until g is cleared or reused.
func Load[T any](g *Guard, src *atomix.Pointer[T]) *T {
	for {
		ptr := src.LoadAcquire()
		g.Protect(unsafe.Pointer(ptr))
		if src.LoadAcquire() == ptr {
			return ptr
		}
	}
}
