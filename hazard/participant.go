// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazard

import (
	"log/slog"
	"math/bits"
	"slices"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// Participant is one goroutine's membership in a Domain.
//
// It owns a fixed set of guards, a list of retired entries waiting for a
// scan, and participant-local values such as node caches. A Participant
// must not be shared between goroutines.
type Participant struct {
	dom      *Domain
	id       uint64
	attached atomix.Bool

	slots  []hazardSlot
	guards []Guard
	used   uint64 // bit i set while guards[i] is handed out

	retired []retired
	scratch []uintptr
	locals  map[any]any
}

// hazardSlot is a published guard value. Only the owning participant
// writes it; scans on any goroutine read it.
type hazardSlot struct {
	v atomix.Uintptr
	_ padShort
}

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte

// Flusher is implemented by participant-local values that hold resources
// to return on Detach.
type Flusher interface {
	Flush()
}

// Pressure is implemented by reclaimers whose backing store runs low.
// While UnderPressure reports true, every Retire into it scans.
type Pressure interface {
	UnderPressure() bool
}

func underPressure(r Reclaimer) bool {
	pr, ok := r.(Pressure)
	return ok && pr.UnderPressure()
}

// Attach re-attaches a detached participant. It is a no-op when p is
// already attached.
func (p *Participant) Attach() {
	if p.attached.Load() {
		return
	}
	p.dom.register(p)
	p.attached.Store(true)
	p.dom.logger.Debug("hazard: participant attached", slog.Uint64("participant", p.id))
}

// Detach clears p's guards, reclaims what it can, flushes participant-local
// values and hands still-referenced entries to the domain. It is a no-op
// when p is not attached.
func (p *Participant) Detach() {
	if !p.attached.Load() {
		return
	}
	for i := range p.slots {
		p.slots[i].v.StoreRelease(0)
	}
	p.used = 0

	p.scan()
	for _, v := range p.locals {
		if f, ok := v.(Flusher); ok {
			f.Flush()
		}
	}

	left := len(p.retired)
	p.dom.orphan(p.retired)
	clear(p.retired)
	p.retired = p.retired[:0]

	p.dom.unregister(p)
	p.attached.Store(false)
	p.dom.logger.Debug("hazard: participant detached",
		slog.Uint64("participant", p.id),
		slog.Int("orphaned", left))
}

// Attached reports whether p is attached to its domain.
func (p *Participant) Attached() bool {
	return p != nil && p.attached.Load()
}

// Domain returns the domain p belongs to.
func (p *Participant) Domain() *Domain { return p.dom }

// ID returns the participant id, unique within its domain.
func (p *Participant) ID() uint64 { return p.id }

// Require panics with ErrNotAttached unless p is attached to d.
func (p *Participant) Require(d *Domain) {
	if p == nil || p.dom != d || !p.attached.Load() {
		panic(ErrNotAttached)
	}
}

// Guard hands out an unused guard. It panics with ErrGuardsExhausted when
// every guard is in use.
func (p *Participant) Guard() *Guard {
	free := ^p.used
	if len(p.guards) < 64 {
		free &= 1<<len(p.guards) - 1
	}
	if free == 0 {
		panic(ErrGuardsExhausted)
	}
	i := bits.TrailingZeros64(free)
	p.used |= 1 << i
	return &p.guards[i]
}

// Retire hands ptr to the domain. r.Reclaim(ptr) runs once no guard
// references ptr. ptr must already be unreachable from shared state.
//
// p scans once it holds the scan threshold of entries, or at once when r
// implements Pressure and reports pressure.
func (p *Participant) Retire(ptr unsafe.Pointer, r Reclaimer) {
	p.retired = append(p.retired, retired{ptr: ptr, r: r})
	p.dom.pending.Add(1)
	if len(p.retired) >= p.dom.threshold || underPressure(r) {
		p.scan()
	}
}

// Flush runs a scan now, reclaiming every retired entry no guard
// references.
func (p *Participant) Flush() {
	p.scan()
}

// Retired returns the number of entries p is still holding.
func (p *Participant) Retired() int { return len(p.retired) }

// Local returns the participant-local value stored under key, creating it
// with mk on first use. Values implementing Flusher are flushed on Detach.
func (p *Participant) Local(key any, mk func() any) any {
	if v, ok := p.locals[key]; ok {
		return v
	}
	if p.locals == nil {
		p.locals = make(map[any]any)
	}
	v := mk()
	p.locals[key] = v
	return v
}

// Forget drops the participant-local value stored under key.
func (p *Participant) Forget(key any) {
	delete(p.locals, key)
}

func (p *Participant) scan() {
	d := p.dom
	p.retired = d.adopt(p.retired, d.threshold)
	if len(p.retired) == 0 {
		return
	}

	p.scratch = d.hazards(p.scratch[:0])
	keep := p.retired[:0]
	var n int64
	for _, r := range p.retired {
		if _, found := slices.BinarySearch(p.scratch, uintptr(r.ptr)); found {
			keep = append(keep, r)
			continue
		}
		r.r.Reclaim(p, r.ptr)
		n++
	}
	clear(p.retired[len(keep):])
	p.retired = keep
	if n > 0 {
		d.reclaimed.Add(n)
		d.pending.Add(-n)
	}
}
