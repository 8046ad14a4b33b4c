// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hazard provides hazard-pointer memory reclamation for lock-free
// containers.
//
// A Domain owns a set of participants. Each goroutine that touches a
// container attaches its own Participant, publishes the nodes it is about
// to dereference through Guards, and retires nodes it has unlinked. A
// retired node is handed to its Reclaimer only after a scan finds no guard
// in the domain still referencing it.
//
// Basic usage:
//
//	d, err := hazard.NewDomain(hazard.Options{})
//	if err != nil {
//		return err
//	}
//	d.Do(func(p *hazard.Participant) {
//		g := p.Guard()
//		defer g.Release()
//		n := hazard.Load(g, &head)
//		// n is safe to dereference until g is cleared
//	})
//
// Participants are not safe for concurrent use: one goroutine owns one
// participant. Scans read every attached participant's guards.
package hazard

import (
	"log/slog"
	"slices"
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfc/internal/ring"
)

// Reclaimer frees a retired pointer. p is the participant running the
// scan, or nil when the domain itself drains orphans in Close.
//
// Reclaim must not call Retire.
type Reclaimer interface {
	Reclaim(p *Participant, ptr unsafe.Pointer)
}

// ReclaimFunc adapts a function to the Reclaimer interface.
type ReclaimFunc func(p *Participant, ptr unsafe.Pointer)

// Reclaim calls f(p, ptr).
func (f ReclaimFunc) Reclaim(p *Participant, ptr unsafe.Pointer) { f(p, ptr) }

type retired struct {
	ptr unsafe.Pointer
	r   Reclaimer
}

// Domain is a hazard-pointer reclamation domain.
type Domain struct {
	guards    int
	threshold int
	logger    *slog.Logger

	// parts is a copy-on-write snapshot of attached participants.
	// Writers hold mu; scans load it without locking.
	mu     sync.Mutex
	parts  atomix.Pointer[[]*Participant]
	nextID uint64

	orphans  *ring.Ring[retired]
	omu      sync.Mutex
	overflow []retired

	pending   atomix.Int64
	reclaimed atomix.Int64
	orphaned  atomix.Int64
}

// Stats is a point-in-time view of a Domain.
type Stats struct {
	Attached  int   `json:"attached"`
	Guards    int   `json:"guards"`
	Pending   int64 `json:"pending"`
	Reclaimed int64 `json:"reclaimed"`
	Orphans   int64 `json:"orphans"`
}

// NewDomain creates a reclamation domain.
func NewDomain(opts Options) (*Domain, error) {
	opts.setDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	d := &Domain{
		guards:    opts.Guards,
		threshold: opts.ScanThreshold,
		logger:    opts.Logger,
		orphans:   ring.New[retired](opts.OrphanCapacity),
	}
	empty := make([]*Participant, 0)
	d.parts.StoreRelease(&empty)
	return d, nil
}

// Attach creates a participant and attaches it to d.
func (d *Domain) Attach() *Participant {
	p := &Participant{
		dom:   d,
		slots: make([]hazardSlot, d.guards),
	}
	p.guards = make([]Guard, d.guards)
	for i := range p.guards {
		p.guards[i] = Guard{p: p, idx: i}
	}
	p.Attach()
	return p
}

// Do attaches a participant, runs fn and detaches it, also when fn panics.
func (d *Domain) Do(fn func(p *Participant)) {
	p := d.Attach()
	defer p.Detach()
	fn(p)
}

// Guards returns the number of guards each participant owns.
func (d *Domain) Guards() int { return d.guards }

// Logger returns the domain logger.
func (d *Domain) Logger() *slog.Logger { return d.logger }

// Stats returns a snapshot of the domain counters.
func (d *Domain) Stats() Stats {
	return Stats{
		Attached:  len(*d.parts.LoadAcquire()),
		Guards:    d.guards,
		Pending:   d.pending.Load(),
		Reclaimed: d.reclaimed.Load(),
		Orphans:   d.orphaned.Load(),
	}
}

// Close reclaims every orphaned entry. It fails with
// ErrParticipantsAttached while any participant is attached.
func (d *Domain) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(*d.parts.LoadAcquire()); n > 0 {
		return ErrParticipantsAttached
	}

	var n int64
	for _, r := range d.adopt(nil, -1) {
		r.r.Reclaim(nil, r.ptr)
		n++
	}
	d.reclaimed.Add(n)
	d.pending.Add(-n)
	d.logger.Debug("hazard: domain closed",
		slog.Int64("drained", n),
		slog.Int64("reclaimed", d.reclaimed.Load()))
	return nil
}

func (d *Domain) register(p *Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	p.id = d.nextID
	old := *d.parts.LoadAcquire()
	next := make([]*Participant, len(old), len(old)+1)
	copy(next, old)
	next = append(next, p)
	d.parts.StoreRelease(&next)
}

func (d *Domain) unregister(p *Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := *d.parts.LoadAcquire()
	next := make([]*Participant, 0, len(old))
	for _, q := range old {
		if q != p {
			next = append(next, q)
		}
	}
	d.parts.StoreRelease(&next)
}

// hazards appends every published guard value to dst and returns it
// sorted.
func (d *Domain) hazards(dst []uintptr) []uintptr {
	for _, p := range *d.parts.LoadAcquire() {
		for i := range p.slots {
			if v := p.slots[i].v.LoadAcquire(); v != 0 {
				dst = append(dst, v)
			}
		}
	}
	slices.Sort(dst)
	return dst
}

// orphan hands entries of a detaching participant to the domain.
func (d *Domain) orphan(list []retired) {
	if len(list) == 0 {
		return
	}
	d.orphaned.Add(int64(len(list)))
	stored := d.orphans.PutAll(list)
	if spill := list[stored:]; len(spill) > 0 {
		d.omu.Lock()
		d.overflow = append(d.overflow, spill...)
		d.omu.Unlock()
		d.logger.Warn("hazard: orphan ring full",
			slog.Int("spilled", len(spill)),
			slog.Int("ring_size", d.orphans.Size()))
	}
}

// adopt moves up to limit orphaned entries into dst. A negative limit
// takes all of them.
func (d *Domain) adopt(dst []retired, limit int) []retired {
	if d.orphaned.Load() == 0 {
		return dst
	}
	before := len(dst)
	dst = d.orphans.Take(dst, limit)
	taken := len(dst) - before
	if limit < 0 || taken < limit {
		d.omu.Lock()
		n := len(d.overflow)
		if limit >= 0 {
			n = min(n, limit-taken)
		}
		dst = append(dst, d.overflow[len(d.overflow)-n:]...)
		clear(d.overflow[len(d.overflow)-n:])
		d.overflow = d.overflow[:len(d.overflow)-n]
		d.omu.Unlock()
		taken += n
	}
	d.orphaned.Add(-int64(taken))
	return dst
}
