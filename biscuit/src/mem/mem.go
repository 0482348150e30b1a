// Package mem owns the physical frame allocator: a stack-based free list
// over the range of physical memory left after the kernel image, handed
// out one page at a time to the vm and fs packages.
package mem

import (
	"fmt"
	"sync"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

/// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

/// Pa_t is a physical address.
type Pa_t uintptr

/// Ppn_t is a physical page (frame) number, Pa_t >> PGSHIFT.
type Ppn_t uint64

/// Bytepg_t is one physical page addressed as bytes.
type Bytepg_t [PGSIZE]uint8

/// Ppn returns the frame number containing this physical address.
func (p Pa_t) Ppn() Ppn_t {
	return Ppn_t(p >> PGSHIFT)
}

/// Pa returns the physical base address of frame n.
func (n Ppn_t) Pa() Pa_t {
	return Pa_t(n) << PGSHIFT
}

/// FrameTracker_t is the sole owner of one physical frame. Its zero value
/// is not valid; obtain one from Physmem.Alloc. At most one live tracker
/// exists per frame -- Release must be called exactly once.
type FrameTracker_t struct {
	ppn      Ppn_t
	released bool
}

/// Ppn returns the frame number this tracker owns.
func (ft *FrameTracker_t) Ppn() Ppn_t {
	return ft.ppn
}

/// Pa returns the physical base address of this tracker's frame.
func (ft *FrameTracker_t) Pa() Pa_t {
	return ft.ppn.Pa()
}

/// Bytes exposes the frame's backing storage.
func (ft *FrameTracker_t) Bytes() *Bytepg_t {
	return Physmem.bytesOf(ft.ppn)
}

/// Release returns the frame to the free list. Calling it twice panics --
/// that would mean two live trackers shared a frame, violating the
/// allocator's core invariant.
func (ft *FrameTracker_t) Release() {
	if ft.released {
		panic("double free of frame tracker")
	}
	ft.released = true
	Physmem.dealloc(ft.ppn)
}

/// Physmem_t is the stack-based physical frame allocator: a contiguous
/// arena [base, base+count*PGSIZE) backed by a Go byte slice standing in
/// for physical RAM, plus a free list of previously-released frames.
type Physmem_t struct {
	sync.Mutex
	arena    []Bytepg_t
	base     Ppn_t
	nextFree Ppn_t // untouched frames start here
	end      Ppn_t // one past the last managed frame
	recycled []Ppn_t
	inuse    map[Ppn_t]bool
}

/// Physmem is the kernel-wide frame allocator singleton.
var Physmem = &Physmem_t{}

/// Phys_init reserves `count` frames of backing storage starting at a
/// synthetic base frame number and readies the allocator for use. Mirrors
/// the kernel's historical direct console logging of memory bring-up.
func Phys_init(base Ppn_t, count int) *Physmem_t {
	Physmem.Lock()
	defer Physmem.Unlock()
	Physmem.arena = make([]Bytepg_t, count)
	Physmem.base = base
	Physmem.nextFree = base
	Physmem.end = base + Ppn_t(count)
	Physmem.recycled = nil
	Physmem.inuse = make(map[Ppn_t]bool, count)
	fmt.Printf("mem: %v frames available [%#x, %#x)\n", count, base, Physmem.end)
	return Physmem
}

func (phys *Physmem_t) bytesOf(ppn Ppn_t) *Bytepg_t {
	idx := ppn - phys.base
	return &phys.arena[idx]
}

/// BytesAt exposes a live frame's backing storage by frame number, for
/// callers (page table walkers, the block cache) that only have a raw
/// Ppn_t rather than the FrameTracker_t that owns it.
func (phys *Physmem_t) BytesAt(ppn Ppn_t) *Bytepg_t {
	phys.Lock()
	defer phys.Unlock()
	return phys.bytesOf(ppn)
}

/// Alloc hands out a zeroed frame: the top of the recycled stack if
/// non-empty, otherwise the next never-used frame. Returns false if both
/// are exhausted.
func (phys *Physmem_t) Alloc() (*FrameTracker_t, bool) {
	phys.Lock()
	defer phys.Unlock()
	ppn, ok := phys.take()
	if !ok {
		return nil, false
	}
	buf := phys.bytesOf(ppn)
	for i := range buf {
		buf[i] = 0
	}
	return &FrameTracker_t{ppn: ppn}, true
}

/// AllocNoZero behaves like Alloc but skips zeroing, for callers that will
/// overwrite the full page immediately (e.g. a disk-block read).
func (phys *Physmem_t) AllocNoZero() (*FrameTracker_t, bool) {
	phys.Lock()
	defer phys.Unlock()
	ppn, ok := phys.take()
	if !ok {
		return nil, false
	}
	return &FrameTracker_t{ppn: ppn}, true
}

// take pops a frame off the recycled stack or advances the untouched
// high-water mark. Caller holds the lock.
func (phys *Physmem_t) take() (Ppn_t, bool) {
	if n := len(phys.recycled); n > 0 {
		ppn := phys.recycled[n-1]
		phys.recycled = phys.recycled[:n-1]
		phys.inuse[ppn] = true
		return ppn, true
	}
	if phys.nextFree < phys.end {
		ppn := phys.nextFree
		phys.nextFree++
		phys.inuse[ppn] = true
		return ppn, true
	}
	return 0, false
}

func (phys *Physmem_t) dealloc(ppn Ppn_t) {
	phys.Lock()
	defer phys.Unlock()
	if ppn < phys.base || ppn >= phys.end {
		panic("dealloc: frame outside managed range")
	}
	if !phys.inuse[ppn] {
		panic("dealloc: frame already free")
	}
	delete(phys.inuse, ppn)
	phys.recycled = append(phys.recycled, ppn)
}

/// Free reports the number of frames immediately available for Alloc.
func (phys *Physmem_t) Free() int {
	phys.Lock()
	defer phys.Unlock()
	return len(phys.recycled) + int(phys.end-phys.nextFree)
}
