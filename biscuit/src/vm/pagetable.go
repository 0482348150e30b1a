// Package vm implements per-process address spaces on top of a 3-level
// Sv39-style page table: map areas, mmap/munmap, ELF loading, and the
// deep-copy duplication fork relies on.
package vm

import (
	"unsafe"

	"mem"
)

/// PGSHIFT/PGSIZE mirror mem's page geometry; vm re-exports them so callers
/// never need to import mem just to round an address.
const (
	PGSHIFT = mem.PGSHIFT
	PGSIZE  = mem.PGSIZE
)

const (
	vpnBits  = 9
	vpnMask  = (1 << vpnBits) - 1
	levels   = 3
	vaBits   = 39
)

/// VirtAddr is a 64-bit virtual address (only the low vaBits are
/// meaningful in Sv39).
type VirtAddr uint64

/// Vpn returns the virtual page number containing this address.
func (va VirtAddr) Vpn() VirtPageNum {
	return VirtPageNum(va >> mem.PGSHIFT)
}

/// PageOffset returns the low, in-page bits of the address.
func (va VirtAddr) PageOffset() uint64 {
	return uint64(va) & uint64(PGSIZE-1)
}

/// Floor rounds the address down to a page boundary, as a VPN.
func (va VirtAddr) Floor() VirtPageNum {
	return VirtPageNum(va / VirtAddr(PGSIZE))
}

/// Ceil rounds the address up to a page boundary, as a VPN.
func (va VirtAddr) Ceil() VirtPageNum {
	return VirtPageNum((uint64(va) + uint64(PGSIZE) - 1) / uint64(PGSIZE))
}

/// VirtPageNum is a virtual page number.
type VirtPageNum uint64

/// Addr returns the virtual address at the start of this page.
func (vpn VirtPageNum) Addr() VirtAddr {
	return VirtAddr(vpn) << mem.PGSHIFT
}

/// Indices splits the VPN into its three 9-bit page-table indices, highest
/// level first.
func (vpn VirtPageNum) Indices() [levels]uint64 {
	var idx [levels]uint64
	v := uint64(vpn)
	for i := levels - 1; i >= 0; i-- {
		idx[i] = v & vpnMask
		v >>= vpnBits
	}
	return idx
}

/// PTEFlags are the low flag bits of a page table entry.
type PTEFlags uint64

const (
	PTE_V PTEFlags = 1 << 0 /// valid
	PTE_R PTEFlags = 1 << 1
	PTE_W PTEFlags = 1 << 2
	PTE_X PTEFlags = 1 << 3
	PTE_U PTEFlags = 1 << 4
	PTE_G PTEFlags = 1 << 5
	PTE_A PTEFlags = 1 << 6 /// accessed
	PTE_D PTEFlags = 1 << 7 /// dirty
)

const pteFlagBits = 8
const pteAddrShift = 10 // Sv39 packs the PPN starting at bit 10

/// PTE is a single 64-bit page table entry.
type PTE uint64

func mkpte(ppn mem.Ppn_t, flags PTEFlags) PTE {
	return PTE(uint64(ppn)<<pteAddrShift | uint64(flags))
}

/// Flags returns the flag bits of the entry.
func (p PTE) Flags() PTEFlags {
	return PTEFlags(p) & ((1 << pteFlagBits) - 1)
}

/// Ppn returns the physical frame number this entry names.
func (p PTE) Ppn() mem.Ppn_t {
	return mem.Ppn_t(uint64(p) >> pteAddrShift)
}

/// Valid reports whether the V bit is set.
func (p PTE) Valid() bool {
	return p.Flags()&PTE_V != 0
}

/// Leaf reports whether this entry carries any of R/W/X -- i.e. it maps a
/// page rather than pointing at a lower-level table.
func (p PTE) Leaf() bool {
	return p.Flags()&(PTE_R|PTE_W|PTE_X) != 0
}

/// PageTable_t is a 3-level Sv39-style page table. It owns every
/// intermediate table frame it allocates (but never the leaf data frames,
/// which MapArea owns).
type PageTable_t struct {
	root   mem.Ppn_t
	frames []*mem.FrameTracker_t // intermediate (non-leaf) tables, owned
}

/// NewPageTable allocates an empty root table.
func NewPageTable() *PageTable_t {
	root, ok := mem.Physmem.Alloc()
	if !ok {
		panic("vm: no frames for new page table root")
	}
	return &PageTable_t{root: root.Ppn(), frames: []*mem.FrameTracker_t{root}}
}

/// FromToken builds a read-only view of an already-built table, identified
/// by its root frame number -- the shape Token() hands to the trap path so
/// a syscall can translate user pointers without holding the owning
/// MemorySet.
func FromToken(token uint64) *PageTable_t {
	return &PageTable_t{root: mem.Ppn_t(token), frames: nil}
}

/// Token returns the satp-style root identifier for this table.
func (pt *PageTable_t) Token() uint64 {
	return uint64(pt.root)
}

// a page table frame, reinterpreted as 512 64-bit entries.
type ptes_t [512]PTE

func tableAt(ppn mem.Ppn_t) *ptes_t {
	return (*ptes_t)(unsafe.Pointer(mem.Physmem.BytesAt(ppn)))
}

// findPTE walks the three levels for vpn, allocating intermediate tables
// along the way when alloc is true. Returns nil if the walk runs off a
// non-present non-leaf entry and alloc is false.
func (pt *PageTable_t) findPTE(vpn VirtPageNum, alloc bool) *PTE {
	idx := vpn.Indices()
	ppn := pt.root
	for lvl := 0; lvl < levels; lvl++ {
		tbl := tableAt(ppn)
		pte := &tbl[idx[lvl]]
		if lvl == levels-1 {
			return pte
		}
		if !pte.Valid() {
			if !alloc {
				return nil
			}
			frame, ok := mem.Physmem.Alloc()
			if !ok {
				panic("vm: no frames for page table level")
			}
			pt.frames = append(pt.frames, frame)
			*pte = mkpte(frame.Ppn(), PTE_V)
		}
		ppn = pte.Ppn()
	}
	panic("unreachable")
}

/// Map installs a leaf PTE for vpn -> ppn with the given flags (V is added
/// automatically). Panics if vpn is already mapped -- a remap collision is
/// an internal invariant violation, never a recoverable error.
func (pt *PageTable_t) Map(vpn VirtPageNum, ppn mem.Ppn_t, flags PTEFlags) {
	pte := pt.findPTE(vpn, true)
	if pte.Valid() {
		panic("vm: remap of already-valid vpn")
	}
	*pte = mkpte(ppn, flags|PTE_V)
}

/// Unmap clears a leaf PTE. Panics if it was not valid.
func (pt *PageTable_t) Unmap(vpn VirtPageNum) {
	pte := pt.findPTE(vpn, false)
	if pte == nil || !pte.Valid() {
		panic("vm: unmap of non-mapped vpn")
	}
	*pte = 0
}

/// Translate returns the leaf PTE for vpn, if mapped.
func (pt *PageTable_t) Translate(vpn VirtPageNum) (PTE, bool) {
	pte := pt.findPTE(vpn, false)
	if pte == nil || !pte.Valid() {
		return 0, false
	}
	return *pte, true
}

/// TranslateVA resolves a full virtual address to its physical address,
/// honoring the page offset.
func (pt *PageTable_t) TranslateVA(va VirtAddr) (mem.Pa_t, bool) {
	pte, ok := pt.Translate(va.Vpn())
	if !ok {
		return 0, false
	}
	base := pte.Ppn().Pa()
	return base + mem.Pa_t(va.PageOffset()), true
}
