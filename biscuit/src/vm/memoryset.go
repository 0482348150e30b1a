package vm

import (
	"debug/elf"
	"fmt"
	"sort"

	"mem"
)

// TRAMPOLINE sits at the top of every address space; TRAPCONTEXT one page
// below it. Both are invariant across every MemorySet this package builds.
const (
	TRAMPOLINE   VirtAddr = ^VirtAddr(0) - VirtAddr(PGSIZE) + 1
	TRAPCONTEXT  VirtAddr = TRAMPOLINE - VirtAddr(PGSIZE)
	UserStackSize         = 2 * PGSIZE
	guardPageSize         = PGSIZE
)

/// CrossType classifies how a deallocation range relates to the existing
/// map areas: Single if it falls entirely within one area, Multiple if it
/// spans a contiguous run of areas.
type CrossType struct {
	Multi bool
	First int // index of first affected area
	Last  int // index of last affected area (== First when !Multi)
}

/// MemorySet is a page table plus the ordered map areas built on top of it.
type MemorySet struct {
	PT    *PageTable_t
	Areas []*MapArea // kept sorted by Start
}

/// NewBare creates an address space with a fresh, empty page table.
func NewBare() *MemorySet {
	return &MemorySet{PT: NewPageTable()}
}

/// Token returns the satp-style root identifier for this address space.
func (ms *MemorySet) Token() uint64 {
	return ms.PT.Token()
}

func (ms *MemorySet) insertSorted(area *MapArea) {
	i := sort.Search(len(ms.Areas), func(i int) bool { return ms.Areas[i].Start >= area.Start })
	ms.Areas = append(ms.Areas, nil)
	copy(ms.Areas[i+1:], ms.Areas[i:])
	ms.Areas[i] = area
}

/// Push maps every page of area and, if data is non-nil, copies it in page
/// by page (area must be Framed for that).
func (ms *MemorySet) Push(area *MapArea, data []byte) {
	area.MapAll(ms.PT)
	if data != nil {
		area.CopyData(ms.PT, data)
	}
	ms.insertSorted(area)
}

/// InsertFramedArea is a convenience Push of a fresh Framed area; the
/// caller guarantees the range does not overlap an existing area.
func (ms *MemorySet) InsertFramedArea(startVA, endVA VirtAddr, perm MapPerm) {
	ms.Push(NewMapArea(startVA, endVA, Framed, perm), nil)
}

/// RemoveAreaWithStartVpn unmaps and drops the area beginning at startVpn,
/// if any.
func (ms *MemorySet) RemoveAreaWithStartVpn(startVpn VirtPageNum) {
	for i, a := range ms.Areas {
		if a.Start == startVpn {
			a.UnmapAll(ms.PT)
			ms.Areas = append(ms.Areas[:i], ms.Areas[i+1:]...)
			return
		}
	}
}

/// MapTrampoline installs the single trampoline page, shared physically
/// across every address space, R|X, at the fixed top-of-space VPN.
func (ms *MemorySet) MapTrampoline(trampolinePage mem.Ppn_t) {
	ms.PT.Map(TRAMPOLINE.Vpn(), trampolinePage, PTE_R|PTE_X)
}

/// IdentRegion is one window of physical memory the kernel address space
/// maps 1:1 -- a kernel section, the physical memory tail, or an MMIO
/// window. The trap/interrupt entry glue and boot wrapper that would
/// normally supply kernel section boundaries are out of this package's
/// scope, so the caller (kernel.Init) supplies the regions directly.
type IdentRegion struct {
	Start, End VirtAddr
	Perm       MapPerm
}

/// NewKernel builds the kernel's own address space: the trampoline plus
/// one Identical area per supplied region (kernel text/data/bss, the
/// physical memory tail, and MMIO windows).
func NewKernel(trampolinePage mem.Ppn_t, regions []IdentRegion) *MemorySet {
	ms := NewBare()
	ms.MapTrampoline(trampolinePage)
	for _, r := range regions {
		ms.Push(NewMapArea(r.Start, r.End, Identical, r.Perm), nil)
	}
	return ms
}

/// FromELF parses a statically-linked ELF image and builds the user
/// address space for it: one Framed area per PT_LOAD segment, a guard
/// page, a user stack, an initially-empty sbrk region, and the trap
/// context page. Returns the address space, the initial user stack top,
/// and the entry point.
func FromELF(trampolinePage mem.Ppn_t, data []byte) (ms *MemorySet, userSP uint64, entry uint64, err error) {
	f, err := elf.NewFile(newReaderAt(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vm: bad elf: %w", err)
	}
	ms = NewBare()
	ms.MapTrampoline(trampolinePage)

	maxEnd := VirtAddr(0)
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		perm := PermU
		if prog.Flags&elf.PF_R != 0 {
			perm |= PermR
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= PermW
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= PermX
		}
		start := VirtAddr(prog.Vaddr)
		end := start + VirtAddr(prog.Memsz)
		area := NewMapArea(start, end, Framed, perm)
		buf := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(buf, 0); err != nil {
			return nil, 0, 0, fmt.Errorf("vm: reading segment: %w", err)
		}
		ms.Push(area, buf)
		if end > maxEnd {
			maxEnd = end
		}
	}

	// guard page below the user stack
	userStackBottom := maxEnd.Ceil().Addr() + VirtAddr(guardPageSize)
	userStackTop := userStackBottom + VirtAddr(UserStackSize)
	ms.InsertFramedArea(userStackBottom, userStackTop, PermR|PermW|PermU)

	// sbrk region starts empty and grows via AppendTo
	heapBottom := userStackTop
	ms.InsertFramedArea(heapBottom, heapBottom, PermR|PermW|PermU)

	// trap context, kernel-only (no U bit)
	ms.InsertFramedArea(TRAPCONTEXT, TRAMPOLINE, PermR|PermW)

	return ms, uint64(userStackTop), f.Entry, nil
}

/// FromExistedUser deep-copies another address space: every Framed page is
/// backed by a freshly allocated frame with the bytes copied over, so
/// mutating the clone never affects the original. Identity areas are
/// rebuilt with the same 1:1 mapping (nothing to copy). The trampoline is
/// remapped.
func FromExistedUser(trampolinePage mem.Ppn_t, other *MemorySet) *MemorySet {
	ms := NewBare()
	ms.MapTrampoline(trampolinePage)
	for _, src := range other.Areas {
		dst := fromAnother(src)
		dst.MapAll(ms.PT)
		ms.insertSorted(dst)
		if src.Type == Framed {
			for vpn := src.Start; vpn < src.End; vpn++ {
				srcFrame, ok := src.DataFrames[vpn]
				if !ok {
					continue
				}
				dstFrame := dst.DataFrames[vpn]
				copy(dstFrame.Bytes()[:], srcFrame.Bytes()[:])
			}
		}
	}
	return ms
}

/// Activate would write satp and flush the TLB on real hardware; in this
/// hosted build it only records which table is logically current.
func (ms *MemorySet) Activate() {
	currentToken = ms.Token()
}

var currentToken uint64

/// Translate resolves vpn through this address space's page table.
func (ms *MemorySet) Translate(vpn VirtPageNum) (PTE, bool) {
	return ms.PT.Translate(vpn)
}

/// RecycleDataPages releases every Framed page's backing frame but leaves
/// the page-table frames themselves intact, matching a zombie task that
/// keeps its page-table structure around until waitpid reaps it.
func (ms *MemorySet) RecycleDataPages() {
	for _, a := range ms.Areas {
		a.UnmapAll(ms.PT)
	}
	ms.Areas = nil
}

func (ms *MemorySet) findArea(startVpn VirtPageNum) (*MapArea, int) {
	for i, a := range ms.Areas {
		if a.Start == startVpn {
			return a, i
		}
	}
	return nil, -1
}

/// ShrinkTo adjusts the area starting at start down to newEnd; used by
/// sbrk(negative).
func (ms *MemorySet) ShrinkTo(start, newEnd VirtAddr) bool {
	area, _ := ms.findArea(start.Floor())
	if area == nil {
		return false
	}
	area.shrinkTo(ms.PT, newEnd.Ceil())
	return true
}

/// AppendTo adjusts the area starting at start up to newEnd; used by
/// sbrk(positive).
func (ms *MemorySet) AppendTo(start, newEnd VirtAddr) bool {
	area, _ := ms.findArea(start.Floor())
	if area == nil {
		return false
	}
	area.appendTo(ms.PT, newEnd.Ceil())
	return true
}

/// IsConflict reports whether [startVA, endVA) overlaps any existing area.
func (ms *MemorySet) IsConflict(startVA, endVA VirtAddr) bool {
	s, e := startVA.Floor(), endVA.Ceil()
	for _, a := range ms.Areas {
		if s < a.End && a.Start < e {
			return true
		}
	}
	return false
}

/// IsVmmFullyMapped checks that [startVA, endVA) is entirely covered by
/// one area (Single) or a contiguous run of areas (Multiple), with no
/// gaps. Returns false if the range is not fully covered.
func (ms *MemorySet) IsVmmFullyMapped(startVA, endVA VirtAddr) (CrossType, bool) {
	s, e := startVA.Floor(), endVA.Ceil()
	var first, last = -1, -1
	cur := s
	for i, a := range ms.Areas {
		if a.End <= s || a.Start >= e {
			continue
		}
		if a.Start > cur {
			return CrossType{}, false // gap
		}
		if first == -1 {
			first = i
		}
		last = i
		cur = a.End
	}
	if first == -1 || cur < e {
		return CrossType{}, false
	}
	return CrossType{Multi: first != last, First: first, Last: last}, true
}

/// Free unmaps every vpn in [startVA, endVA); for a Single range the area
/// itself is removed, for Multiple the first and last spanning areas are
/// trimmed down to the unaffected portion without dropping the areas in
/// between that the range doesn't fully cover.
func (ms *MemorySet) Free(startVA, endVA VirtAddr, ct CrossType) {
	s, e := startVA.Floor(), endVA.Ceil()
	if !ct.Multi {
		a := ms.Areas[ct.First]
		for vpn := s; vpn < e; vpn++ {
			a.unmapOne(ms.PT, vpn)
		}
		if a.Start == s && a.End == e {
			ms.Areas = append(ms.Areas[:ct.First], ms.Areas[ct.First+1:]...)
		}
		return
	}
	first := ms.Areas[ct.First]
	for vpn := s; vpn < first.End; vpn++ {
		first.unmapOne(ms.PT, vpn)
	}
	last := ms.Areas[ct.Last]
	for vpn := last.Start; vpn < e; vpn++ {
		last.unmapOne(ms.PT, vpn)
	}
	removeFrom, removeTo := ct.First, ct.Last+1
	if first.Start == s {
		first.Start = first.End // emptied; drop below
	} else {
		first.End = s
		removeFrom++
	}
	if last.End == e {
		// drop it too
	} else {
		last.Start = e
		removeTo--
	}
	ms.Areas = append(ms.Areas[:removeFrom], ms.Areas[removeTo:]...)
}

/// Mmap validates alignment and port bits, checks for overlap, and inserts
/// a Framed area covering [start, start+len) with permissions derived from
/// port (low 3 bits, R=1 W=2 X=4) plus U.
func (ms *MemorySet) Mmap(start VirtAddr, length int, port uint) error {
	if uint64(start)%uint64(PGSIZE) != 0 {
		return fmt.Errorf("vm: mmap start not page aligned")
	}
	if port&^0x7 != 0 || port&0x7 == 0 {
		return fmt.Errorf("vm: mmap bad port bits %#x", port)
	}
	end := start + VirtAddr(length)
	if ms.IsConflict(start, end) {
		return fmt.Errorf("vm: mmap range conflicts with existing area")
	}
	perm := PermU
	if port&0x1 != 0 {
		perm |= PermR
	}
	if port&0x2 != 0 {
		perm |= PermW
	}
	if port&0x4 != 0 {
		perm |= PermX
	}
	pages := int(end.Ceil() - start.Floor())
	if mem.Physmem.Free() < pages {
		return fmt.Errorf("vm: mmap exhausted: need %d frames, %d free", pages, mem.Physmem.Free())
	}
	ms.InsertFramedArea(start, end, perm)
	return nil
}

/// Munmap classifies the range and frees it; fails if the range is not
/// fully mapped (e.g. a double munmap).
func (ms *MemorySet) Munmap(start VirtAddr, length int) error {
	end := start + VirtAddr(length)
	ct, ok := ms.IsVmmFullyMapped(start, end)
	if !ok {
		return fmt.Errorf("vm: munmap range not fully mapped")
	}
	ms.Free(start, end, ct)
	return nil
}

// newReaderAt adapts a byte slice to io.ReaderAt for debug/elf.
type sliceReaderAt []byte

func newReaderAt(b []byte) sliceReaderAt { return sliceReaderAt(b) }

func (s sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s)) {
		return 0, fmt.Errorf("vm: elf read out of range")
	}
	n := copy(p, s[off:])
	if n < len(p) {
		return n, fmt.Errorf("vm: short elf read")
	}
	return n, nil
}
