package vm

import "mem"

/// MapType distinguishes framed (allocated, copyable) regions from
/// identity-mapped ones used for kernel sections and MMIO.
type MapType int

const (
	Identical MapType = iota
	Framed
)

/// MapPerm carries the permission bits of a map area, matching the PTE
/// flag layout so they can be OR'd in directly.
type MapPerm uint8

const (
	PermR MapPerm = 1 << 1
	PermW MapPerm = 1 << 2
	PermX MapPerm = 1 << 3
	PermU MapPerm = 1 << 4
)

func (p MapPerm) pteFlags() PTEFlags {
	var f PTEFlags
	if p&PermR != 0 {
		f |= PTE_R
	}
	if p&PermW != 0 {
		f |= PTE_W
	}
	if p&PermX != 0 {
		f |= PTE_X
	}
	if p&PermU != 0 {
		f |= PTE_U
	}
	return f
}

/// MapArea is a half-open VPN range with a map type and permission,
/// optionally owning the physical frames backing it.
type MapArea struct {
	Start, End  VirtPageNum
	Type        MapType
	Perm        MapPerm
	DataFrames  map[VirtPageNum]*mem.FrameTracker_t
}

/// NewMapArea constructs an area over [startVA, endVA), rounding the start
/// down and the end up to page boundaries, as the kernel always does when
/// carving out address ranges.
func NewMapArea(startVA, endVA VirtAddr, typ MapType, perm MapPerm) *MapArea {
	ma := &MapArea{
		Start: startVA.Floor(),
		End:   endVA.Ceil(),
		Type:  typ,
		Perm:  perm,
	}
	if typ == Framed {
		ma.DataFrames = make(map[VirtPageNum]*mem.FrameTracker_t)
	}
	return ma
}

/// fromAnother creates a fresh, unmapped area with the same range/type/perm
/// as another -- the first half of duplicating a MemorySet.
func fromAnother(other *MapArea) *MapArea {
	ma := &MapArea{Start: other.Start, End: other.End, Type: other.Type, Perm: other.Perm}
	if other.Type == Framed {
		ma.DataFrames = make(map[VirtPageNum]*mem.FrameTracker_t)
	}
	return ma
}

/// IsEmpty reports whether the range is empty.
func (ma *MapArea) IsEmpty() bool {
	return ma.Start >= ma.End
}

func (ma *MapArea) mapOne(pt *PageTable_t, vpn VirtPageNum) {
	var ppn mem.Ppn_t
	switch ma.Type {
	case Identical:
		ppn = mem.Ppn_t(vpn)
	case Framed:
		frame, ok := mem.Physmem.Alloc()
		if !ok {
			panic("vm: out of frames mapping area")
		}
		ma.DataFrames[vpn] = frame
		ppn = frame.Ppn()
	}
	pt.Map(vpn, ppn, ma.Perm.pteFlags())
}

func (ma *MapArea) unmapOne(pt *PageTable_t, vpn VirtPageNum) {
	if ma.Type == Framed {
		if frame, ok := ma.DataFrames[vpn]; ok {
			frame.Release()
			delete(ma.DataFrames, vpn)
		}
	}
	pt.Unmap(vpn)
}

/// MapAll installs every page of the area.
func (ma *MapArea) MapAll(pt *PageTable_t) {
	for vpn := ma.Start; vpn < ma.End; vpn++ {
		ma.mapOne(pt, vpn)
	}
}

/// UnmapAll removes every page of the area, releasing owned frames.
func (ma *MapArea) UnmapAll(pt *PageTable_t) {
	for vpn := ma.Start; vpn < ma.End; vpn++ {
		ma.unmapOne(pt, vpn)
	}
}

/// CopyData copies data into the area page by page. Requires Framed; the
/// area must already be mapped.
func (ma *MapArea) CopyData(pt *PageTable_t, data []byte) {
	if ma.Type != Framed {
		panic("vm: CopyData on non-framed area")
	}
	vpn := ma.Start
	off := 0
	for off < len(data) {
		n := len(data) - off
		if n > PGSIZE {
			n = PGSIZE
		}
		frame := ma.DataFrames[vpn]
		copy(frame.Bytes()[:n], data[off:off+n])
		off += n
		vpn++
	}
}

// shrinkTo drops pages from the high end down to newEnd.
func (ma *MapArea) shrinkTo(pt *PageTable_t, newEnd VirtPageNum) {
	for vpn := newEnd; vpn < ma.End; vpn++ {
		ma.unmapOne(pt, vpn)
	}
	ma.End = newEnd
}

// appendTo maps pages from the current end up through newEnd.
func (ma *MapArea) appendTo(pt *PageTable_t, newEnd VirtPageNum) {
	for vpn := ma.End; vpn < newEnd; vpn++ {
		ma.mapOne(pt, vpn)
	}
	ma.End = newEnd
}
