package vm

import "mem"

// pageSpan walks [va, va+n) page by page, handing each iteration the
// physical byte slice backing that page and the portion of the request
// that falls within it -- the primitive every user-pointer copy below
// is built from, since a user buffer can straddle a page boundary and
// the two pages need not be physically adjacent.
func (ms *MemorySet) pageSpan(va VirtAddr, n int, fn func(phys []byte, off int) bool) bool {
	remaining := n
	cur := va
	reqOff := 0
	for remaining > 0 {
		pte, ok := ms.PT.Translate(cur.Vpn())
		if !ok {
			return false
		}
		pageOff := int(cur.PageOffset())
		chunk := PGSIZE - pageOff
		if chunk > remaining {
			chunk = remaining
		}
		phys := mem.Physmem.BytesAt(pte.Ppn())[pageOff : pageOff+chunk]
		if !fn(phys, reqOff) {
			return false
		}
		remaining -= chunk
		reqOff += chunk
		cur = VirtAddr(uint64(cur) + uint64(chunk))
	}
	return true
}

/// CopyIn reads len(dst) bytes starting at the user virtual address va
/// into dst. Returns false if any page in the range is unmapped.
func (ms *MemorySet) CopyIn(va VirtAddr, dst []byte) bool {
	return ms.pageSpan(va, len(dst), func(phys []byte, off int) bool {
		copy(dst[off:off+len(phys)], phys)
		return true
	})
}

/// CopyOut writes src into the user virtual address va. Returns false
/// if any page in the range is unmapped.
func (ms *MemorySet) CopyOut(va VirtAddr, src []byte) bool {
	return ms.pageSpan(va, len(src), func(phys []byte, off int) bool {
		copy(phys, src[off:off+len(phys)])
		return true
	})
}

/// CopyInString reads a NUL-terminated string starting at va, one page
/// at a time, stopping at the first NUL or after maxLen bytes without
/// finding one (the latter is treated as a caller error).
func (ms *MemorySet) CopyInString(va VirtAddr, maxLen int) (string, bool) {
	var buf []byte
	cur := va
	for len(buf) < maxLen {
		pte, ok := ms.PT.Translate(cur.Vpn())
		if !ok {
			return "", false
		}
		pageOff := int(cur.PageOffset())
		phys := mem.Physmem.BytesAt(pte.Ppn())[pageOff:]
		for _, b := range phys {
			if b == 0 {
				return string(buf), true
			}
			buf = append(buf, b)
			if len(buf) >= maxLen {
				return "", false
			}
		}
		cur = VirtAddr(uint64(cur) + uint64(len(phys)))
	}
	return "", false
}
