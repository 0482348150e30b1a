package vm

import (
	"testing"

	"mem"
)

func setupPhysmem(t *testing.T, frames int) mem.Ppn_t {
	t.Helper()
	mem.Phys_init(0x100, frames)
	trampoline, ok := mem.Physmem.Alloc()
	if !ok {
		t.Fatal("no frame for trampoline")
	}
	return trampoline.Ppn()
}

func TestMmapThenMunmap(t *testing.T) {
	tramp := setupPhysmem(t, 256)
	ms := NewBare()
	ms.MapTrampoline(tramp)

	start := VirtAddr(0x10000000)
	if err := ms.Mmap(start, PGSIZE, 0x3); err != nil {
		t.Fatalf("mmap: %v", err)
	}
	pte, ok := ms.Translate(start.Vpn())
	if !ok || !pte.Valid() {
		t.Fatal("expected mapped page after mmap")
	}
	frame := ms.Areas[0].DataFrames[start.Vpn()]
	frame.Bytes()[0] = 0xAA

	if err := ms.Munmap(start, PGSIZE); err != nil {
		t.Fatalf("first munmap: %v", err)
	}
	if _, ok := ms.Translate(start.Vpn()); ok {
		t.Fatal("expected page to be unmapped")
	}
	if err := ms.Munmap(start, PGSIZE); err == nil {
		t.Fatal("second munmap should fail")
	}
}

func TestMmapRejectsBadPort(t *testing.T) {
	tramp := setupPhysmem(t, 64)
	ms := NewBare()
	ms.MapTrampoline(tramp)
	if err := ms.Mmap(VirtAddr(0x20000000), PGSIZE, 0); err == nil {
		t.Fatal("port 0 should be rejected")
	}
	if err := ms.Mmap(VirtAddr(0x20000000), PGSIZE, 0x8); err == nil {
		t.Fatal("port with high bits set should be rejected")
	}
}

func TestMmapRejectsConflict(t *testing.T) {
	tramp := setupPhysmem(t, 64)
	ms := NewBare()
	ms.MapTrampoline(tramp)
	start := VirtAddr(0x30000000)
	if err := ms.Mmap(start, 2*PGSIZE, 0x3); err != nil {
		t.Fatalf("first mmap: %v", err)
	}
	if err := ms.Mmap(start+VirtAddr(PGSIZE), PGSIZE, 0x1); err == nil {
		t.Fatal("overlapping mmap should fail")
	}
}

func TestFromExistedUserIsolatesMutation(t *testing.T) {
	tramp := setupPhysmem(t, 256)
	a := NewBare()
	a.MapTrampoline(tramp)
	start := VirtAddr(0x40000000)
	a.InsertFramedArea(start, start+VirtAddr(PGSIZE), PermR|PermW|PermU)
	frameA := a.Areas[0].DataFrames[start.Vpn()]
	frameA.Bytes()[0] = 1

	clone := FromExistedUser(tramp, a)
	cloneFrame := clone.Areas[0].DataFrames[start.Vpn()]
	cloneFrame.Bytes()[0] = 2

	if frameA.Bytes()[0] != 1 {
		t.Fatalf("mutating the clone must not affect the original, got %v", frameA.Bytes()[0])
	}
}

func TestTranslateInvariantAfterMap(t *testing.T) {
	tramp := setupPhysmem(t, 64)
	ms := NewBare()
	ms.MapTrampoline(tramp)
	start := VirtAddr(0x50000000)
	ms.InsertFramedArea(start, start+VirtAddr(PGSIZE), PermR|PermX|PermU)
	pte, ok := ms.Translate(start.Vpn())
	if !ok {
		t.Fatal("expected mapped vpn to translate")
	}
	if pte.Flags()&PTE_R == 0 || pte.Flags()&PTE_X == 0 || pte.Flags()&PTE_U == 0 {
		t.Fatalf("expected R|X|U permission bits, got %#x", pte.Flags())
	}
	if pte.Flags()&PTE_W != 0 {
		t.Fatal("did not request W permission")
	}
}

func TestSbrkShrinkAndAppend(t *testing.T) {
	tramp := setupPhysmem(t, 64)
	ms := NewBare()
	ms.MapTrampoline(tramp)
	heapBottom := VirtAddr(0x60000000)
	ms.InsertFramedArea(heapBottom, heapBottom, PermR|PermW|PermU)

	if !ms.AppendTo(heapBottom, heapBottom+VirtAddr(2*PGSIZE)) {
		t.Fatal("append should succeed")
	}
	if _, ok := ms.Translate(heapBottom.Vpn() + 1); !ok {
		t.Fatal("expected second heap page mapped")
	}
	if !ms.ShrinkTo(heapBottom, heapBottom+VirtAddr(PGSIZE)) {
		t.Fatal("shrink should succeed")
	}
	if _, ok := ms.Translate(heapBottom.Vpn() + 1); ok {
		t.Fatal("expected second heap page unmapped after shrink")
	}
}
