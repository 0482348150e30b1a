package vm

import (
	"bytes"
	"testing"
)

func TestCopyOutInRoundTripsAcrossPages(t *testing.T) {
	setupPhysmem(t, 4096)
	ms := NewBare()
	base := VirtAddr(0x20000)
	ms.InsertFramedArea(base, base+VirtAddr(3*PGSIZE), PermR|PermW|PermU)

	want := bytes.Repeat([]byte("0123456789abcdef"), 300) // spans multiple pages
	off := VirtAddr(PGSIZE - 20)                           // straddle the first page boundary
	if !ms.CopyOut(base+off, want) {
		t.Fatal("CopyOut failed on a mapped range")
	}

	got := make([]byte, len(want))
	if !ms.CopyIn(base+off, got) {
		t.Fatal("CopyIn failed on a mapped range")
	}
	if !bytes.Equal(got, want) {
		t.Fatal("round trip mismatch")
	}
}

func TestCopyInFailsOnUnmappedRange(t *testing.T) {
	setupPhysmem(t, 4096)
	ms := NewBare()
	buf := make([]byte, 8)
	if ms.CopyIn(VirtAddr(0x40000), buf) {
		t.Fatal("CopyIn should fail against an unmapped address")
	}
}

func TestCopyInStringStopsAtNUL(t *testing.T) {
	setupPhysmem(t, 4096)
	ms := NewBare()
	base := VirtAddr(0x20000)
	ms.InsertFramedArea(base, base+VirtAddr(PGSIZE), PermR|PermW|PermU)

	raw := append([]byte("hello\x00garbage"), 0)
	ms.CopyOut(base, raw)

	s, ok := ms.CopyInString(base, 64)
	if !ok || s != "hello" {
		t.Fatalf("CopyInString = %q, %v, want \"hello\", true", s, ok)
	}
}

func TestCopyInStringFailsWithoutNUL(t *testing.T) {
	setupPhysmem(t, 4096)
	ms := NewBare()
	base := VirtAddr(0x20000)
	ms.InsertFramedArea(base, base+VirtAddr(PGSIZE), PermR|PermW|PermU)

	ms.CopyOut(base, []byte("abcdefgh")) // 8 bytes, no NUL within maxLen below

	if _, ok := ms.CopyInString(base, 8); ok {
		t.Fatal("CopyInString should fail when no NUL appears within maxLen")
	}
}
