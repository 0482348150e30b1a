package kernel

import (
	"bytes"
	"testing"

	"mem"
	"vm"
)

func TestInitBuildsAddressSpace(t *testing.T) {
	ms := Init(mem.Ppn_t(0x1000), 4096, []vm.IdentRegion{
		{Start: 0x80200000, End: 0x80400000, Perm: vm.PermR | vm.PermW | vm.PermX},
	})
	if ms == nil {
		t.Fatal("Init returned nil address space")
	}
	if Space() != ms {
		t.Fatal("Space() should return the same instance Init built")
	}
	if _, ok := ms.Translate(vm.TRAMPOLINE.Vpn()); !ok {
		t.Fatal("trampoline not mapped in kernel space")
	}
}

func TestKernelStackPositionDescendsByPid(t *testing.T) {
	b0, t0 := KernelStackPosition(0)
	b1, t1 := KernelStackPosition(1)
	if t0 <= b0 {
		t.Fatal("stack 0 inverted")
	}
	if t1 > b0-vm.VirtAddr(mem.PGSIZE) {
		t.Fatal("stack 1 should sit strictly below stack 0, with a guard gap")
	}
	if t1 <= b1 {
		t.Fatal("stack 1 inverted")
	}
}

func TestLogfWritesToConsole(t *testing.T) {
	var buf bytes.Buffer
	old := Console
	Console = &buf
	defer func() { Console = old }()

	Logf("hello %d", 7)
	if buf.String() != "hello 7\n" {
		t.Fatalf("Logf wrote %q", buf.String())
	}
}
