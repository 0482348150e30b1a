package proc

import (
	"testing"

	"kernel"
	"mem"
	"vm"
)

func setupKernel(t *testing.T) {
	t.Helper()
	kernel.Init(mem.Ppn_t(0x1000), 8192, []vm.IdentRegion{
		{Start: 0x80200000, End: 0x80400000, Perm: vm.PermR | vm.PermW | vm.PermX},
	})
}

// newTestTask builds a task control block without going through an ELF
// image, so scheduler/lifecycle logic can be tested without hand-rolling
// a RISC-V binary: a bare address space with just a sbrk area and a trap
// context page, matching the tail of what FromELF would have produced.
func newTestTask(t *testing.T) *TaskControlBlock {
	t.Helper()
	setupKernel(t)
	return NewBare(16)
}

func TestSbrkGrowAndShrink(t *testing.T) {
	task := newTestTask(t)

	old, err := task.Sbrk(int64(mem.PGSIZE))
	if err != 0 {
		t.Fatalf("sbrk grow failed: %v", err)
	}
	if old != uint64(task.Inner.HeapBottom) {
		t.Fatalf("sbrk should return old brk, got %#x", old)
	}

	if _, err := task.Sbrk(-int64(mem.PGSIZE)); err != 0 {
		t.Fatalf("sbrk shrink failed: %v", err)
	}

	if _, err := task.Sbrk(-int64(mem.PGSIZE) - 1); err == 0 {
		t.Fatal("sbrk below heap_bottom should fail")
	}
}

func TestForkSharesNothingMutable(t *testing.T) {
	parent := newTestTask(t)
	child := parent.Fork()

	if child.Pid == parent.Pid {
		t.Fatal("child must have a distinct pid")
	}
	if len(parent.Inner.Children) != 1 || parent.Inner.Children[0] != child {
		t.Fatal("fork should register the child on the parent")
	}
	if child.Inner.Parent != parent {
		t.Fatal("child should reference its parent")
	}
}

func TestExitReparentsChildrenToInitProc(t *testing.T) {
	root := newTestTask(t)
	SetInitProc(root)
	defer SetInitProc(nil)

	mid := newTestTask(t)
	leaf := mid.Fork()
	_ = leaf

	mid.Exit(0)
	if len(root.Inner.Children) != 1 {
		t.Fatalf("initproc should have inherited 1 orphan, got %d", len(root.Inner.Children))
	}
	if !mid.IsZombie() {
		t.Fatal("exited task should be zombie")
	}
}

func TestWaitpidConventions(t *testing.T) {
	parent := newTestTask(t)
	child := parent.Fork()

	if pid, _ := parent.Waitpid(child.Pid); pid != -2 {
		t.Fatalf("waitpid on alive child = %d want -2", pid)
	}
	if pid, _ := parent.Waitpid(9999); pid != -1 {
		t.Fatalf("waitpid on unknown pid = %d want -1", pid)
	}

	child.Exit(42)
	pid, code := parent.Waitpid(child.Pid)
	if pid != child.Pid || code != 42 {
		t.Fatalf("waitpid after exit = (%d, %d) want (%d, 42)", pid, code, child.Pid)
	}

	if pid, _ := parent.Waitpid(child.Pid); pid != -1 {
		t.Fatalf("second waitpid on reaped child = %d want -1", pid)
	}
}
