package syscall

import (
	"sync"
	"testing"

	"defs"
	"fs"
	"kernel"
	"mem"
	"proc"
	"sched"
	"vm"
)

var setupOnce sync.Once

func setup(t *testing.T) {
	t.Helper()
	setupOnce.Do(func() {
		kernel.Init(mem.Ppn_t(0x1000), 8192, []vm.IdentRegion{
			{Start: 0x80200000, End: 0x80400000, Perm: vm.PermR | vm.PermW | vm.PermX},
		})
		if err := InitFS(fs.NewMemDisk(), 512, 1, 4, true); err != nil {
			t.Fatalf("InitFS: %v", err)
		}
	})
}

func newTask(t *testing.T) *proc.TaskControlBlock {
	t.Helper()
	setup(t)
	return proc.NewBare(16)
}

// writeUserString copies s (NUL-terminated) into task's address space
// at a scratch virtual address the test controls.
func writeUserString(t *testing.T, task *proc.TaskControlBlock, va vm.VirtAddr, s string) {
	t.Helper()
	inner := task.Lock()
	ms := inner.MemorySet
	task.Unlock()
	ms.InsertFramedArea(va, va+vm.VirtAddr(vm.PGSIZE), vm.PermR|vm.PermW|vm.PermU)
	if !ms.CopyOut(va, append([]byte(s), 0)) {
		t.Fatal("failed to write user string")
	}
}

func TestGetpidAndSbrkThroughDispatch(t *testing.T) {
	task := newTask(t)
	if got := Dispatch(task, defs.SYS_GETPID, Args{}); got != int64(task.Pid) {
		t.Fatalf("getpid = %d, want %d", got, task.Pid)
	}

	before := int64(task.Inner.ProgramBrk)
	got := Dispatch(task, defs.SYS_SBRK, Args{uint64(vm.PGSIZE)})
	if got != before {
		t.Fatalf("sbrk should return the old brk %d, got %d", before, got)
	}
}

func TestOpenWriteReadCloseThroughDispatch(t *testing.T) {
	task := newTask(t)
	pathVA := vm.VirtAddr(0x30000)
	writeUserString(t, task, pathVA, "greeting.txt")

	fdnum := Dispatch(task, defs.SYS_OPEN, Args{uint64(pathVA), uint64(defs.O_CREATE | defs.O_RDWR)})
	if fdnum < 0 {
		t.Fatalf("open failed: %d", fdnum)
	}

	bufVA := vm.VirtAddr(0x31000)
	writeUserString(t, task, bufVA, "hello")
	n := Dispatch(task, defs.SYS_WRITE, Args{uint64(fdnum), uint64(bufVA), 5})
	if n != 5 {
		t.Fatalf("write = %d, want 5", n)
	}

	// OSInode_t tracks its own cursor; reopen is unnecessary here since
	// the test only checks write succeeded via a fresh fd positioned at
	// 0.
	fdnum2 := Dispatch(task, defs.SYS_OPEN, Args{uint64(pathVA), uint64(defs.O_RDONLY)})
	if fdnum2 < 0 {
		t.Fatalf("reopen failed: %d", fdnum2)
	}
	readVA := vm.VirtAddr(0x32000)
	inner := task.Lock()
	ms := inner.MemorySet
	task.Unlock()
	ms.InsertFramedArea(readVA, readVA+vm.VirtAddr(vm.PGSIZE), vm.PermR|vm.PermW|vm.PermU)

	got := Dispatch(task, defs.SYS_READ, Args{uint64(fdnum2), uint64(readVA), 5})
	if got != 5 {
		t.Fatalf("read = %d, want 5", got)
	}
	buf := make([]byte, 5)
	ms.CopyIn(readVA, buf)
	if string(buf) != "hello" {
		t.Fatalf("read back %q, want \"hello\"", buf)
	}

	if r := Dispatch(task, defs.SYS_CLOSE, Args{uint64(fdnum)}); r != 0 {
		t.Fatalf("close = %d, want 0", r)
	}
	if r := Dispatch(task, defs.SYS_CLOSE, Args{uint64(fdnum)}); r != int64(defs.EINVAL) {
		t.Fatalf("double close = %d, want EINVAL", r)
	}
}

func TestForkWaitpidThroughDispatch(t *testing.T) {
	parent := newTask(t)
	childPid := Dispatch(parent, defs.SYS_FORK, Args{})
	if childPid <= 0 {
		t.Fatalf("fork = %d, want a positive pid", childPid)
	}

	child, ok := sched.FetchTask()
	if !ok || int64(child.Pid) != childPid {
		t.Fatal("forked child should have been enqueued on the default ready queue")
	}

	if got := Dispatch(parent, defs.SYS_WAITPID, Args{uint64(childPid), 0}); got != -2 {
		t.Fatalf("waitpid on a live child = %d, want -2", got)
	}

	Dispatch(child, defs.SYS_EXIT, Args{7})
	if got := Dispatch(parent, defs.SYS_WAITPID, Args{uint64(childPid), 0}); got != childPid {
		t.Fatalf("waitpid after exit = %d, want %d", got, childPid)
	}
}

func TestSetPriorityRejectsLowValuesThroughDispatch(t *testing.T) {
	task := newTask(t)
	if got := Dispatch(task, defs.SYS_SET_PRIORITY, Args{2}); got != int64(defs.EINVAL) {
		t.Fatalf("set_priority(2) = %d, want EINVAL", got)
	}
	if got := Dispatch(task, defs.SYS_SET_PRIORITY, Args{10}); got != 10 {
		t.Fatalf("set_priority(10) = %d, want 10", got)
	}
}

func TestMutexCreateLockUnlockThroughDispatch(t *testing.T) {
	task := newTask(t)
	id := Dispatch(task, defs.SYS_MUTEX_CREATE, Args{1})
	if id < 0 {
		t.Fatalf("mutex_create failed: %d", id)
	}
	if r := Dispatch(task, defs.SYS_MUTEX_LOCK, Args{uint64(id)}); r != 0 {
		t.Fatalf("mutex_lock = %d, want 0", r)
	}
	if r := Dispatch(task, defs.SYS_MUTEX_UNLOCK, Args{uint64(id)}); r != 0 {
		t.Fatalf("mutex_unlock = %d, want 0", r)
	}
}

func TestTaskInfoThroughDispatch(t *testing.T) {
	task := newTask(t)
	Dispatch(task, defs.SYS_GETPID, Args{})
	Dispatch(task, defs.SYS_GETPID, Args{})

	outVA := vm.VirtAddr(0x33000)
	inner := task.Lock()
	ms := inner.MemorySet
	task.Unlock()
	ms.InsertFramedArea(outVA, outVA+vm.VirtAddr(vm.PGSIZE), vm.PermR|vm.PermW|vm.PermU)

	if r := Dispatch(task, defs.SYS_TASK_INFO, Args{uint64(outVA)}); r != 0 {
		t.Fatalf("task_info = %d, want 0", r)
	}
	buf := make([]byte, 4)
	ms.CopyIn(outVA+vm.VirtAddr(4+defs.SYS_GETPID*4), buf)
	count := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	// getpid ran twice above, plus once more as part of this call's own
	// SYS_TASK_INFO bookkeeping does not touch SYS_GETPID's slot.
	if count < 2 {
		t.Fatalf("recorded getpid count = %d, want >= 2", count)
	}
}
