package proc

import (
	"sync"
	"time"

	"accnt"
	"fd"
	"kernel"
	"ksync"
	"mem"
	"vm"
)

/// TaskStatus is a task's scheduling state.
type TaskStatus int

const (
	UnInit TaskStatus = iota
	Ready
	Running
	Zombie
)

/// TaskControlBlock is a task: an immutable identity (pid, kernel stack)
/// plus an inner state block guarded by a single lock, matching the
/// single-hart exclusive-access-cell discipline -- a second acquisition
/// from the same call stack is a caller bug, not something the lock
/// itself can detect.
type TaskControlBlock struct {
	Pid         int
	KernelStack vm.VirtAddr // top of this task's kernel stack

	mu    sync.Mutex
	Inner *TaskControlBlockInner
}

/// TaskControlBlockInner is everything about a task that changes over
/// its lifetime.
type TaskControlBlockInner struct {
	TrapCxPpn  mem.Ppn_t
	BaseSize   uint64
	Status     TaskStatus
	MemorySet  *vm.MemorySet

	// Parent holds a strong reference, same direction a child's presence
	// in Parent.Children does; there is no reciprocal weak back-pointer
	// here the way the source keeps one from child to parent, because Go
	// already collects reference cycles -- the only discipline that
	// still matters is that Exit reparents children to initproc and
	// Waitpid removes the reaped child from its parent's slice, so a
	// zombie does not linger in two task trees at once.
	Parent   *TaskControlBlock
	Children []*TaskControlBlock

	ExitCode int
	FdTable  []*fd.Fd_t

	HeapBottom vm.VirtAddr
	ProgramBrk vm.VirtAddr

	SyscallCnt map[int]uint32
	StartUpTime time.Time

	ProcPrio   uint64
	ProcStride uint64

	// SchedTicks counts how many times the scheduler has installed this
	// task as current, the raw counter the stride-ratio property checks
	// against.
	SchedTicks uint64

	// Accnt accumulates this task's scheduled CPU time: the Processor
	// adds to it between RunNext installing the task and Yield/Requeue
	// uninstalling it. DispatchedAt is the wall-clock instant of the
	// current quantum's start, zero when the task is not installed.
	Accnt        *accnt.Accnt_t
	DispatchedAt time.Time

	// Mutexes, Semaphores, and Condvars are the process-local handle
	// tables mutex_create/semaphore_create/condvar_create allocate
	// into, sparse vectors the way FdTable is. SemDomain groups every
	// semaphore this process creates for banker's-algorithm deadlock
	// detection, lazily built on first use.
	Mutexes    []*ksync.Mutex_i
	Semaphores []*ksync.Semaphore_t
	Condvars   []*ksync.Condvar_t
	SemDomain  *ksync.Domain
}

// Lock acquires this task's inner-state lock; callers must Unlock before
// any operation that can block (the scheduler, a semaphore wait), per
// the single-hart exclusive-access-cell contract.
func (t *TaskControlBlock) Lock() *TaskControlBlockInner {
	t.mu.Lock()
	return t.Inner
}

func (t *TaskControlBlock) Unlock() {
	t.mu.Unlock()
}

/// UserToken returns this task's page-table token under its own lock.
func (t *TaskControlBlock) UserToken() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Inner.MemorySet.Token()
}

/// IsZombie reports whether the task has exited but not yet been reaped.
func (t *TaskControlBlock) IsZombie() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Inner.Status == Zombie
}

/// CPUTimeNanos returns the total wall-clock time this task has spent
/// installed as the running task, accumulated by the scheduler across
/// every quantum.
func (t *TaskControlBlock) CPUTimeNanos() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Inner.Accnt.Userns
}

func trapCxPpn(ms *vm.MemorySet) mem.Ppn_t {
	pte, ok := ms.Translate(vm.TRAPCONTEXT.Vpn())
	if !ok {
		panic("proc: trap context not mapped")
	}
	return pte.Ppn()
}

func allocFdTable() []*fd.Fd_t {
	return []*fd.Fd_t{
		{File: fd.Stdin_t{}},
		{File: fd.Stdout_t{}},
		{File: fd.Stdout_t{}}, // fd 2, stderr, shares stdout's sink
	}
}

/// New builds a fresh task from a statically linked ELF image: its own
/// address space, a freshly allocated pid and kernel stack, and a trap
/// context primed to enter at the ELF's entry point. Used for the very
/// first process (initproc); every other task is produced by Fork,
/// Exec, or Spawn.
func New(elfData []byte) *TaskControlBlock {
	trampolinePage := trampolinePpn()
	ms, userSP, entry, err := vm.FromELF(trampolinePage, elfData)
	if err != nil {
		panic("proc: bad init elf: " + err.Error())
	}
	trapPpn := trapCxPpn(ms)

	pid := pids.alloc()
	kstackTop := kernel.KstackAlloc(pid)

	tcb := &TaskControlBlock{
		Pid:         pid,
		KernelStack: kstackTop,
		Inner: &TaskControlBlockInner{
			TrapCxPpn:   trapPpn,
			BaseSize:    userSP,
			Status:      UnInit,
			MemorySet:   ms,
			FdTable:     allocFdTable(),
			HeapBottom:  vm.VirtAddr(userSP),
			ProgramBrk:  vm.VirtAddr(userSP),
			SyscallCnt:  make(map[int]uint32),
			ProcPrio:    16,
			ProcStride:  0,
			Accnt:       &accnt.Accnt_t{},
		},
	}

	tc := TrapContext_t{
		Entry:       entry,
		UserSP:      userSP,
		KernelSatp:  kernel.Space().Token(),
		KernelSP:    uint64(kstackTop),
		TrapHandler: 0,
	}
	tc.writeToFrame(trapPpn)
	return tcb
}

// trampolinePpn hands back the physical page backing the shared
// trampoline; kernel.Init allocates it once, right after the frame
// allocator comes up, and every address space maps the same frame,
// matching the source's link-time-fixed trampoline section. Callers
// must not call this before kernel.Init.
func trampolinePpn() mem.Ppn_t {
	return kernel.TrampolinePpn()
}
