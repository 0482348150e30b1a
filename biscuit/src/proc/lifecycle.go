package proc

import (
	"time"

	"accnt"
	"defs"
	"fd"
	"kernel"
	"vm"
)

/// Fork duplicates the calling task's address space and fd table into a
/// brand-new task, linked to the caller as a child, and hands it back.
/// No return-value slot of the child's trap context is written, here or
/// by the syscall translator, which returns the child's pid to the
/// caller.
func (t *TaskControlBlock) Fork() *TaskControlBlock {
	t.mu.Lock()
	parentInner := t.Inner
	childMS := vm.FromExistedUser(trampolinePpn(), parentInner.MemorySet)
	trapPpn := trapCxPpn(childMS)

	childFdTable := make([]*fd.Fd_t, len(parentInner.FdTable))
	for i, f := range parentInner.FdTable {
		if f != nil {
			childFdTable[i] = fd.Copyfd(f)
		}
	}
	baseSize := parentInner.BaseSize
	heapBottom := parentInner.HeapBottom
	brk := parentInner.ProgramBrk
	parentTrapCx := readTrapContext(parentInner.TrapCxPpn)
	t.mu.Unlock()

	pid := pids.alloc()
	kstackTop := kernel.KstackAlloc(pid)

	child := &TaskControlBlock{
		Pid:         pid,
		KernelStack: kstackTop,
		Inner: &TaskControlBlockInner{
			TrapCxPpn:   trapPpn,
			BaseSize:    baseSize,
			Status:      Ready,
			MemorySet:   childMS,
			Parent:      t,
			FdTable:     childFdTable,
			HeapBottom:  heapBottom,
			ProgramBrk:  brk,
			SyscallCnt:  make(map[int]uint32),
			ProcPrio:    16,
			ProcStride:  0,
			Accnt:       &accnt.Accnt_t{},
		},
	}

	childTrapCx := parentTrapCx
	childTrapCx.KernelSatp = kernel.Space().Token()
	childTrapCx.KernelSP = uint64(kstackTop)
	childTrapCx.writeToFrame(trapPpn)

	t.mu.Lock()
	t.Inner.Children = append(t.Inner.Children, child)
	t.mu.Unlock()

	return child
}

/// Exec replaces this task's address space in place with a fresh ELF
/// image, reinitializing the trap context; pid, kernel stack, and fd
/// table survive.
func (t *TaskControlBlock) Exec(elfData []byte) error {
	ms, userSP, entry, err := vm.FromELF(trampolinePpn(), elfData)
	if err != nil {
		return err
	}
	trapPpn := trapCxPpn(ms)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.Inner.MemorySet = ms
	t.Inner.TrapCxPpn = trapPpn
	t.Inner.BaseSize = userSP
	t.Inner.HeapBottom = vm.VirtAddr(userSP)
	t.Inner.ProgramBrk = vm.VirtAddr(userSP)

	tc := TrapContext_t{
		Entry:       entry,
		UserSP:      userSP,
		KernelSatp:  kernel.Space().Token(),
		KernelSP:    uint64(t.KernelStack),
		TrapHandler: 0,
	}
	tc.writeToFrame(trapPpn)
	return nil
}

/// Spawn is New(elf) with the result immediately attached to the caller
/// as a child, short-circuiting the fork-then-exec idiom.
func (t *TaskControlBlock) Spawn(elfData []byte) *TaskControlBlock {
	child := New(elfData)
	child.Inner.Status = Ready
	child.Inner.Parent = t
	t.mu.Lock()
	t.Inner.Children = append(t.Inner.Children, child)
	t.mu.Unlock()
	return child
}

/// InitProc is the root of the task tree; Exit reparents orphaned
/// children to it. The kernel bootstrap sets this once, via
/// SetInitProc, before any Fork/Exit can run.
var InitProc *TaskControlBlock

/// SetInitProc installs the root task; callers do this once at boot.
func SetInitProc(p *TaskControlBlock) { InitProc = p }

/// Exit marks the task Zombie, reparents its children to InitProc,
/// records the exit code, and frees its data pages -- its page-table
/// frames stay allocated until Waitpid reaps it, mirroring the source's
/// "recycle data pages, keep page table" split.
func (t *TaskControlBlock) Exit(code int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if InitProc != nil && InitProc != t {
		ip := InitProc.Lock()
		for _, c := range t.Inner.Children {
			c.mu.Lock()
			c.Inner.Parent = InitProc
			c.mu.Unlock()
			ip.Children = append(ip.Children, c)
		}
		InitProc.Unlock()
	}
	if !t.Inner.DispatchedAt.IsZero() {
		t.Inner.Accnt.Utadd(int(time.Since(t.Inner.DispatchedAt).Nanoseconds()))
		t.Inner.DispatchedAt = time.Time{}
	}
	t.Inner.Children = nil
	t.Inner.Status = Zombie
	t.Inner.ExitCode = code
	t.Inner.MemorySet.RecycleDataPages()
}

/// Waitpid looks for a child matching pid (or any child if pid == -1).
/// Returns (-1, 0) if there is no matching child at all, (-2, 0) if a
/// match exists but none is Zombie yet, or (childPid, exitCode) after
/// removing and dropping the reaped child.
func (t *TaskControlBlock) Waitpid(pid int) (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	foundAny := false
	for i, c := range t.Inner.Children {
		if pid != -1 && c.Pid != pid {
			continue
		}
		foundAny = true
		if c.IsZombie() {
			c.mu.Lock()
			exitCode := c.Inner.ExitCode
			c.mu.Unlock()
			childPid := c.Pid
			t.Inner.Children = append(t.Inner.Children[:i], t.Inner.Children[i+1:]...)
			pids.dealloc(childPid)
			kernel.KstackDealloc(childPid)
			return childPid, exitCode
		}
	}
	if !foundAny {
		return -1, 0
	}
	return -2, 0
}

/// Sbrk grows or shrinks the heap area by delta bytes, failing if the
/// new break would fall below heap_bottom. Returns the break before the
/// adjustment, the convention the source's sys_sbrk relies on to hand
/// the old break back to user code.
func (t *TaskControlBlock) Sbrk(delta int64) (uint64, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.Inner.ProgramBrk
	newBrk := vm.VirtAddr(int64(old) + delta)
	if newBrk < t.Inner.HeapBottom {
		return 0, defs.EINVAL
	}

	var ok bool
	if delta < 0 {
		ok = t.Inner.MemorySet.ShrinkTo(t.Inner.HeapBottom, newBrk)
	} else if delta > 0 {
		ok = t.Inner.MemorySet.AppendTo(t.Inner.HeapBottom, newBrk)
	} else {
		ok = true
	}
	if !ok {
		return 0, defs.EINVAL
	}
	t.Inner.ProgramBrk = newBrk
	return uint64(old), 0
}

/// TaskInfo is the task_info syscall's payload: status, a per-syscall
/// invocation count, and wall time since the task first ran.
type TaskInfo struct {
	Status     TaskStatus
	SyscallCnt map[int]uint32
	TimeMs     int64
}

/// Info snapshots this task's scheduling and accounting state.
func (t *TaskControlBlock) Info() TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	cnt := make(map[int]uint32, len(t.Inner.SyscallCnt))
	for k, v := range t.Inner.SyscallCnt {
		cnt[k] = v
	}
	var elapsed int64
	if !t.Inner.StartUpTime.IsZero() {
		elapsed = time.Since(t.Inner.StartUpTime).Milliseconds()
	}
	return TaskInfo{Status: t.Inner.Status, SyscallCnt: cnt, TimeMs: elapsed}
}

/// RecordSyscall increments this task's invocation counter for num,
/// feeding task_info's accounting.
func (t *TaskControlBlock) RecordSyscall(num int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Inner.SyscallCnt[num]++
}
