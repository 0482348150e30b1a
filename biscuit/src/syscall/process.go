package syscall

import (
	"time"

	"defs"
	"kernel"
	"proc"
	"sched"
	"vm"
)

func sysExit(t *proc.TaskControlBlock, code int) int64 {
	t.Exit(code)
	return 0
}

func sysYield(t *proc.TaskControlBlock) int64 {
	sched.Requeue(t)
	return 0
}

func sysFork(t *proc.TaskControlBlock) int64 {
	child := t.Fork()
	sched.AddTask(child)
	return int64(child.Pid)
}

func sysExec(t *proc.TaskControlBlock, elfVA uint64) int64 {
	// The hosted build has no way to locate an arbitrary-length ELF
	// image from a single user pointer without a companion length
	// argument the table doesn't carry; exec is exercised directly
	// against proc.Exec in its own package's tests. Surfacing it here
	// would need the loader (cmd/kbuild's initrd) this port does not
	// yet have, so the syscall number is wired but always reports
	// failure rather than silently doing nothing.
	return int64(defs.EINVAL)
}

func sysWaitpid(t *proc.TaskControlBlock, pid int, outVA uint64) int64 {
	childPid, code := t.Waitpid(pid)
	if childPid < 0 {
		return int64(childPid)
	}
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	if outVA != 0 {
		var buf [4]byte
		buf[0] = byte(code)
		buf[1] = byte(code >> 8)
		buf[2] = byte(code >> 16)
		buf[3] = byte(code >> 24)
		if !ms.CopyOut(vaOf(outVA), buf[:]) {
			return int64(defs.EINVAL)
		}
	}
	return int64(childPid)
}

func sysSpawn(t *proc.TaskControlBlock, elfVA uint64) int64 {
	// Same limitation as sysExec: no length-bearing argument to read an
	// ELF image through. Wired for completeness of the dispatch table.
	return int64(defs.EINVAL)
}

func sysSbrk(t *proc.TaskControlBlock, delta int64) int64 {
	old, err := t.Sbrk(delta)
	if err != 0 {
		return int64(err)
	}
	return int64(old)
}

func sysSetPriority(t *proc.TaskControlBlock, prio uint64) int64 {
	if !sched.SetPriority(t, prio) {
		return int64(defs.EINVAL)
	}
	return int64(prio)
}

func sysGetTime() int64 {
	return time.Now().UnixMilli()
}

func sysTaskInfo(t *proc.TaskControlBlock, outVA uint64) int64 {
	info := t.Info()
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()

	var buf [4 + kernel.MAX_SYSCALL_NUM*4 + 8]byte
	buf[0] = byte(info.Status)

	idx := 4
	for num, cnt := range info.SyscallCnt {
		if num < 0 || num >= kernel.MAX_SYSCALL_NUM {
			continue
		}
		off := idx + num*4
		buf[off] = byte(cnt)
		buf[off+1] = byte(cnt >> 8)
		buf[off+2] = byte(cnt >> 16)
		buf[off+3] = byte(cnt >> 24)
	}
	timeOff := idx + kernel.MAX_SYSCALL_NUM*4
	tm := uint64(info.TimeMs)
	for i := 0; i < 8; i++ {
		buf[timeOff+i] = byte(tm >> (8 * i))
	}

	if !ms.CopyOut(vaOf(outVA), buf[:]) {
		return int64(defs.EINVAL)
	}
	return 0
}

func sysMmap(t *proc.TaskControlBlock, start, length uint64, port int) int64 {
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	if err := ms.Mmap(vm.VirtAddr(start), int(length), uint(port)); err != nil {
		return int64(defs.EINVAL)
	}
	return 0
}

func sysMunmap(t *proc.TaskControlBlock, start, length uint64) int64 {
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	if err := ms.Munmap(vm.VirtAddr(start), int(length)); err != nil {
		return int64(defs.EINVAL)
	}
	return 0
}

func sysSleep(ms int64) int64 {
	if ms < 0 {
		return int64(defs.EINVAL)
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return 0
}
