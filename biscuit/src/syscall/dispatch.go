// Package syscall translates the numeric syscall table into calls on
// proc/vm/fs/fd/ksync/sched, the thin layer a trap handler would call
// once a0 (the syscall number) and a1..a6 (its arguments) have been
// pulled out of a trapped task's saved registers. Every user pointer
// argument is translated through the calling task's own address space;
// nothing here touches physical memory or another task's page table
// directly.
package syscall

import (
	"defs"
	"proc"
)

/// Args holds a syscall's up-to-six register arguments, a0 through a5
/// in the source's calling convention.
type Args [6]uint64

/// Dispatch runs syscall num on behalf of t with arguments a, recording
/// the invocation for task_info accounting before running it. The
/// return value follows the table's documented conventions: mostly
/// non-negative on success and a negative defs.Err_t-shaped code on
/// failure, with -1/-2/-0xDEAD carrying the specific meanings waitpid
/// and the deadlock detector assign them.
func Dispatch(t *proc.TaskControlBlock, num int, a Args) int64 {
	t.RecordSyscall(num)

	switch num {
	case defs.SYS_WRITE:
		return sysWrite(t, int(a[0]), a[1], int(a[2]))
	case defs.SYS_READ:
		return sysRead(t, int(a[0]), a[1], int(a[2]))
	case defs.SYS_OPEN:
		return sysOpen(t, a[0], defs.OpenFlags(a[1]))
	case defs.SYS_CLOSE:
		return sysClose(t, int(a[0]))
	case defs.SYS_FSTAT:
		return sysFstat(t, int(a[0]), a[1])
	case defs.SYS_LINKAT:
		return sysLinkat(t, a[0], a[1])
	case defs.SYS_UNLINKAT:
		return sysUnlinkat(t, a[0])

	case defs.SYS_EXIT:
		return sysExit(t, int(a[0]))
	case defs.SYS_YIELD:
		return sysYield(t)
	case defs.SYS_GETPID:
		return int64(t.Pid)
	case defs.SYS_FORK:
		return sysFork(t)
	case defs.SYS_EXEC:
		return sysExec(t, a[0])
	case defs.SYS_WAITPID:
		return sysWaitpid(t, int(a[0]), a[1])
	case defs.SYS_SPAWN:
		return sysSpawn(t, a[0])
	case defs.SYS_SBRK:
		return sysSbrk(t, int64(a[0]))
	case defs.SYS_SET_PRIORITY:
		return sysSetPriority(t, a[0])

	case defs.SYS_GET_TIME:
		return sysGetTime()
	case defs.SYS_TASK_INFO:
		return sysTaskInfo(t, a[0])

	case defs.SYS_MMAP:
		return sysMmap(t, a[0], a[1], int(a[2]))
	case defs.SYS_MUNMAP:
		return sysMunmap(t, a[0], a[1])
	case defs.SYS_SLEEP:
		return sysSleep(int64(a[0]))

	case defs.SYS_MUTEX_CREATE:
		return sysMutexCreate(t, a[0] != 0)
	case defs.SYS_MUTEX_LOCK:
		return int64(t.MutexLock(int(a[0])))
	case defs.SYS_MUTEX_UNLOCK:
		return int64(t.MutexUnlock(int(a[0])))
	case defs.SYS_SEMAPHORE_CREATE:
		return int64(t.CreateSemaphore(int(a[0])))
	case defs.SYS_SEMAPHORE_UP:
		return int64(t.SemaphoreUp(int(a[0])))
	case defs.SYS_SEMAPHORE_DOWN:
		return int64(t.SemaphoreDown(int(a[0])))
	case defs.SYS_CONDVAR_CREATE:
		return int64(t.CreateCondvar())
	case defs.SYS_CONDVAR_SIGNAL:
		return int64(t.CondvarSignal(int(a[0])))
	case defs.SYS_CONDVAR_WAIT:
		return int64(t.CondvarWait(int(a[0]), int(a[1])))
	case defs.SYS_ENABLE_DEADLOCK_DETECT:
		t.EnableDeadlockDetect()
		return 0
	}
	return int64(defs.EINVAL)
}
