package proc

import (
	"accnt"
	"kernel"
	"vm"
)

/// NewBare builds a task with no ELF image: a bare address space
/// carrying just a zero-length sbrk area and a trap context page, and
/// a freshly allocated pid and kernel stack. Such a task never runs user
/// code; the package tests use it to exercise the scheduler and
/// lifecycle operations without hand-building a RISC-V binary.
func NewBare(prio uint64) *TaskControlBlock {
	ms := vm.NewBare()
	ms.MapTrampoline(trampolinePpn())
	heapBottom := vm.VirtAddr(0x1000000)
	ms.InsertFramedArea(heapBottom, heapBottom, vm.PermR|vm.PermW|vm.PermU)
	ms.InsertFramedArea(vm.TRAPCONTEXT, vm.TRAMPOLINE, vm.PermR|vm.PermW)

	trapPpn := trapCxPpn(ms)
	pid := pids.alloc()
	kstackTop := kernel.KstackAlloc(pid)

	return &TaskControlBlock{
		Pid:         pid,
		KernelStack: kstackTop,
		Inner: &TaskControlBlockInner{
			TrapCxPpn:  trapPpn,
			BaseSize:   uint64(heapBottom),
			Status:     Ready,
			MemorySet:  ms,
			FdTable:    allocFdTable(),
			HeapBottom: heapBottom,
			ProgramBrk: heapBottom,
			SyscallCnt: make(map[int]uint32),
			ProcPrio:   prio,
			Accnt:      &accnt.Accnt_t{},
		},
	}
}
