package proc

import (
	"mem"
	"util"
)

// Offsets of the fields app_init_context packs into the trap-context
// page: the handful of saved values trap_return needs to resume a task,
// everything else (the general-purpose register file) being outside
// this port's scope since no real trap entry/exit assembly exists here.
const (
	tcOffEntry       = 0
	tcOffUserSP      = 8
	tcOffKernelSatp  = 16
	tcOffKernelSP    = 24
	tcOffTrapHandler = 32
)

/// TrapContext_t is the saved state a trap return needs: where to resume
/// in user code, the user stack pointer, and the kernel-side state
/// (satp, sp, trap handler entry) needed to get back into the kernel on
/// the next trap.
type TrapContext_t struct {
	Entry       uint64
	UserSP      uint64
	KernelSatp  uint64
	KernelSP    uint64
	TrapHandler uint64
}

// writeToFrame serializes the trap context into its backing physical
// frame, the same frame the task's address space maps at TRAPCONTEXT.
func (tc *TrapContext_t) writeToFrame(ppn mem.Ppn_t) {
	buf := mem.Physmem.BytesAt(ppn)[:]
	util.Writen(buf, 8, tcOffEntry, int(tc.Entry))
	util.Writen(buf, 8, tcOffUserSP, int(tc.UserSP))
	util.Writen(buf, 8, tcOffKernelSatp, int(tc.KernelSatp))
	util.Writen(buf, 8, tcOffKernelSP, int(tc.KernelSP))
	util.Writen(buf, 8, tcOffTrapHandler, int(tc.TrapHandler))
}

func readTrapContext(ppn mem.Ppn_t) TrapContext_t {
	buf := mem.Physmem.BytesAt(ppn)[:]
	return TrapContext_t{
		Entry:       uint64(util.Readn(buf, 8, tcOffEntry)),
		UserSP:      uint64(util.Readn(buf, 8, tcOffUserSP)),
		KernelSatp:  uint64(util.Readn(buf, 8, tcOffKernelSatp)),
		KernelSP:    uint64(util.Readn(buf, 8, tcOffKernelSP)),
		TrapHandler: uint64(util.Readn(buf, 8, tcOffTrapHandler)),
	}
}
