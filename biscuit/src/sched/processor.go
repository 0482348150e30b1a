package sched

import (
	"sync"
	"time"

	"kernel"
	"proc"
)

/// Processor is the single-hart analogue of the source's per-core
/// Processor: it remembers which task is currently installed and owns
/// no thread of control itself -- RunNext/Yield are called by whatever
/// drives the scheduling loop (a test, or a future trap/syscall
/// dispatcher), matching this port's choice to model a task's quantum
/// as an ordinary function call rather than a real register-level
/// context switch.
type Processor struct {
	mu      sync.Mutex
	current *proc.TaskControlBlock
	tm      *TaskManager
}

/// NewProcessor binds a Processor to the ready queue it schedules
/// from.
func NewProcessor(tm *TaskManager) *Processor {
	return &Processor{tm: tm}
}

/// Current returns the task presently installed on this processor, or
/// nil if it is idle.
func (p *Processor) Current() *proc.TaskControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

/// RunNext fetches the minimum-stride ready task, stamps its
/// start-up time on its very first run, marks it Running, and installs
/// it as current. Returns (nil, false) if the ready queue is empty.
func (p *Processor) RunNext() (*proc.TaskControlBlock, bool) {
	t, ok := p.tm.Fetch()
	if !ok {
		return nil, false
	}

	inner := t.Lock()
	if inner.Status == proc.UnInit {
		inner.StartUpTime = time.Now()
	}
	inner.Status = proc.Running
	inner.SchedTicks++
	inner.DispatchedAt = time.Now()
	t.Unlock()

	p.mu.Lock()
	p.current = t
	p.mu.Unlock()
	return t, true
}

/// Yield ends the current task's quantum. A task a caller has already
/// marked Zombie or moved to a blocking wait (semaphore, mutex,
/// condvar, sleep) before calling Yield is simply uninstalled; a task
/// still Running is folded back to Ready, its stride advanced by
/// BIG_STRIDE/prio, and returned to the ready queue -- the one
/// advancement rule the stride algorithm has.
func (p *Processor) Yield() {
	p.mu.Lock()
	t := p.current
	p.current = nil
	p.mu.Unlock()
	if t == nil {
		return
	}
	p.tm.Requeue(t)
}

// Requeue is Yield's task-level half, usable directly by a syscall
// dispatcher that holds a *proc.TaskControlBlock without going through
// a Processor's notion of "current": a task still Running is folded
// back to Ready, its stride advanced by BIG_STRIDE/prio, and returned
// to tm; a task already Zombie or parked in a blocking wait is left
// alone.
func (tm *TaskManager) Requeue(t *proc.TaskControlBlock) {
	inner := t.Lock()
	reready := inner.Status == proc.Running
	if reready {
		if !inner.DispatchedAt.IsZero() {
			inner.Accnt.Utadd(int(time.Since(inner.DispatchedAt).Nanoseconds()))
			inner.DispatchedAt = time.Time{}
		}
		inner.Status = proc.Ready
		prio := inner.ProcPrio
		if prio < 2 {
			prio = 2
		}
		inner.ProcStride += kernel.BIG_STRIDE / prio
	}
	t.Unlock()

	if reready {
		tm.Add(t)
	}
}

/// SetPriority changes t's scheduling priority. Any prio <= 2 is
/// rejected and returns false, leaving the priority unchanged; accepted
/// values start at 3.
func SetPriority(t *proc.TaskControlBlock, prio uint64) bool {
	if prio <= 2 {
		return false
	}
	inner := t.Lock()
	inner.ProcPrio = prio
	t.Unlock()
	return true
}
