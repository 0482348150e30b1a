package proc

import (
	"ksync"

	"defs"
)

// Mutexes, semaphores, and condvars created by mutex_create,
// semaphore_create, and condvar_create live in per-process tables
// indexed by the small int handle user space gets back, the same
// sparse-vector shape the fd table uses. A nil slot is a freed or
// never-allocated handle.

func firstFreeSlot[T any](slots []*T) (int, []*T) {
	for i, s := range slots {
		if s == nil {
			return i, slots
		}
	}
	return len(slots), append(slots, nil)
}

/// CreateMutex allocates a new mutex (spinning if blocking is false,
/// parking otherwise) and returns its handle.
func (t *TaskControlBlock) CreateMutex(blocking bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var m ksync.Mutex_i
	if blocking {
		m = ksync.NewBlockingMutex()
	} else {
		m = ksync.NewSpinMutex()
	}
	id, slots := firstFreeSlot(t.Inner.Mutexes)
	slots[id] = &m
	t.Inner.Mutexes = slots
	return id
}

func (t *TaskControlBlock) mutexAt(id int) ksync.Mutex_i {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.Inner.Mutexes) || t.Inner.Mutexes[id] == nil {
		return nil
	}
	return *t.Inner.Mutexes[id]
}

/// MutexLock locks the mutex at id, or returns defs.EINVAL for an
/// unknown handle. When this task's deadlock-detection domain is
/// enabled and the mutex is already held, it refuses immediately with
/// defs.EDEADLK instead of blocking, matching sys_mutex_lock's
/// is_locking fast path.
func (t *TaskControlBlock) MutexLock(id int) defs.Err_t {
	m := t.mutexAt(id)
	if m == nil {
		return defs.EINVAL
	}
	if t.semDomain().Enabled() && m.IsLocking() {
		return defs.EDEADLK
	}
	m.Lock()
	return 0
}

/// MutexUnlock unlocks the mutex at id, or returns defs.EINVAL for an
/// unknown handle.
func (t *TaskControlBlock) MutexUnlock(id int) defs.Err_t {
	m := t.mutexAt(id)
	if m == nil {
		return defs.EINVAL
	}
	m.Unlock()
	return 0
}

func (t *TaskControlBlock) semDomain() *ksync.Domain {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Inner.SemDomain == nil {
		t.Inner.SemDomain = ksync.NewDomain()
	}
	return t.Inner.SemDomain
}

/// EnableDeadlockDetect turns on banker's-algorithm checking for this
/// task's semaphore domain, permanently.
func (t *TaskControlBlock) EnableDeadlockDetect() {
	t.semDomain().EnableDeadlockDetect()
}

/// CreateSemaphore allocates a counting semaphore with resCount
/// initial resources and returns its handle.
func (t *TaskControlBlock) CreateSemaphore(resCount int) int {
	sem := t.semDomain().NewSemaphore(resCount)
	t.mu.Lock()
	defer t.mu.Unlock()
	id, slots := firstFreeSlot(t.Inner.Semaphores)
	slots[id] = sem
	t.Inner.Semaphores = slots
	return id
}

func (t *TaskControlBlock) semaphoreAt(id int) *ksync.Semaphore_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.Inner.Semaphores) {
		return nil
	}
	return t.Inner.Semaphores[id]
}

/// SemaphoreUp releases one resource on the semaphore at id.
func (t *TaskControlBlock) SemaphoreUp(id int) defs.Err_t {
	s := t.semaphoreAt(id)
	if s == nil {
		return defs.EINVAL
	}
	s.Up(t.Pid)
	return 0
}

/// SemaphoreDown acquires one resource from the semaphore at id,
/// identifying the caller to the banker's algorithm by pid. Returns
/// defs.EDEADLK if granting the request would deadlock the domain.
func (t *TaskControlBlock) SemaphoreDown(id int) defs.Err_t {
	s := t.semaphoreAt(id)
	if s == nil {
		return defs.EINVAL
	}
	return s.Down(t.Pid)
}

/// CreateCondvar allocates a condition variable and returns its
/// handle.
func (t *TaskControlBlock) CreateCondvar() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, slots := firstFreeSlot(t.Inner.Condvars)
	slots[id] = ksync.NewCondvar()
	t.Inner.Condvars = slots
	return id
}

func (t *TaskControlBlock) condvarAt(id int) *ksync.Condvar_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.Inner.Condvars) {
		return nil
	}
	return t.Inner.Condvars[id]
}

/// CondvarSignal wakes the oldest waiter on the condvar at id.
func (t *TaskControlBlock) CondvarSignal(id int) defs.Err_t {
	c := t.condvarAt(id)
	if c == nil {
		return defs.EINVAL
	}
	c.Signal()
	return 0
}

/// CondvarWait waits on the condvar at id, releasing and reacquiring
/// the mutex at mutexID around the wait.
func (t *TaskControlBlock) CondvarWait(id, mutexID int) defs.Err_t {
	c := t.condvarAt(id)
	if c == nil {
		return defs.EINVAL
	}
	m := t.mutexAt(mutexID)
	if m == nil {
		return defs.EINVAL
	}
	c.Wait(m)
	return 0
}
