package ksync

import (
	"sync"

	"defs"
)

/// SemID identifies a semaphore within its owning Domain, mirroring the
/// small integer handles user space gets back from semaphore_create.
type SemID int

/// Domain groups every mutex and semaphore created by one process (or
/// other unit of deadlock-detection scope) together with the
/// allocation/need bookkeeping the banker's algorithm needs. Tasks
/// identify themselves to a Domain by an arbitrary stable int (their
/// pid or tid); the Domain never interprets that value beyond using it
/// as a map key.
type Domain struct {
	mu sync.Mutex

	sems      map[SemID]*Semaphore_t
	nextSemID SemID

	deadlockDetect bool
	allocation     map[int]map[SemID]int
	need           map[int]map[SemID]int
}

/// NewDomain returns an empty deadlock-detection scope with detection
/// disabled, matching sys_enable_deadlock_detect's default-off
/// behavior.
func NewDomain() *Domain {
	return &Domain{
		sems:       make(map[SemID]*Semaphore_t),
		allocation: make(map[int]map[SemID]int),
		need:       make(map[int]map[SemID]int),
	}
}

/// EnableDeadlockDetect turns on banker's-algorithm checking for every
/// semaphore_down in this domain from now on. It is never turned back
/// off, matching the reference syscall.
func (d *Domain) EnableDeadlockDetect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deadlockDetect = true
}

/// Enabled reports whether deadlock detection is currently on for this
/// domain, consulted by mutex_lock's own non-blocking check as well as
/// semaphore_down's banker's-algorithm pass.
func (d *Domain) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deadlockDetect
}

/// Semaphore_t is a counting semaphore whose up/down also feed the
/// owning Domain's per-task allocation/need vectors.
type Semaphore_t struct {
	domain *Domain
	id     SemID

	mu      sync.Mutex
	cond    *sync.Cond
	count   int
	waiters []int // task ids parked in FIFO order
}

/// NewSemaphore creates and registers a semaphore with resCount
/// available resources.
func (d *Domain) NewSemaphore(resCount int) *Semaphore_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Semaphore_t{domain: d, id: d.nextSemID, count: resCount}
	s.cond = sync.NewCond(&s.mu)
	d.sems[s.id] = s
	d.nextSemID++
	return s
}

/// ID returns this semaphore's handle within its domain.
func (s *Semaphore_t) ID() SemID { return s.id }

func (d *Domain) bumpAllocation(taskID int, id SemID, delta int) {
	if d.allocation[taskID] == nil {
		d.allocation[taskID] = make(map[SemID]int)
	}
	d.allocation[taskID][id] += delta
	if d.allocation[taskID][id] <= 0 {
		delete(d.allocation[taskID], id)
	}
}

func (d *Domain) bumpNeed(taskID int, id SemID, delta int) {
	if d.need[taskID] == nil {
		d.need[taskID] = make(map[SemID]int)
	}
	d.need[taskID][id] += delta
	if d.need[taskID][id] <= 0 {
		delete(d.need[taskID], id)
	}
}

/// Up releases one resource, waking the oldest waiter if any and
/// transferring its need into an allocation.
func (s *Semaphore_t) Up(taskID int) {
	s.mu.Lock()
	s.count++
	var woken int
	haveWoken := false
	if s.count <= 0 && len(s.waiters) > 0 {
		woken = s.waiters[0]
		s.waiters = s.waiters[1:]
		haveWoken = true
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	if haveWoken {
		d := s.domain
		d.mu.Lock()
		d.bumpNeed(woken, s.id, -1)
		d.bumpAllocation(woken, s.id, 1)
		d.mu.Unlock()
	}
}

// wouldDeadlock runs the banker's algorithm over the domain's current
// allocation/need snapshot plus the requesting task's pending need,
// following sys_semaphore_down's reference shape: work starts from
// every semaphore's available count, and tasks finish in any order
// their need is covered by work.
func (d *Domain) wouldDeadlock(requester int, want SemID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	work := make(map[SemID]int, len(d.sems))
	for id, s := range d.sems {
		s.mu.Lock()
		c := s.count
		s.mu.Unlock()
		if c < 0 {
			c = 0
		}
		work[id] = c
	}

	need := make(map[int]map[SemID]int, len(d.need)+1)
	for tid, n := range d.need {
		cp := make(map[SemID]int, len(n))
		for id, c := range n {
			cp[id] = c
		}
		need[tid] = cp
	}
	if need[requester] == nil {
		need[requester] = make(map[SemID]int)
	}
	need[requester][want]++

	finished := make(map[int]bool, len(need))
	for tid := range need {
		finished[tid] = false
	}

	progressed := true
	for progressed {
		progressed = false
		for tid, done := range finished {
			if done {
				continue
			}
			ok := true
			for id, c := range need[tid] {
				if work[id] < c {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			for id, c := range d.allocation[tid] {
				work[id] += c
			}
			finished[tid] = true
			progressed = true
		}
	}

	for _, done := range finished {
		if !done {
			return true
		}
	}
	return false
}

/// Down acquires one resource, blocking until available. When the
/// domain's deadlock detection is enabled, it first runs the banker's
/// algorithm treating this call as the requester's pending need; if
/// granting it could deadlock the domain, it refuses immediately with
/// defs.EDEADLK instead of blocking.
func (s *Semaphore_t) Down(taskID int) defs.Err_t {
	if s.domain.deadlockDetect {
		if s.domain.wouldDeadlock(taskID, s.id) {
			return defs.EDEADLK
		}
	}

	s.mu.Lock()
	s.count--
	wouldBlock := s.count < 0
	if wouldBlock {
		s.waiters = append(s.waiters, taskID)
	}
	s.mu.Unlock()

	if wouldBlock {
		d := s.domain
		d.mu.Lock()
		d.bumpNeed(taskID, s.id, 1)
		d.mu.Unlock()
	}

	s.mu.Lock()
	stillWaiting := wouldBlock
	for stillWaiting {
		s.cond.Wait()
		stillWaiting = false
		for _, w := range s.waiters {
			if w == taskID {
				stillWaiting = true
				break
			}
		}
	}
	s.mu.Unlock()

	d := s.domain
	d.mu.Lock()
	if wouldBlock {
		// Up() already converted our parked need into an allocation
		// once it woke us; nothing left to record here.
	} else {
		d.bumpAllocation(taskID, s.id, 1)
	}
	d.mu.Unlock()
	return 0
}
