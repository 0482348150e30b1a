package proc

import (
	"sync"

	"kernel"
	"limits"
)

// pidAllocator hands out small integers, recycling released ones --
// the same stack-based free-list shape as mem.Physmem_t's frame
// allocator, just over pids instead of physical frames. Every
// successful alloc takes one slot from limits.Syslimit.Sysprocs;
// dealloc gives it back, so the live task count can never exceed the
// configured system-wide cap.
type pidAllocator struct {
	mu       sync.Mutex
	next     int
	recycled []int
}

var pids = &pidAllocator{}

func (a *pidAllocator) alloc() int {
	if !limits.Syslimit.Sysprocs.Take() {
		kernel.Fatalf("proc: system process limit exceeded")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.recycled); n > 0 {
		pid := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return pid
	}
	pid := a.next
	a.next++
	return pid
}

func (a *pidAllocator) dealloc(pid int) {
	limits.Syslimit.Sysprocs.Give()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recycled = append(a.recycled, pid)
}
