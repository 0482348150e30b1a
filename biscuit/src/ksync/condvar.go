package ksync

import "sync"

/// Condvar_t is a condition variable usable with either Mutex_i flavor:
/// Wait releases the caller's mutex and parks until Signal wakes the
/// oldest waiter, then reacquires the mutex before returning.
type Condvar_t struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

/// NewCondvar returns a condvar with no waiters.
func NewCondvar() *Condvar_t {
	return &Condvar_t{}
}

/// Wait atomically releases m and parks the caller; once woken by
/// Signal, it reacquires m before returning, same as the reference
/// implementation's wait(mutex).
func (c *Condvar_t) Wait(m Mutex_i) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	m.Unlock()
	<-ch
	m.Lock()
}

/// Signal wakes the oldest parked waiter, if any; a no-op otherwise.
func (c *Condvar_t) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return
	}
	ch := c.waiters[0]
	c.waiters = c.waiters[1:]
	close(ch)
}
