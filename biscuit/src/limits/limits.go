// Package limits tracks system-wide resource caps -- the live task
// count and the filesystem's block budget -- the same atomic
// give/take accounting the teacher's kernel used for its much larger
// set of system limits (vnodes, futexes, sockets, pipes), trimmed to
// the two resources this kernel actually allocates from a shared pool.
package limits

import "sync/atomic"

// Sysatomic_t is a numeric limit that can be atomically given and
// taken from a shared budget.
type Sysatomic_t struct {
	v int64
}

// Syslimit_t tracks system-wide resource limits.
type Syslimit_t struct {
	// Sysprocs bounds the number of simultaneously live tasks.
	Sysprocs Sysatomic_t
	// Blocks bounds the number of blocks a filesystem may claim.
	Blocks Sysatomic_t
}

// Syslimit describes the configured system-wide limits.
var Syslimit = MkSysLimit()

// MkSysLimit returns a pointer to the default set of limits.
func MkSysLimit() *Syslimit_t {
	s := &Syslimit_t{}
	s.Sysprocs.Given(1e4)
	s.Blocks.Given(1 << 20)
	return s
}

// Given increases the limit by n.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64(&s.v, int64(n))
}

// Taken tries to decrement the limit by n, reporting whether the
// budget had room.
func (s *Sysatomic_t) Taken(n uint) bool {
	if atomic.AddInt64(&s.v, -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64(&s.v, int64(n))
	return false
}

// Take decrements the limit by one.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

// Give increments the limit by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}

// Remaining reports the current budget.
func (s *Sysatomic_t) Remaining() int64 {
	return atomic.LoadInt64(&s.v)
}
