// Package diag turns the scheduler's and syscall layer's running
// counters into a pprof profile, so the same tooling that reads a Go
// program's CPU profile can be pointed at a running instance of this
// kernel's task set. Grounded on the teacher's own declared
// github.com/google/pprof dependency, which the teacher uses only to
// build its patched Go compiler's toolchain; here it backs a genuine
// runtime diagnostic instead.
package diag

import (
	"io"
	"sort"
	"sync/atomic"

	"github.com/google/pprof/profile"

	"proc"
	"sched"
)

// Counter_t is an atomically updated invocation counter, the portable
// replacement for the teacher's runtime.Rdtsc-backed Counter_t (a
// builtin only its patched compiler toolchain provides).
type Counter_t int64

// Inc increments the counter.
func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(c), 1)
}

// Load returns the counter's current value.
func (c *Counter_t) Load() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// SyscallProfile builds a pprof profile with one sample per (pid,
// syscall number) pair observed across tasks, valued at that pair's
// invocation count.
func SyscallProfile(tasks []*proc.TaskControlBlock) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "syscalls", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "syscalls", Unit: "count"},
		Period:     1,
	}

	funcs := map[string]*profile.Function{}
	locs := map[string]*profile.Location{}
	var nextID uint64

	locFor := func(name string) *profile.Location {
		if l, ok := locs[name]; ok {
			return l
		}
		nextID++
		fn := funcs[name]
		if fn == nil {
			fn = &profile.Function{ID: nextID, Name: name, SystemName: name}
			funcs[name] = fn
			p.Function = append(p.Function, fn)
		}
		nextID++
		loc := &profile.Location{ID: nextID, Line: []profile.Line{{Function: fn, Line: 1}}}
		locs[name] = loc
		p.Location = append(p.Location, loc)
		return loc
	}

	for _, t := range tasks {
		info := t.Info()
		nums := make([]int, 0, len(info.SyscallCnt))
		for num := range info.SyscallCnt {
			nums = append(nums, num)
		}
		sort.Ints(nums)
		for _, num := range nums {
			cnt := info.SyscallCnt[num]
			name := syscallLabel(t.Pid, num)
			p.Sample = append(p.Sample, &profile.Sample{
				Location: []*profile.Location{locFor(name)},
				Value:    []int64{int64(cnt)},
			})
		}
	}
	return p
}

func syscallLabel(pid, num int) string {
	return "pid=" + itoa(pid) + " syscall=" + itoa(num)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// DumpSyscallProfile writes the syscall-invocation profile for tasks
// to w in pprof's gzip-compressed wire format.
func DumpSyscallProfile(w io.Writer, tasks []*proc.TaskControlBlock) error {
	return SyscallProfile(tasks).Write(w)
}

// ReadyQueueDepth reports how many tasks are presently runnable on
// the default scheduler, a single gauge sample useful for spotting
// runaway task creation.
func ReadyQueueDepth() int {
	return sched.DefaultManager().Len()
}

// CPUTimeProfile builds a pprof profile with one sample per task,
// valued at that task's accumulated scheduled CPU time in
// nanoseconds -- the diagnostic surface for the accounting the
// scheduler feeds via proc.TaskControlBlock.CPUTimeNanos.
func CPUTimeProfile(tasks []*proc.TaskControlBlock) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "cpu", Unit: "nanoseconds"}},
		PeriodType: &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:     1,
	}

	var nextID uint64
	for _, t := range tasks {
		nextID++
		fn := &profile.Function{ID: nextID, Name: "pid=" + itoa(t.Pid)}
		p.Function = append(p.Function, fn)
		nextID++
		loc := &profile.Location{ID: nextID, Line: []profile.Line{{Function: fn, Line: 1}}}
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{t.CPUTimeNanos()},
		})
	}
	return p
}
