package sched

import (
	"testing"

	"kernel"
	"mem"
	"proc"
	"vm"
)

func setupKernel(t *testing.T) {
	t.Helper()
	kernel.Init(mem.Ppn_t(0x1000), 8192, []vm.IdentRegion{
		{Start: 0x80200000, End: 0x80400000, Perm: vm.PermR | vm.PermW | vm.PermX},
	})
}

func bareTask(t *testing.T, prio uint64) *proc.TaskControlBlock {
	t.Helper()
	setupKernel(t)
	tcb := proc.NewBare(prio)
	return tcb
}

func TestFetchReturnsMinimumStride(t *testing.T) {
	tm := NewTaskManager()
	low := bareTask(t, 16)
	high := bareTask(t, 16)

	li := low.Lock()
	li.ProcStride = 5
	low.Unlock()
	hi := high.Lock()
	hi.ProcStride = 50
	high.Unlock()

	tm.Add(high)
	tm.Add(low)

	got, ok := tm.Fetch()
	if !ok || got != low {
		t.Fatal("Fetch should return the lower-stride task first")
	}
	got, ok = tm.Fetch()
	if !ok || got != high {
		t.Fatal("Fetch should drain in ascending stride order")
	}
	if _, ok := tm.Fetch(); ok {
		t.Fatal("Fetch on an empty queue should report false")
	}
}

func TestSetPriorityRejectsTwoAndBelow(t *testing.T) {
	task := bareTask(t, 16)
	if SetPriority(task, 2) {
		t.Fatal("prio == 2 must be rejected")
	}
	if SetPriority(task, 1) {
		t.Fatal("prio < 2 must be rejected")
	}
	if !SetPriority(task, 3) {
		t.Fatal("prio == 3 should be accepted")
	}
	inner := task.Lock()
	prio := inner.ProcPrio
	task.Unlock()
	if prio != 3 {
		t.Fatalf("ProcPrio = %d, want 3", prio)
	}
}

// TestStrideRatioApproximatesPriorityRatio drives a prio-16 task
// against a prio-2 task through many scheduling rounds and checks that
// the ratio of how often each runs tracks their priority ratio within
// 10%, the scenario the stride algorithm is supposed to guarantee.
func TestStrideRatioApproximatesPriorityRatio(t *testing.T) {
	setupKernel(t)
	tm := NewTaskManager()
	cpu := NewProcessor(tm)

	hi := proc.NewBare(16)
	lo := proc.NewBare(2)
	tm.Add(hi)
	tm.Add(lo)

	const rounds = 4000
	counts := map[*proc.TaskControlBlock]int{}
	for i := 0; i < rounds; i++ {
		cur, ok := cpu.RunNext()
		if !ok {
			t.Fatal("ready queue unexpectedly empty")
		}
		counts[cur]++
		cpu.Yield()
	}

	ratio := float64(counts[hi]) / float64(counts[lo])
	want := 16.0 / 2.0
	if diff := ratio - want; diff < -want*0.1 || diff > want*0.1 {
		t.Fatalf("run ratio = %.2f, want approx %.2f (+/-10%%)", ratio, want)
	}
}

func TestYieldSkipsNonRunningTask(t *testing.T) {
	setupKernel(t)
	tm := NewTaskManager()
	cpu := NewProcessor(tm)

	task := proc.NewBare(16)
	tm.Add(task)
	cur, ok := cpu.RunNext()
	if !ok || cur != task {
		t.Fatal("expected to run the only ready task")
	}

	inner := task.Lock()
	inner.Status = proc.Zombie
	task.Unlock()

	cpu.Yield()
	if tm.Len() != 0 {
		t.Fatal("a zombie task must not return to the ready queue")
	}
	if cpu.Current() != nil {
		t.Fatal("Yield should uninstall the current task regardless of its status")
	}
}
