package diag

import (
	"bytes"
	"testing"
	"time"

	"kernel"
	"mem"
	"proc"
	"sched"
	"vm"
)

func setupKernel(t *testing.T) {
	t.Helper()
	kernel.Init(mem.Ppn_t(0x1000), 4096, []vm.IdentRegion{
		{Start: 0x80200000, End: 0x80400000, Perm: vm.PermR | vm.PermW | vm.PermX},
	})
}

func TestSyscallProfileCountsPerTaskPerNumber(t *testing.T) {
	setupKernel(t)
	task := proc.NewBare(16)
	task.RecordSyscall(64)
	task.RecordSyscall(64)
	task.RecordSyscall(93)

	p := SyscallProfile([]*proc.TaskControlBlock{task})
	if len(p.Sample) != 2 {
		t.Fatalf("got %d samples, want 2", len(p.Sample))
	}

	var total int64
	for _, s := range p.Sample {
		total += s.Value[0]
	}
	if total != 3 {
		t.Fatalf("total invocation count = %d, want 3", total)
	}
}

func TestDumpSyscallProfileWritesGzippedPprofFormat(t *testing.T) {
	setupKernel(t)
	task := proc.NewBare(16)
	task.RecordSyscall(64)

	var buf bytes.Buffer
	if err := DumpSyscallProfile(&buf, []*proc.TaskControlBlock{task}); err != nil {
		t.Fatalf("DumpSyscallProfile: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty profile output")
	}
}

func TestCPUTimeProfileReflectsScheduledQuanta(t *testing.T) {
	setupKernel(t)
	tm := sched.NewTaskManager()
	task := proc.NewBare(16)
	tm.Add(task)
	processor := sched.NewProcessor(tm)

	got, ok := processor.RunNext()
	if !ok || got != task {
		t.Fatal("RunNext should have installed the only ready task")
	}
	time.Sleep(time.Millisecond)
	processor.Yield()

	p := CPUTimeProfile([]*proc.TaskControlBlock{task})
	if len(p.Sample) != 1 || p.Sample[0].Value[0] <= 0 {
		t.Fatalf("expected a positive CPU time sample, got %+v", p.Sample)
	}
}

func TestReadyQueueDepthReflectsAddedTasks(t *testing.T) {
	setupKernel(t)
	before := ReadyQueueDepth()
	sched.AddTask(proc.NewBare(16))
	if got := ReadyQueueDepth(); got != before+1 {
		t.Fatalf("ready queue depth = %d, want %d", got, before+1)
	}
}
