package sched

import "proc"

// The machine runs one ready queue and one processor; this package's
// tests build their own pair instead, since nothing about TaskManager or
// Processor requires a singleton. These package-level defaults exist
// only for the syscall dispatcher and any future boot sequence that
// need a single shared scheduler to hand tasks to, mirroring the
// source's own lazy_static TASK_MANAGER/PROCESSOR plus its free
// add_task/fetch_task functions.
var (
	defaultManager   = NewTaskManager()
	defaultProcessor = NewProcessor(defaultManager)
)

/// AddTask enqueues t on the default ready queue.
func AddTask(t *proc.TaskControlBlock) { defaultManager.Add(t) }

/// FetchTask pops the minimum-stride task off the default ready queue.
func FetchTask() (*proc.TaskControlBlock, bool) { return defaultManager.Fetch() }

/// Requeue folds a Running task back into the default ready queue,
/// advancing its stride; see (*TaskManager).Requeue.
func Requeue(t *proc.TaskControlBlock) { defaultManager.Requeue(t) }

/// DefaultManager returns the shared ready queue.
func DefaultManager() *TaskManager { return defaultManager }

/// DefaultProcessor returns the shared single-hart processor.
func DefaultProcessor() *Processor { return defaultProcessor }
