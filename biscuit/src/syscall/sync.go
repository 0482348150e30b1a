package syscall

import "proc"

func sysMutexCreate(t *proc.TaskControlBlock, blocking bool) int64 {
	return int64(t.CreateMutex(blocking))
}
