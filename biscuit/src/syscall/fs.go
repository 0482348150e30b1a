package syscall

import (
	"defs"
	"fd"
	"proc"
	"stat"
)

const maxPathLen = 256

func withFd(t *proc.TaskControlBlock, fdnum int, body func(*fd.Fd_t) int64) int64 {
	inner := t.Lock()
	defer t.Unlock()
	if fdnum < 0 || fdnum >= len(inner.FdTable) || inner.FdTable[fdnum] == nil {
		return int64(defs.EINVAL)
	}
	return body(inner.FdTable[fdnum])
}

func sysWrite(t *proc.TaskControlBlock, fdnum int, bufVA uint64, length int) int64 {
	buf := make([]byte, length)
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	if !ms.CopyIn(vaOf(bufVA), buf) {
		return int64(defs.EINVAL)
	}
	return withFd(t, fdnum, func(f *fd.Fd_t) int64 {
		if !f.File.Writable() {
			return int64(defs.EINVAL)
		}
		n, err := f.File.Write(buf)
		if err != 0 {
			return int64(err)
		}
		return int64(n)
	})
}

func sysRead(t *proc.TaskControlBlock, fdnum int, bufVA uint64, length int) int64 {
	buf := make([]byte, length)
	n := withFd(t, fdnum, func(f *fd.Fd_t) int64 {
		if !f.File.Readable() {
			return int64(defs.EINVAL)
		}
		got, err := f.File.Read(buf)
		if err != 0 {
			return int64(err)
		}
		return int64(got)
	})
	if n < 0 {
		return n
	}
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	if !ms.CopyOut(vaOf(bufVA), buf[:n]) {
		return int64(defs.EINVAL)
	}
	return n
}

func sysOpen(t *proc.TaskControlBlock, pathVA uint64, flags defs.OpenFlags) int64 {
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	name, ok := ms.CopyInString(vaOf(pathVA), maxPathLen)
	if !ok {
		return int64(defs.EINVAL)
	}

	dir := rootDir()
	ino, found := dir.Find(name)
	if !found {
		if flags&defs.O_CREATE == 0 {
			return int64(defs.ENOENT)
		}
		ino, found = dir.Create(name)
		if !found {
			return int64(defs.EEXIST)
		}
	} else if flags&defs.O_TRUNC != 0 {
		ino.Clear()
	}

	f := &fd.Fd_t{File: fd.NewOSInode(ino, flags)}
	t.Lock()
	defer t.Unlock()
	for i, slot := range inner.FdTable {
		if slot == nil {
			inner.FdTable[i] = f
			return int64(i)
		}
	}
	inner.FdTable = append(inner.FdTable, f)
	return int64(len(inner.FdTable) - 1)
}

func sysClose(t *proc.TaskControlBlock, fdnum int) int64 {
	return withFd(t, fdnum, func(f *fd.Fd_t) int64 {
		err := f.File.Close()
		inner := t.Inner
		inner.FdTable[fdnum] = nil
		return int64(err)
	})
}

func sysFstat(t *proc.TaskControlBlock, fdnum int, outVA uint64) int64 {
	var st stat.Stat_t
	res := withFd(t, fdnum, func(f *fd.Fd_t) int64 {
		return int64(f.File.Stat(&st))
	})
	if res != 0 {
		return res
	}
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	buf := st.Bytes()
	if !ms.CopyOut(vaOf(outVA), buf) {
		return int64(defs.EINVAL)
	}
	return 0
}

func sysLinkat(t *proc.TaskControlBlock, oldVA, newVA uint64) int64 {
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	oldName, ok1 := ms.CopyInString(vaOf(oldVA), maxPathLen)
	newName, ok2 := ms.CopyInString(vaOf(newVA), maxPathLen)
	if !ok1 || !ok2 {
		return int64(defs.EINVAL)
	}
	if !rootDir().Link(oldName, newName) {
		return int64(defs.ENOENT)
	}
	return 0
}

func sysUnlinkat(t *proc.TaskControlBlock, pathVA uint64) int64 {
	inner := t.Lock()
	ms := inner.MemorySet
	t.Unlock()
	name, ok := ms.CopyInString(vaOf(pathVA), maxPathLen)
	if !ok {
		return int64(defs.EINVAL)
	}
	return int64(rootDir().Unlink(name))
}
