package fd

import (
	"os"
	"sync"

	"defs"
	"fs"
	"stat"
)

/// File_i is the uniform operations any open file descriptor supports,
/// whether it backs a disk inode or one of the console streams.
type File_i interface {
	Readable() bool
	Writable() bool
	Read(buf []byte) (int, defs.Err_t)
	Write(buf []byte) (int, defs.Err_t)
	Stat(out *stat.Stat_t) defs.Err_t
	Close() defs.Err_t
}

/// Stdin_t reads from the host console.
type Stdin_t struct{}

func (Stdin_t) Readable() bool { return true }
func (Stdin_t) Writable() bool { return false }
func (Stdin_t) Read(buf []byte) (int, defs.Err_t) {
	n, err := os.Stdin.Read(buf)
	if err != nil && n == 0 {
		return 0, defs.EINVAL
	}
	return n, 0
}
func (Stdin_t) Write(buf []byte) (int, defs.Err_t) { return 0, defs.EINVAL }
func (Stdin_t) Stat(out *stat.Stat_t) defs.Err_t {
	out.Wmode(stat.M_NULL)
	return 0
}
func (Stdin_t) Close() defs.Err_t { return 0 }

/// Stdout_t writes to the host console.
type Stdout_t struct{}

func (Stdout_t) Readable() bool { return false }
func (Stdout_t) Writable() bool { return true }
func (Stdout_t) Read(buf []byte) (int, defs.Err_t) { return 0, defs.EINVAL }
func (Stdout_t) Write(buf []byte) (int, defs.Err_t) {
	n, err := os.Stdout.Write(buf)
	if err != nil {
		return n, defs.EINVAL
	}
	return n, 0
}
func (Stdout_t) Stat(out *stat.Stat_t) defs.Err_t {
	out.Wmode(stat.M_NULL)
	return 0
}
func (Stdout_t) Close() defs.Err_t { return 0 }

/// OSInode_t is a file descriptor opened against an on-disk inode: a
/// cursor plus the permission the file was opened with.
type OSInode_t struct {
	mu     sync.Mutex
	inode  *fs.Inode_t
	offset int
	flags  defs.OpenFlags
}

/// NewOSInode wraps ino as an open file descriptor with the given flags.
func NewOSInode(ino *fs.Inode_t, flags defs.OpenFlags) *OSInode_t {
	return &OSInode_t{inode: ino, flags: flags}
}

func (f *OSInode_t) Readable() bool { return f.flags.Readable() }
func (f *OSInode_t) Writable() bool { return f.flags.Writable() }

func (f *OSInode_t) Read(buf []byte) (int, defs.Err_t) {
	if !f.Readable() {
		return 0, defs.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.inode.ReadAt(f.offset, buf)
	f.offset += n
	return n, 0
}

func (f *OSInode_t) Write(buf []byte) (int, defs.Err_t) {
	if !f.Writable() {
		return 0, defs.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.inode.WriteAt(f.offset, buf)
	f.offset += n
	return n, 0
}

func (f *OSInode_t) Stat(out *stat.Stat_t) defs.Err_t {
	st := f.inode.Stat()
	*out = *st
	return 0
}

func (f *OSInode_t) Close() defs.Err_t { return 0 }

/// Fd_t is a process's table entry: the underlying file plus the
/// close-on-exec bit.
type Fd_t struct {
	File    File_i
	Cloexec bool
}

/// Copyfd duplicates an open descriptor's File reference for dup/fork.
func Copyfd(fd *Fd_t) *Fd_t {
	nfd := &Fd_t{}
	*nfd = *fd
	return nfd
}
