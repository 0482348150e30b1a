package defs

import "fmt"

/// Err_t is a negative-valued kernel error code. Zero and positive values
/// are never errors; syscall translators return them as-is on success.
type Err_t int

/// Rnerror returns errno as a negative int, the convention syscall
/// translators hand back to user space.
func (e Err_t) Rnerror() int {
	return int(e)
}

func (e Err_t) Error() string {
	if s, ok := errstrings[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int(e))
}

const (
	// 0 is not an error; it is the success sentinel some calls share with
	// Err_t's zero value.
	EINVAL     Err_t = -1  /// bad argument (alignment, flag bits, range)
	ENOENT     Err_t = -2  /// no such fd/inode/child
	EEXIST     Err_t = -3  /// name already exists
	ENOMEM     Err_t = -4  /// no free frames/inodes/data blocks
	ECHILDWAIT Err_t = -2  /// waitpid: no zombie child yet ("child alive")
	ECHILD     Err_t = -1  /// waitpid: no matching child at all
	EDEADLK    Err_t = -0xDEAD /// banker's-algorithm rejection
	ECORRUPT   Err_t = -5  /// bitmap/inode consistency assertion failed
	ELINK      Err_t = -6  /// link target missing or not permitted
)

var errstrings = map[Err_t]string{
	EINVAL:   "invalid argument",
	ENOENT:   "no such entry",
	EEXIST:   "already exists",
	ENOMEM:   "out of memory",
	EDEADLK:  "would deadlock",
	ECORRUPT: "on-disk structure corrupt",
	ELINK:    "link not permitted",
}
