package syscall

import (
	"sync"

	"fs"
)

// The hosted build keeps one filesystem mounted for the whole machine,
// reachable from every task's fd table through a flat root directory --
// the fd package dropped the source's path-canonicalization machinery
// since nothing in this port needs nested directories. InitFS is called
// once at boot; open/linkat/unlinkat below operate directly on its root
// inode.
var (
	fsOnce sync.Once
	rootFS *fs.FileSystem_t
)

/// InitFS formats or opens dev as the machine's filesystem. Safe to
/// call only once; later calls are no-ops.
func InitFS(dev fs.BlockDevice_i, totalBlocks, inodeBitmapBlocks, dataBitmapBlocks int, format bool) error {
	var err error
	fsOnce.Do(func() {
		if format {
			rootFS = fs.Create(dev, totalBlocks, inodeBitmapBlocks, dataBitmapBlocks)
			return
		}
		rootFS, err = fs.Open(dev)
	})
	return err
}

func rootDir() *fs.Inode_t {
	return rootFS.RootInode()
}
