package fs

import (
	"stat"
)

/// Inode_t is an in-memory handle over a disk inode: its location, a
/// shared reference to the filesystem, and its own inode number. Every
/// externally visible operation holds the filesystem's single lock for
/// its whole duration, serializing all on-disk mutation.
type Inode_t struct {
	fs          *FileSystem_t
	InodeID     uint32
	blockID     int
	blockOffset int
}

func (ino *Inode_t) readDiskInodeLocked(f func(*DiskInode_t)) {
	e := ino.fs.Cache.GetBlockCache(ino.blockID, ino.fs.Dev)
	e.Read(ino.blockOffset, func(buf []byte) {
		var di DiskInode_t
		copy(di.raw[:], buf[:DISK_INODE_SIZE])
		f(&di)
	})
	ino.fs.Cache.Release(e)
}

func (ino *Inode_t) modifyDiskInodeLocked(f func(*DiskInode_t)) {
	e := ino.fs.Cache.GetBlockCache(ino.blockID, ino.fs.Dev)
	e.Modify(ino.blockOffset, func(buf []byte) {
		var di DiskInode_t
		copy(di.raw[:], buf[:DISK_INODE_SIZE])
		f(&di)
		copy(buf[:DISK_INODE_SIZE], di.raw[:])
	})
	ino.fs.Cache.Release(e)
}

func (ino *Inode_t) readDirentsLocked() []DirEntry_t {
	var size uint32
	ino.readDiskInodeLocked(func(di *DiskInode_t) { size = di.Size() })
	n := int(size) / DIRENT_SIZE
	ents := make([]DirEntry_t, 0, n)
	var di DiskInode_t
	ino.readDiskInodeLocked(func(d *DiskInode_t) { di = *d })
	buf := make([]byte, DIRENT_SIZE)
	for i := 0; i < n; i++ {
		di.ReadAt(i*DIRENT_SIZE, buf, ino.fs.Cache, ino.fs.Dev)
		ents = append(ents, decodeDirent(buf))
	}
	return ents
}

func (ino *Inode_t) findInodeIDLocked(name string) (uint32, bool) {
	for _, e := range ino.readDirentsLocked() {
		if e.Name == name {
			return e.Ino, true
		}
	}
	return 0, false
}

/// Find scans this directory's entries for name and returns a fresh
/// handle resolved to its inode, if present.
func (ino *Inode_t) Find(name string) (*Inode_t, bool) {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	id, ok := ino.findInodeIDLocked(name)
	if !ok {
		return nil, false
	}
	return ino.fs.newInodeHandleLocked(id), true
}

func (ino *Inode_t) increaseSizeLocked(newSize uint32, di *DiskInode_t) {
	if newSize <= di.Size() {
		return
	}
	need := di.BlocksNumNeeded(newSize)
	blocks := make([]uint32, 0, need)
	for i := 0; i < need; i++ {
		b, ok := ino.fs.allocDataLocked()
		if !ok {
			panic("fs: out of data blocks growing inode")
		}
		blocks = append(blocks, b)
	}
	di.IncreaseSize(newSize, blocks, ino.fs.Cache, ino.fs.Dev)
}

func (ino *Inode_t) appendDirentLocked(e DirEntry_t) {
	var di DiskInode_t
	ino.readDiskInodeLocked(func(d *DiskInode_t) { di = *d })
	offset := int(di.Size())
	ino.modifyDiskInodeLocked(func(d *DiskInode_t) {
		ino.increaseSizeLocked(uint32(offset+DIRENT_SIZE), d)
		buf := encodeDirent(e)
		d.WriteAt(offset, buf[:], ino.fs.Cache, ino.fs.Dev)
	})
}

/// Create allocates a new File inode and links it into this directory as
/// name; fails if name already exists.
func (ino *Inode_t) Create(name string) (*Inode_t, bool) {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	if _, ok := ino.findInodeIDLocked(name); ok {
		return nil, false
	}
	id, ok := ino.fs.allocInodeLocked()
	if !ok {
		return nil, false
	}
	child := ino.fs.newInodeHandleLocked(id)
	child.modifyDiskInodeLocked(func(di *DiskInode_t) { di.InitDiskInode(TypeFile) })
	ino.appendDirentLocked(DirEntry_t{Name: name, Ino: id})
	ino.fs.Cache.SyncAll()
	return child, true
}

/// Ls lists this directory's entry names.
func (ino *Inode_t) Ls() []string {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	ents := ino.readDirentsLocked()
	names := make([]string, len(ents))
	for i, e := range ents {
		names[i] = e.Name
	}
	return names
}

/// ReadAt copies into buf from this inode's data starting at offset,
/// returning the number of bytes copied.
func (ino *Inode_t) ReadAt(offset int, buf []byte) int {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	var n int
	var di DiskInode_t
	ino.readDiskInodeLocked(func(d *DiskInode_t) { di = *d })
	n = di.ReadAt(offset, buf, ino.fs.Cache, ino.fs.Dev)
	return n
}

/// WriteAt writes buf into this inode's data at offset, growing the file
/// via the data bitmap as needed, and returns the number of bytes
/// written. Always syncs the cache before returning.
func (ino *Inode_t) WriteAt(offset int, buf []byte) int {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	var n int
	ino.modifyDiskInodeLocked(func(d *DiskInode_t) {
		ino.increaseSizeLocked(uint32(offset+len(buf)), d)
		n = d.WriteAt(offset, buf, ino.fs.Cache, ino.fs.Dev)
	})
	ino.fs.Cache.SyncAll()
	return n
}

/// Clear truncates this inode to zero length, freeing every data block;
/// it does not free the inode itself.
func (ino *Inode_t) Clear() {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	ino.modifyDiskInodeLocked(func(d *DiskInode_t) {
		freed := d.ClearSize(ino.fs.Cache, ino.fs.Dev)
		for _, b := range freed {
			ino.fs.deallocDataLocked(b)
		}
	})
}

/// Link adds newName in this directory pointing at the same inode as
/// oldName and bumps its hard-link count. Returns false if newName
/// already exists or oldName does not.
func (ino *Inode_t) Link(oldName, newName string) bool {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	if _, ok := ino.findInodeIDLocked(newName); ok {
		return false
	}
	id, ok := ino.findInodeIDLocked(oldName)
	if !ok {
		return false
	}
	target := ino.fs.newInodeHandleLocked(id)
	target.modifyDiskInodeLocked(func(d *DiskInode_t) {
		d.setNlink(d.Nlink() + 1)
	})
	ino.appendDirentLocked(DirEntry_t{Name: newName, Ino: id})
	ino.fs.Cache.SyncAll()
	return true
}

/// Unlink removes name from this directory, decrementing the target's
/// link count; when it reaches zero, frees the target's data blocks and
/// its inode-bitmap bit. Returns 0 on success, -1 if name does not exist.
func (ino *Inode_t) Unlink(name string) int {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	ents := ino.readDirentsLocked()
	idx := -1
	var id uint32
	for i, e := range ents {
		if e.Name == name {
			idx, id = i, e.Ino
			break
		}
	}
	if idx == -1 {
		return -1
	}
	// compact: overwrite the removed slot with the last entry, then
	// shrink by one dirent's worth.
	last := len(ents) - 1
	ents[idx] = ents[last]
	var di DiskInode_t
	ino.readDiskInodeLocked(func(d *DiskInode_t) { di = *d })
	ino.modifyDiskInodeLocked(func(d *DiskInode_t) {
		if idx != last {
			buf := encodeDirent(ents[idx])
			d.WriteAt(idx*DIRENT_SIZE, buf[:], ino.fs.Cache, ino.fs.Dev)
		}
	})
	newSize := uint32(last * DIRENT_SIZE)
	_ = di
	ino.modifyDiskInodeLocked(func(d *DiskInode_t) {
		freed := shrinkDirSize(d, newSize, ino.fs.Cache, ino.fs.Dev)
		for _, b := range freed {
			ino.fs.deallocDataLocked(b)
		}
	})

	target := ino.fs.newInodeHandleLocked(id)
	var nlinkAfter uint32
	target.modifyDiskInodeLocked(func(d *DiskInode_t) {
		nlinkAfter = d.Nlink() - 1
		d.setNlink(nlinkAfter)
	})
	if nlinkAfter == 0 {
		target.modifyDiskInodeLocked(func(d *DiskInode_t) {
			freed := d.ClearSize(ino.fs.Cache, ino.fs.Dev)
			for _, b := range freed {
				ino.fs.deallocDataLocked(b)
			}
		})
		ino.fs.deallocInodeLocked(id)
	}
	ino.fs.Cache.SyncAll()
	return 0
}

// shrinkDirSize drops a directory's size down to newSize, freeing any data
// blocks that fall entirely past the new end. Directory shrink is always
// by whole dirents and never crosses into index-block territory in
// practice, but the general ClearSize+IncreaseSize dance is avoided here
// in favor of directly trimming unused trailing blocks.
func shrinkDirSize(d *DiskInode_t, newSize uint32, cache *BlockCache_t, dev BlockDevice_i) []uint32 {
	oldBlocks := dataBlocksFor(d.Size())
	newBlocks := dataBlocksFor(newSize)
	var freed []uint32
	for i := newBlocks; i < oldBlocks; i++ {
		if i < DIRECT_COUNT {
			freed = append(freed, d.direct(i))
			d.setDirect(i, 0)
		}
	}
	d.setSize(newSize)
	return freed
}

/// Stat returns this inode's {dev, ino, mode, nlink}.
func (ino *Inode_t) Stat() *stat.Stat_t {
	ino.fs.mu.Lock()
	defer ino.fs.mu.Unlock()
	st := &stat.Stat_t{}
	st.Wdev(0)
	st.Wino(uint(ino.InodeID))
	ino.readDiskInodeLocked(func(d *DiskInode_t) {
		if d.Type() == TypeDirectory {
			st.Wmode(stat.M_DIR)
		} else {
			st.Wmode(stat.M_FILE)
		}
		st.Wnlink(uint(d.Nlink()))
	})
	return st
}
