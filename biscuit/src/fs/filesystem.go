package fs

import (
	"fmt"
	"sync"

	"limits"
)

/// FileSystem_t is the formatted layout over a block device: superblock,
/// inode bitmap/area, and data bitmap/area. Every VFS inode handle carved
/// from the same FileSystem_t shares its single coarse lock, per the
/// filesystem-wide single-writer discipline.
type FileSystem_t struct {
	mu sync.Mutex

	Dev   BlockDevice_i
	Cache *BlockCache_t

	sb Superblock_t

	inodeBitmap Bitmap_t
	dataBitmap  Bitmap_t

	inodeAreaStart int
	dataAreaStart  int
}

/// Create formats a fresh filesystem of totalBlocks blocks: the
/// superblock, inodeBitmapBlocks inode-bitmap blocks, an inode area of
/// inodeBitmapBlocks*4096/DISK_INODES_PER_BLOCK blocks (rounded up),
/// dataBitmapBlocks data-bitmap blocks as given, and a data area made of
/// every block left after those. The root directory inode (id 0) is
/// created empty.
func Create(dev BlockDevice_i, totalBlocks, inodeBitmapBlocks, dataBitmapBlocks int) *FileSystem_t {
	if !limits.Syslimit.Blocks.Taken(uint(totalBlocks)) {
		panic(fmt.Sprintf("fs: requested %d blocks exceeds the system block budget", totalBlocks))
	}

	cache := NewBlockCache()
	inodeAreaStart := 1 + inodeBitmapBlocks
	inodeBitmap := Bitmap_t{StartBlock: 1, Blocks: inodeBitmapBlocks}
	maxInodes := inodeBitmap.Maximum()
	inodeAreaBlocks := (maxInodes + DISK_INODES_PER_BLOCK - 1) / DISK_INODES_PER_BLOCK

	dataBitmapStart := inodeAreaStart + inodeAreaBlocks
	dataBitmap := Bitmap_t{StartBlock: dataBitmapStart, Blocks: dataBitmapBlocks}
	dataAreaStart := dataBitmapStart + dataBitmapBlocks
	dataAreaBlocks := totalBlocks - dataAreaStart

	fs := &FileSystem_t{
		Dev:            dev,
		Cache:          cache,
		inodeBitmap:    inodeBitmap,
		dataBitmap:     dataBitmap,
		inodeAreaStart: inodeAreaStart,
		dataAreaStart:  dataAreaStart,
	}
	fs.sb = Superblock_t{
		Magic:           MAGIC,
		TotalBlocks:     uint32(totalBlocks),
		InodeBitmapBlks: uint32(inodeBitmapBlocks),
		InodeAreaBlks:   uint32(inodeAreaBlocks),
		DataBitmapBlks:  uint32(dataBitmapBlocks),
		DataAreaBlks:    uint32(dataAreaBlocks),
	}

	// zero every managed block so bitmaps start clear
	for b := 0; b < dataAreaStart; b++ {
		e := cache.GetBlockCache(b, dev)
		e.Modify(0, func(buf []byte) {
			for i := range buf {
				buf[i] = 0
			}
		})
		cache.Release(e)
	}

	sbE := cache.GetBlockCache(0, dev)
	sbE.Modify(0, func(buf []byte) { fs.sb.Encode(buf) })
	cache.Release(sbE)

	id, ok := fs.allocInodeLocked()
	if !ok || id != 0 {
		panic("fs: root inode must be id 0")
	}
	root := fs.newInodeHandleLocked(0)
	root.modifyDiskInodeLocked(func(di *DiskInode_t) { di.InitDiskInode(TypeDirectory) })

	cache.SyncAll()
	return fs
}

/// Open reads block 0 and validates the superblock, returning an error if
/// the magic does not match.
func Open(dev BlockDevice_i) (*FileSystem_t, error) {
	cache := NewBlockCache()
	var sb *Superblock_t
	var ok bool
	e := cache.GetBlockCache(0, dev)
	e.Read(0, func(buf []byte) { sb, ok = DecodeSuperblock(buf) })
	cache.Release(e)
	if !ok {
		return nil, fmt.Errorf("fs: bad superblock magic")
	}
	inodeAreaStart := 1 + int(sb.InodeBitmapBlks)
	dataBitmapStart := inodeAreaStart + int(sb.InodeAreaBlks)
	dataAreaStart := dataBitmapStart + int(sb.DataBitmapBlks)
	return &FileSystem_t{
		Dev:            dev,
		Cache:          cache,
		sb:             *sb,
		inodeBitmap:    Bitmap_t{StartBlock: 1, Blocks: int(sb.InodeBitmapBlks)},
		dataBitmap:     Bitmap_t{StartBlock: dataBitmapStart, Blocks: int(sb.DataBitmapBlks)},
		inodeAreaStart: inodeAreaStart,
		dataAreaStart:  dataAreaStart,
	}, nil
}

/// RootInode returns a fresh handle onto inode 0, the root directory.
func (fs *FileSystem_t) RootInode() *Inode_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.newInodeHandleLocked(0)
}

func (fs *FileSystem_t) diskInodePos(id uint32) (blockID, offset int) {
	blockID = fs.inodeAreaStart + int(id)*DISK_INODE_SIZE/BLOCK_SZ
	offset = int(id) * DISK_INODE_SIZE % BLOCK_SZ
	return
}

func (fs *FileSystem_t) newInodeHandleLocked(id uint32) *Inode_t {
	blockID, offset := fs.diskInodePos(id)
	return &Inode_t{fs: fs, InodeID: id, blockID: blockID, blockOffset: offset}
}

func (fs *FileSystem_t) allocInodeLocked() (uint32, bool) {
	bit, ok := fs.inodeBitmap.Alloc(fs.Cache, fs.Dev)
	return uint32(bit), ok
}

func (fs *FileSystem_t) allocDataLocked() (uint32, bool) {
	bit, ok := fs.dataBitmap.Alloc(fs.Cache, fs.Dev)
	if !ok {
		return 0, false
	}
	return uint32(fs.dataAreaStart + bit), true
}

func (fs *FileSystem_t) deallocDataLocked(block uint32) {
	bit := int(block) - fs.dataAreaStart
	fs.dataBitmap.Dealloc(fs.Cache, fs.Dev, bit)
}

func (fs *FileSystem_t) deallocInodeLocked(id uint32) {
	fs.inodeBitmap.Dealloc(fs.Cache, fs.Dev, int(id))
}

/// SyncAll flushes every dirty cache entry to the device.
func (fs *FileSystem_t) SyncAll() {
	fs.Cache.SyncAll()
}
