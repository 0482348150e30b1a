package fs

import "util"

const (
	DIRECT_COUNT    = 28
	INDIRECT1_BOUND = DIRECT_COUNT + blockIDsPerBlock
	blockIDsPerBlock = BLOCK_SZ / 4 // 128 uint32 block ids per index block
)

/// DiskInodeType distinguishes a plain file from a directory.
type DiskInodeType uint8

const (
	TypeFile DiskInodeType = iota
	TypeDirectory
)

/// DISK_INODE_SIZE is the fixed on-disk record size; DISK_INODES_PER_BLOCK
/// records share a block.
const DISK_INODE_SIZE = 128
const DISK_INODES_PER_BLOCK = BLOCK_SZ / DISK_INODE_SIZE

// wire offsets within a DISK_INODE_SIZE record
const (
	offSize      = 0
	offDirect    = 4
	offIndirect1 = offDirect + DIRECT_COUNT*4
	offIndirect2 = offIndirect1 + 4
	offType      = offIndirect2 + 4
	offNlink     = offType + 1
)

/// DiskInode_t is the fixed-size on-disk inode record: byte length,
/// direct/indirect/double-indirect block pointers, type tag, and hard-link
/// count.
type DiskInode_t struct {
	raw [DISK_INODE_SIZE]byte
}

func (d *DiskInode_t) Size() uint32      { return uint32(util.Readn(d.raw[:], 4, offSize)) }
func (d *DiskInode_t) setSize(v uint32)  { util.Writen(d.raw[:], 4, offSize, int(v)) }
func (d *DiskInode_t) Type() DiskInodeType {
	return DiskInodeType(d.raw[offType])
}
func (d *DiskInode_t) Nlink() uint32 { return uint32(util.Readn(d.raw[:], 2, offNlink)) }
func (d *DiskInode_t) setNlink(v uint32) { util.Writen(d.raw[:], 2, offNlink, int(v)) }

func (d *DiskInode_t) direct(i int) uint32 {
	return uint32(util.Readn(d.raw[:], 4, offDirect+i*4))
}
func (d *DiskInode_t) setDirect(i int, v uint32) {
	util.Writen(d.raw[:], 4, offDirect+i*4, int(v))
}
func (d *DiskInode_t) indirect1() uint32     { return uint32(util.Readn(d.raw[:], 4, offIndirect1)) }
func (d *DiskInode_t) setIndirect1(v uint32) { util.Writen(d.raw[:], 4, offIndirect1, int(v)) }
func (d *DiskInode_t) indirect2() uint32     { return uint32(util.Readn(d.raw[:], 4, offIndirect2)) }
func (d *DiskInode_t) setIndirect2(v uint32) { util.Writen(d.raw[:], 4, offIndirect2, int(v)) }

/// InitDiskInode resets this record to an empty file/directory of the
/// given type.
func (d *DiskInode_t) InitDiskInode(typ DiskInodeType) {
	*d = DiskInode_t{}
	d.raw[offType] = byte(typ)
	d.setNlink(1)
}

func totalBlocksFor(size uint32) int {
	dataBlocks := (int(size) + BLOCK_SZ - 1) / BLOCK_SZ
	total := dataBlocks
	if dataBlocks > DIRECT_COUNT {
		total++ // indirect1 index block
	}
	if dataBlocks > INDIRECT1_BOUND {
		extra := dataBlocks - INDIRECT1_BOUND
		idx2Blocks := (extra + blockIDsPerBlock - 1) / blockIDsPerBlock
		total += 1 + idx2Blocks // indirect2 index block + its children
	}
	return total
}

/// TotalBlocks returns the number of blocks (data + index blocks) needed
/// to hold size bytes.
func (d *DiskInode_t) TotalBlocks() int {
	return totalBlocksFor(d.Size())
}

/// BlocksNumNeeded reports how many additional blocks growing to newSize
/// requires.
func (d *DiskInode_t) BlocksNumNeeded(newSize uint32) int {
	return totalBlocksFor(newSize) - d.TotalBlocks()
}

func dataBlocksFor(size uint32) int {
	return (int(size) + BLOCK_SZ - 1) / BLOCK_SZ
}

// getBlockID resolves the data-block index (0-based, within the file) to
// its on-disk block number, consulting index blocks via the cache as
// needed.
func (d *DiskInode_t) getBlockID(idx int, cache *BlockCache_t, dev BlockDevice_i) uint32 {
	switch {
	case idx < DIRECT_COUNT:
		return d.direct(idx)
	case idx < INDIRECT1_BOUND:
		var id uint32
		e := cache.GetBlockCache(int(d.indirect1()), dev)
		e.Read(0, func(buf []byte) {
			id = uint32(util.Readn(buf, 4, (idx-DIRECT_COUNT)*4))
		})
		cache.Release(e)
		return id
	default:
		idx -= INDIRECT1_BOUND
		i1 := idx / blockIDsPerBlock
		i2 := idx % blockIDsPerBlock
		var mid uint32
		e := cache.GetBlockCache(int(d.indirect2()), dev)
		e.Read(0, func(buf []byte) {
			mid = uint32(util.Readn(buf, 4, i1*4))
		})
		cache.Release(e)
		var id uint32
		e2 := cache.GetBlockCache(int(mid), dev)
		e2.Read(0, func(buf []byte) {
			id = uint32(util.Readn(buf, 4, i2*4))
		})
		cache.Release(e2)
		return id
	}
}

/// IncreaseSize grows the inode to newSize, consuming freshly allocated
/// data blocks from newBlocks (installing them in the appropriate direct,
/// indirect, or double-indirect slots, allocating index blocks lazily from
/// the same pool when a new one is first needed).
func (d *DiskInode_t) IncreaseSize(newSize uint32, newBlocks []uint32, cache *BlockCache_t, dev BlockDevice_i) {
	curBlocks := dataBlocksFor(d.Size())
	newBlockCount := dataBlocksFor(newSize)
	pool := newBlocks
	take := func() uint32 {
		b := pool[0]
		pool = pool[1:]
		return b
	}

	for curBlocks < newBlockCount && curBlocks < DIRECT_COUNT {
		d.setDirect(curBlocks, take())
		curBlocks++
	}
	if curBlocks >= newBlockCount {
		d.setSize(newSize)
		return
	}
	if curBlocks == DIRECT_COUNT {
		d.setIndirect1(take())
	}
	curBlocks -= DIRECT_COUNT
	newBlockCount1 := newBlockCount - DIRECT_COUNT
	e := cache.GetBlockCache(int(d.indirect1()), dev)
	e.Modify(0, func(buf []byte) {
		for curBlocks < newBlockCount1 && curBlocks < blockIDsPerBlock {
			util.Writen(buf, 4, curBlocks*4, int(take()))
			curBlocks++
		}
	})
	cache.Release(e)
	if curBlocks+DIRECT_COUNT >= newBlockCount {
		d.setSize(newSize)
		return
	}

	curBlocks -= blockIDsPerBlock
	newBlockCount2 := newBlockCount1 - blockIDsPerBlock
	if curBlocks == 0 {
		d.setIndirect2(take())
	}
	i1 := curBlocks / blockIDsPerBlock
	i2 := curBlocks % blockIDsPerBlock
	e2 := cache.GetBlockCache(int(d.indirect2()), dev)
	for i1 < (newBlockCount2+blockIDsPerBlock-1)/blockIDsPerBlock {
		if i2 == 0 {
			e2.Modify(0, func(buf []byte) {
				util.Writen(buf, 4, i1*4, int(take()))
			})
		}
		var mid uint32
		e2.Read(0, func(buf []byte) {
			mid = uint32(util.Readn(buf, 4, i1*4))
		})
		em := cache.GetBlockCache(int(mid), dev)
		em.Modify(0, func(buf []byte) {
			for i2 < blockIDsPerBlock && i1*blockIDsPerBlock+i2 < newBlockCount2 {
				util.Writen(buf, 4, i2*4, int(take()))
				i2++
			}
		})
		cache.Release(em)
		if i1*blockIDsPerBlock+i2 >= newBlockCount2 {
			break
		}
		i2 = 0
		i1++
	}
	cache.Release(e2)
	d.setSize(newSize)
}

/// ClearSize truncates to zero, returning every block (data + index) that
/// was freed, and resets size to zero.
func (d *DiskInode_t) ClearSize(cache *BlockCache_t, dev BlockDevice_i) []uint32 {
	var freed []uint32
	dataBlocks := dataBlocksFor(d.Size())
	n := dataBlocks
	direct := n
	if direct > DIRECT_COUNT {
		direct = DIRECT_COUNT
	}
	for i := 0; i < direct; i++ {
		freed = append(freed, d.direct(i))
		d.setDirect(i, 0)
	}
	if n <= DIRECT_COUNT {
		d.setSize(0)
		return freed
	}
	n1 := n - DIRECT_COUNT
	count1 := n1
	if count1 > blockIDsPerBlock {
		count1 = blockIDsPerBlock
	}
	e := cache.GetBlockCache(int(d.indirect1()), dev)
	e.Read(0, func(buf []byte) {
		for i := 0; i < count1; i++ {
			freed = append(freed, uint32(util.Readn(buf, 4, i*4)))
		}
	})
	cache.Release(e)
	freed = append(freed, d.indirect1())
	d.setIndirect1(0)
	if n1 <= blockIDsPerBlock {
		d.setSize(0)
		return freed
	}
	n2 := n1 - blockIDsPerBlock
	i1count := (n2 + blockIDsPerBlock - 1) / blockIDsPerBlock
	e2 := cache.GetBlockCache(int(d.indirect2()), dev)
	remaining := n2
	for i1 := 0; i1 < i1count; i1++ {
		var mid uint32
		e2.Read(0, func(buf []byte) {
			mid = uint32(util.Readn(buf, 4, i1*4))
		})
		cnt := remaining
		if cnt > blockIDsPerBlock {
			cnt = blockIDsPerBlock
		}
		em := cache.GetBlockCache(int(mid), dev)
		em.Read(0, func(buf []byte) {
			for i2 := 0; i2 < cnt; i2++ {
				freed = append(freed, uint32(util.Readn(buf, 4, i2*4)))
			}
		})
		cache.Release(em)
		freed = append(freed, mid)
		remaining -= cnt
	}
	cache.Release(e2)
	freed = append(freed, d.indirect2())
	d.setIndirect2(0)
	d.setSize(0)
	return freed
}

/// ReadAt copies min(len(buf), size-offset) bytes starting at offset into
/// buf, iterating block by block, and returns the count copied.
func (d *DiskInode_t) ReadAt(offset int, buf []byte, cache *BlockCache_t, dev BlockDevice_i) int {
	size := int(d.Size())
	if offset >= size {
		return 0
	}
	end := offset + len(buf)
	if end > size {
		end = size
	}
	copied := 0
	blkIdx := offset / BLOCK_SZ
	for offset < end {
		blkEnd := (blkIdx + 1) * BLOCK_SZ
		if blkEnd > end {
			blkEnd = end
		}
		blen := blkEnd - offset
		id := d.getBlockID(blkIdx, cache, dev)
		e := cache.GetBlockCache(int(id), dev)
		inBlkOff := offset % BLOCK_SZ
		e.Read(0, func(bb []byte) {
			copy(buf[copied:copied+blen], bb[inBlkOff:inBlkOff+blen])
		})
		cache.Release(e)
		copied += blen
		offset += blen
		blkIdx++
	}
	return copied
}

/// WriteAt writes buf at offset, iterating block by block. The caller
/// must have already grown the inode (IncreaseSize) so offset+len(buf)
/// does not exceed the current size.
func (d *DiskInode_t) WriteAt(offset int, buf []byte, cache *BlockCache_t, dev BlockDevice_i) int {
	size := int(d.Size())
	end := offset + len(buf)
	if end > size {
		panic("fs: WriteAt beyond inode size; caller must IncreaseSize first")
	}
	written := 0
	blkIdx := offset / BLOCK_SZ
	for offset < end {
		blkEnd := (blkIdx + 1) * BLOCK_SZ
		if blkEnd > end {
			blkEnd = end
		}
		blen := blkEnd - offset
		id := d.getBlockID(blkIdx, cache, dev)
		e := cache.GetBlockCache(int(id), dev)
		inBlkOff := offset % BLOCK_SZ
		e.Modify(0, func(bb []byte) {
			copy(bb[inBlkOff:inBlkOff+blen], buf[written:written+blen])
		})
		cache.Release(e)
		written += blen
		offset += blen
		blkIdx++
	}
	return written
}
