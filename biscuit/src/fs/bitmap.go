package fs

import (
	"math/bits"

	"util"
)

const (
	bitsPerWord  = 64
	wordsPerBlk  = BLOCK_SZ / 8
	bitsPerBlock = wordsPerBlk * bitsPerWord // 4096 bits/block
)

/// Bitmap_t is a contiguous run of blocks starting at StartBlock,
/// interpreted as allocation flags over the following region.
type Bitmap_t struct {
	StartBlock int
	Blocks     int
}

func decomposition(bit int) (blockPos, wordPos, innerPos int) {
	blockPos = bit / bitsPerBlock
	rem := bit % bitsPerBlock
	wordPos = rem / bitsPerWord
	innerPos = rem % bitsPerWord
	return
}

func readWord(buf []byte, w int) uint64 {
	return uint64(util.Readn(buf, 8, w*8))
}

func writeWord(buf []byte, w int, v uint64) {
	util.Writen(buf, 8, w*8, int(v))
}

/// Alloc scans managed blocks in order for the first zero bit (the lowest
/// zero bit of the first word not all-ones, via a trailing-ones count),
/// sets it, and returns its global index. Returns false if every bit is
/// set.
func (bm *Bitmap_t) Alloc(cache *BlockCache_t, dev BlockDevice_i) (int, bool) {
	for blk := 0; blk < bm.Blocks; blk++ {
		e := cache.GetBlockCache(bm.StartBlock+blk, dev)
		found := -1
		e.Read(0, func(buf []byte) {
			for w := 0; w < wordsPerBlk; w++ {
				word := readWord(buf, w)
				if word == ^uint64(0) {
					continue
				}
				bitIdx := bits.TrailingZeros64(^word)
				found = blk*bitsPerBlock + w*bitsPerWord + bitIdx
				break
			}
		})
		if found >= 0 {
			e.Modify(0, func(buf []byte) {
				_, w, inner := decomposition(found % bitsPerBlock)
				word := readWord(buf, w)
				writeWord(buf, w, word|(uint64(1)<<uint(inner)))
			})
			cache.Release(e)
			return found, true
		}
		cache.Release(e)
	}
	return 0, false
}

/// Dealloc clears a previously allocated bit. Panics if it was not set --
/// a double-free is a corruption invariant violation, not a recoverable
/// error.
func (bm *Bitmap_t) Dealloc(cache *BlockCache_t, dev BlockDevice_i, bit int) {
	blockPos, wordPos, innerPos := decomposition(bit)
	e := cache.GetBlockCache(bm.StartBlock+blockPos, dev)
	defer cache.Release(e)
	e.Modify(0, func(buf []byte) {
		word := readWord(buf, wordPos)
		mask := uint64(1) << uint(innerPos)
		if word&mask == 0 {
			panic("fs: bitmap double free")
		}
		writeWord(buf, wordPos, word&^mask)
	})
}

/// Maximum is the number of resources this bitmap can describe.
func (bm *Bitmap_t) Maximum() int {
	return bm.Blocks * bitsPerBlock
}
