package fs

import "util"

/// MAGIC identifies a formatted disk image.
const MAGIC uint32 = 0x3b800001

/// Superblock_t is the on-disk block 0: magic plus the extent of every
/// region that follows it.
type Superblock_t struct {
	Magic           uint32
	TotalBlocks     uint32
	InodeBitmapBlks uint32
	InodeAreaBlks   uint32
	DataBitmapBlks  uint32
	DataAreaBlks    uint32
}

const superblockWireSize = 4 * 6

/// Encode packs the superblock into a block-sized buffer.
func (sb *Superblock_t) Encode(buf []byte) {
	util.Writen(buf, 4, 0, int(sb.Magic))
	util.Writen(buf, 4, 4, int(sb.TotalBlocks))
	util.Writen(buf, 4, 8, int(sb.InodeBitmapBlks))
	util.Writen(buf, 4, 12, int(sb.InodeAreaBlks))
	util.Writen(buf, 4, 16, int(sb.DataBitmapBlks))
	util.Writen(buf, 4, 20, int(sb.DataAreaBlks))
}

/// DecodeSuperblock unpacks a block-sized buffer into a Superblock_t and
/// reports whether its magic matches.
func DecodeSuperblock(buf []byte) (*Superblock_t, bool) {
	sb := &Superblock_t{
		Magic:           uint32(util.Readn(buf, 4, 0)),
		TotalBlocks:     uint32(util.Readn(buf, 4, 4)),
		InodeBitmapBlks: uint32(util.Readn(buf, 4, 8)),
		InodeAreaBlks:   uint32(util.Readn(buf, 4, 12)),
		DataBitmapBlks:  uint32(util.Readn(buf, 4, 16)),
		DataAreaBlks:    uint32(util.Readn(buf, 4, 20)),
	}
	return sb, sb.Magic == MAGIC
}
