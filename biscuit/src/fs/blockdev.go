// Package fs implements the on-disk filesystem: a bitmap-allocated,
// inode-based layout accessed through a write-through block cache and a
// VFS inode handle offering create/find/link/unlink/read/write/clear.
package fs

// BLOCK_SZ is the fixed block size of the on-disk layout.
const BLOCK_SZ = 512

/// BlockDevice_i is the two-operation interface the filesystem consumes;
/// it must be safe to call from kernel context. Implementations: the
/// hosted file-backed disk (cmd/mkfs, tests) and whatever virtio-blk
/// driver a real boot target supplies (out of this package's scope).
type BlockDevice_i interface {
	ReadBlock(id int, buf *[BLOCK_SZ]byte)
	WriteBlock(id int, buf *[BLOCK_SZ]byte)
}
