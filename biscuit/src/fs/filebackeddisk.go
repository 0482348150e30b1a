package fs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

/// FileBackedDisk_t implements BlockDevice_i over a host file using
/// pread/pwrite, so the block cache and bitmap/inode layers above it can
/// be exercised against real persistent storage rather than an in-memory
/// stand-in -- and so that a "sync, remount" scenario actually observes
/// durable state.
type FileBackedDisk_t struct {
	f *os.File
}

/// OpenFileBackedDisk opens (creating if needed) a flat file to back a
/// block device.
func OpenFileBackedDisk(path string) (*FileBackedDisk_t, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("fs: open backing file: %w", err)
	}
	return &FileBackedDisk_t{f: f}, nil
}

/// Close releases the backing file descriptor.
func (d *FileBackedDisk_t) Close() error {
	return d.f.Close()
}

/// ReadBlock reads block id via pread, zero-filling buf if the file is
/// shorter than expected (an unformatted region reads as zero).
func (d *FileBackedDisk_t) ReadBlock(id int, buf *[BLOCK_SZ]byte) {
	n, err := unix.Pread(int(d.f.Fd()), buf[:], int64(id)*BLOCK_SZ)
	if err != nil {
		panic(fmt.Sprintf("fs: pread block %d: %v", id, err))
	}
	for i := n; i < BLOCK_SZ; i++ {
		buf[i] = 0
	}
}

/// WriteBlock writes block id via pwrite.
func (d *FileBackedDisk_t) WriteBlock(id int, buf *[BLOCK_SZ]byte) {
	_, err := unix.Pwrite(int(d.f.Fd()), buf[:], int64(id)*BLOCK_SZ)
	if err != nil {
		panic(fmt.Sprintf("fs: pwrite block %d: %v", id, err))
	}
}
