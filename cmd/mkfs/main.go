// Command mkfs formats a flat host file into the kernel's on-disk
// filesystem image and copies a directory's regular files into its
// single flat root directory, producing a disk image ready to be
// attached as the machine's root filesystem.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"fs"
)

const (
	bytesPerBlock     = fs.BLOCK_SZ
	defaultTotalBlks  = 8192
	defaultInodeBmBlk = 4
	defaultDataBmBlk  = 16
)

func main() {
	image := flag.String("image", "", "path to the disk image to create")
	skel := flag.String("skel", "", "host directory whose regular files are copied into the image")
	totalBlocks := flag.Int("blocks", defaultTotalBlks, "total block count")
	inodeBitmapBlocks := flag.Int("inode-bitmap-blocks", defaultInodeBmBlk, "inode bitmap block count")
	dataBitmapBlocks := flag.Int("data-bitmap-blocks", defaultDataBmBlk, "data bitmap block count")
	flag.Parse()

	if *image == "" {
		fmt.Fprintln(os.Stderr, "usage: mkfs -image=<path> [-skel=<dir>] [-blocks=N]")
		os.Exit(1)
	}

	dev, err := fs.OpenFileBackedDisk(*image)
	if err != nil {
		log.Fatalf("mkfs: %v", err)
	}
	defer dev.Close()

	fsys := fs.Create(dev, *totalBlocks, *inodeBitmapBlocks, *dataBitmapBlocks)
	root := fsys.RootInode()

	if *skel != "" {
		if err := addFiles(root, *skel); err != nil {
			log.Fatalf("mkfs: %v", err)
		}
	}

	fmt.Printf("mkfs: wrote %d blocks (%d inode bitmap, %d data bitmap) to %s\n",
		*totalBlocks, *inodeBitmapBlocks, *dataBitmapBlocks, *image)
}

// addFiles copies every regular file directly inside skeldir into root.
// The filesystem has no nested-directory support (see fs/inode.go), so
// subdirectories of skeldir are reported and skipped rather than walked.
func addFiles(root *fs.Inode_t, skeldir string) error {
	entries, err := os.ReadDir(skeldir)
	if err != nil {
		return fmt.Errorf("read skel dir: %w", err)
	}

	buf := make([]byte, bytesPerBlock)
	for _, e := range entries {
		if e.IsDir() {
			fmt.Printf("mkfs: skipping subdirectory %q (flat root only)\n", e.Name())
			continue
		}

		src := filepath.Join(skeldir, e.Name())
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("open %q: %w", src, err)
		}

		ino, ok := root.Create(e.Name())
		if !ok {
			f.Close()
			return fmt.Errorf("create inode for %q", e.Name())
		}

		offset := 0
		for {
			n, readErr := f.Read(buf)
			if n > 0 {
				ino.WriteAt(offset, buf[:n])
				offset += n
			}
			if readErr != nil {
				break
			}
		}
		f.Close()
		fmt.Printf("mkfs: copied %q (%d bytes)\n", e.Name(), offset)
	}
	return nil
}
