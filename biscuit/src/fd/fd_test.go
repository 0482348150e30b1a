package fd

import (
	"testing"

	"defs"
	"fs"
)

func TestOSInodeReadWriteCursor(t *testing.T) {
	dev := fs.NewMemDisk()
	fsys := fs.Create(dev, 256, 1, 2)
	root := fsys.RootInode()
	ino, ok := root.Create("f")
	if !ok {
		t.Fatal("create failed")
	}

	wfd := NewOSInode(ino, defs.O_WRONLY)
	n, err := wfd.Write([]byte("hello"))
	if err != 0 || n != 5 {
		t.Fatalf("write = %d, %v", n, err)
	}
	if _, err := wfd.Read(make([]byte, 1)); err != defs.EINVAL {
		t.Fatalf("read on write-only fd should fail, got %v", err)
	}

	rfd := NewOSInode(ino, defs.O_RDONLY)
	buf := make([]byte, 5)
	n, err = rfd.Read(buf)
	if err != 0 || n != 5 || string(buf) != "hello" {
		t.Fatalf("read = %q, %d, %v", buf, n, err)
	}
}

func TestCopyfdSharesFile(t *testing.T) {
	orig := &Fd_t{File: Stdout_t{}}
	dup := Copyfd(orig)
	if dup.File != orig.File {
		t.Fatal("copyfd should share the underlying File_i")
	}
}
