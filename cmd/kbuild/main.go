// Command kbuild collects a set of statically linked RISC-V user ELF
// binaries into a flat staging directory -- an initrd skeleton -- that
// cmd/mkfs's -skel flag then copies into the kernel's filesystem image.
// Each input is validated the way cmd/chentry validates a single binary
// before patching its entry address; kbuild performs the same checks
// across a whole program set before ever touching the output directory,
// so a bad input fails the build instead of landing half-copied.
package main

import (
	"debug/elf"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

func chkELF(eh *elf.FileHeader, path string) error {
	if eh.Ident[0] != 0x7f || string(eh.Ident[1:4]) != "ELF" {
		return fmt.Errorf("%s: not an elf", path)
	}
	if eh.Ident[elf.EI_DATA] != elf.ELFDATA2LSB {
		return fmt.Errorf("%s: not little-endian", path)
	}
	if eh.Type != elf.ET_EXEC {
		return fmt.Errorf("%s: not an executable elf", path)
	}
	if eh.Machine != elf.EM_RISCV {
		return fmt.Errorf("%s: not a riscv elf", path)
	}
	if eh.Class != elf.ELFCLASS64 {
		return fmt.Errorf("%s: not a 64 bit elf", path)
	}
	return nil
}

func validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return chkELF(&ef.FileHeader, path)
}

func copyInto(outDir, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(outDir, filepath.Base(path)))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func main() {
	outDir := flag.String("out", "", "staging directory to populate")
	flag.Parse()
	bins := flag.Args()

	if *outDir == "" || len(bins) == 0 {
		fmt.Fprintln(os.Stderr, "usage: kbuild -out=<dir> <elf> [elf...]")
		os.Exit(1)
	}

	for _, b := range bins {
		if err := validate(b); err != nil {
			log.Fatalf("kbuild: %v", err)
		}
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("kbuild: %v", err)
	}

	for _, b := range bins {
		if err := copyInto(*outDir, b); err != nil {
			log.Fatalf("kbuild: copy %s: %v", b, err)
		}
		fmt.Printf("kbuild: staged %s\n", filepath.Base(b))
	}
}
