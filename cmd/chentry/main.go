// Command chentry rewrites the entry address of a statically linked
// RISC-V ELF binary, used by the image build to point a freshly linked
// user program at its real entry after objcopy has flattened it.
package main

import (
	"debug/elf"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
)

func chkELF(eh *elf.FileHeader) {
	if eh.Ident[0] != 0x7f || string(eh.Ident[1:4]) != "ELF" {
		log.Fatal("not an elf")
	}
	if eh.Ident[elf.EI_DATA] != elf.ELFDATA2LSB {
		log.Fatal("not little-endian")
	}
	if eh.Type != elf.ET_EXEC {
		log.Fatal("not an executable elf")
	}
	if eh.Machine != elf.EM_RISCV {
		log.Fatal("not a riscv elf")
	}
	if eh.Class != elf.ELFCLASS64 {
		log.Fatal("not a 64 bit elf")
	}
}

func main() {
	addrFlag := flag.Uint64("addr", 0, "new entry address")
	flag.Parse()
	if flag.NArg() != 1 || *addrFlag == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s -addr=<hex or dec> <filename>\n", os.Args[0])
		os.Exit(1)
	}
	fn := flag.Arg(0)

	f, err := os.OpenFile(fn, os.O_RDWR, 0)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		log.Fatal(err)
	}
	chkELF(&ef.FileHeader)

	fmt.Printf("using entry address %#x\n", *addrFlag)
	ef.FileHeader.Entry = *addrFlag

	if _, err := f.Seek(0, 0); err != nil {
		log.Fatal(err)
	}
	if err := binary.Write(f, binary.LittleEndian, &ef.FileHeader); err != nil {
		log.Fatal(err)
	}
}
