package kernel

import (
	"fmt"
	"io"
	"os"
	"sync"

	"caller"
	"mem"
	"vm"
)

// Machine constants, the hosted-kernel analogue of the original's boot-time
// linker-script and platform numbers.
const (
	USERSTACK_SIZE   = 2 * mem.PGSIZE
	KERNELSTACK_SIZE = 2 * mem.PGSIZE
	MAX_SYSCALL_NUM  = 500
	CLOCK_FREQ       = 12500000
	MEMORY_END       = 0x88000000
	BIG_STRIDE       = 100000
)

/// MMIOWindow is one (base, length) physical window identity-mapped into
/// the kernel address space, at minimum the virtio-blk control page.
type MMIOWindow struct {
	Base, Length uint64
}

/// MMIO lists the windows NewKernelSpace identity-maps R|W.
var MMIO = []MMIOWindow{
	{Base: 0x10001000, Length: 0x1000},
}

var (
	initOnce   sync.Once
	space      *vm.MemorySet
	spaceMu    sync.Mutex
	trampoline mem.Ppn_t
)

/// Space returns the kernel's own address space, built by Init. Callers
/// must not call this before Init.
func Space() *vm.MemorySet {
	spaceMu.Lock()
	defer spaceMu.Unlock()
	return space
}

/// TrampolinePpn returns the single physical frame backing the
/// trampoline, shared by the kernel's own address space and every
/// task's -- allocated once, inside Init, after the frame allocator is
/// up. Callers must not call this before Init.
func TrampolinePpn() mem.Ppn_t {
	spaceMu.Lock()
	defer spaceMu.Unlock()
	return trampoline
}

/// Init brings up the frame allocator, allocates the shared trampoline
/// frame, and builds the kernel address space from it plus the
/// caller-supplied kernel text/data/bss identity regions and the MMIO
/// windows. Safe to call only once; later calls are no-ops.
func Init(memBase mem.Ppn_t, memFrames int, textRegions []vm.IdentRegion) *vm.MemorySet {
	initOnce.Do(func() {
		mem.Phys_init(memBase, memFrames)
		Logf("kernel: physical memory: base=%#x frames=%d", memBase, memFrames)

		ft, ok := mem.Physmem.Alloc()
		if !ok {
			Fatalf("cannot allocate trampoline frame")
		}

		regions := append([]vm.IdentRegion{}, textRegions...)
		for _, w := range MMIO {
			regions = append(regions, vm.IdentRegion{
				Start: vm.VirtAddr(w.Base),
				End:   vm.VirtAddr(w.Base + w.Length),
				Perm:  vm.PermR | vm.PermW,
			})
		}

		spaceMu.Lock()
		trampoline = ft.Ppn()
		space = vm.NewKernel(trampoline, regions)
		spaceMu.Unlock()
		Logf("kernel: address space ready, token=%#x", space.Token())
	})
	return space
}

/// KernelStackPosition returns the [bottom, top) virtual range reserved
/// for pid's kernel stack: stacks grow down from the trampoline, each
/// preceded by an unmapped guard page so a stack overflow faults instead
/// of silently corrupting its neighbor.
func KernelStackPosition(pid int) (bottom, top vm.VirtAddr) {
	top = vm.TRAMPOLINE - vm.VirtAddr(pid)*vm.VirtAddr(KERNELSTACK_SIZE+mem.PGSIZE)
	bottom = top - vm.VirtAddr(KERNELSTACK_SIZE)
	return
}

/// KstackAlloc inserts pid's kernel stack into the kernel address space
/// and returns its top (the initial kernel sp for a freshly created
/// task).
func KstackAlloc(pid int) vm.VirtAddr {
	bottom, top := KernelStackPosition(pid)
	spaceMu.Lock()
	defer spaceMu.Unlock()
	space.InsertFramedArea(bottom, top, vm.PermR|vm.PermW)
	return top
}

/// KstackDealloc removes pid's kernel stack from the kernel address
/// space, on task reap.
func KstackDealloc(pid int) {
	bottom, _ := KernelStackPosition(pid)
	spaceMu.Lock()
	defer spaceMu.Unlock()
	space.RemoveAreaWithStartVpn(bottom.Vpn())
}

/// Console is where Logf writes; it defaults to the host's stdout and is
/// swappable so tests can capture kernel log lines, or a real boot wrapper
/// can point it at a UART.
var Console io.Writer = os.Stdout

/// Logf writes one console line, mirroring the teacher's direct
/// fmt.Printf calls from mem.Phys_init and its neighbors -- the kernel
/// cannot assume a buffered userspace logger exists before its own
/// memory subsystem is up.
func Logf(format string, args ...any) {
	fmt.Fprintf(Console, format+"\n", args...)
}

/// Fatalf logs msg, dumps the caller chain that reached it to Console,
/// and panics. Invariant violations (bitmap double-free, PTE remap
/// collision, pinned-cache exhaustion) go through this rather than a
/// bare panic, so the console line that precedes a kernel crash always
/// shows which call path triggered it.
func Fatalf(format string, args ...any) {
	Logf("kernel: fatal: "+format, args...)
	old := caller.CallerdumpOut
	caller.CallerdumpOut = Console
	caller.Callerdump(2)
	caller.CallerdumpOut = old
	panic(fmt.Sprintf(format, args...))
}
