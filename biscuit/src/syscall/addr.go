package syscall

import "vm"

// vaOf narrows a raw register value down to the virtual-address type
// every translation helper expects; syscall arguments cross the ABI as
// plain uint64 registers.
func vaOf(raw uint64) vm.VirtAddr { return vm.VirtAddr(raw) }
