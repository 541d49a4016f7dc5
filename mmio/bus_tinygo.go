//go:build tinygo

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// Bus accesses physical memory directly. It has no fields, so register
// handles carry only their address and accesses are direct calls.
type Bus struct{}

// Load32 performs a volatile 32-bit load at a.
func (Bus) Load32(a Addr) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(a))))
}

// Store32 performs a volatile 32-bit store at a.
func (Bus) Store32(a Addr, v uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(a))), v)
}

// Hardware returns the bus for the chip the firmware runs on.
func Hardware() Bus {
	return Bus{}
}
