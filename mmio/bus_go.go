//go:build !tinygo

package mmio

// Bus performs ordered 32-bit accesses at absolute addresses.
// Implementations must not reorder, merge, cache or drop accesses.
type Bus interface {
	Load32(a Addr) uint32
	Store32(a Addr, v uint32)
}

// hostBus stands in for physical memory on regular Go (for testing)
var hostBus = NewSim()

// Hardware returns a process-wide simulated bus on regular Go.
func Hardware() Bus {
	return hostBus
}

// HostSim returns the simulated bus behind Hardware.
func HostSim() *Sim {
	return hostBus
}
