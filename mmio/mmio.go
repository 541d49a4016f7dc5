// Package mmio provides typed handles for memory-mapped hardware registers.
//
// A handle binds one fixed physical address to a 32-bit register, or one base
// address to a bank of 32-bit registers. Every Get and Set goes through a Bus.
// On TinyGo the Bus is a zero-size concrete type doing volatile loads and
// stores at the exact address, so a handle is just its address. On the host
// it is an interface, backed by a simulated memory (see Sim).
package mmio

// Addr is a physical address on the 32-bit peripheral bus.
type Addr uint32

// WordSize is the width of every register handled by this package.
const WordSize = 4

// Reg32 is a 32-bit register bound to a fixed address.
type Reg32 struct {
	bus  Bus
	addr Addr
}

// At binds a register handle to addr.
func At(bus Bus, addr Addr) Reg32 {
	return Reg32{bus: bus, addr: addr}
}

// Addr returns the address the handle is bound to.
func (r Reg32) Addr() Addr {
	return r.addr
}

// Get reads the register.
func (r Reg32) Get() uint32 {
	return r.bus.Load32(r.addr)
}

// Set writes the register.
func (r Reg32) Set(v uint32) {
	r.bus.Store32(r.addr, v)
}

// Xor flips the bits in mask with a read-modify-write.
// Not atomic with respect to other writers of the same register.
func (r Reg32) Xor(mask uint32) {
	r.bus.Store32(r.addr, r.bus.Load32(r.addr)^mask)
}

// Bank32 is a zero-based array of 32-bit registers starting at a base address.
type Bank32 struct {
	bus  Bus
	base Addr
}

// BankAt binds a bank handle to base.
func BankAt(bus Bus, base Addr) Bank32 {
	return Bank32{bus: bus, base: base}
}

// Base returns the address of ordinal 0.
func (b Bank32) Base() Addr {
	return b.base
}

// Index returns the register at ordinal n. Bounds are defined by the hardware
// and are not checked here.
func (b Bank32) Index(n uint32) Reg32 {
	return Reg32{bus: b.bus, addr: b.base + Addr(n*WordSize)}
}
