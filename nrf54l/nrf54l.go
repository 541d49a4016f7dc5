// Package nrf54l describes the nRF54L registers used at boot: the TAMPC
// debug protection registers and GPIO port P2.
package nrf54l

import "nrf54boot/mmio"

// Peripheral register addresses
const (
	P2OutAddr              mmio.Addr = 0x50050400 // P2 OUT
	P2PinCnfAddr           mmio.Addr = 0x50050480 // P2 PIN_CNF[0]
	TampcProtectDomainAddr mmio.Addr = 0x500DC500 // TAMPC PROTECT.DOMAIN[0]
	TampcProtectAPAddr     mmio.Addr = 0x500DC700 // TAMPC PROTECT.AP[0]
)

// Register counts claimed for each bank
const (
	P2PinCount       = 32
	DomainBankLength = 8 // CTRL/STATUS pairs for DBGEN, NIDEN, SPIDEN, SPNIDEN
	APBankLength     = 2 // CTRL/STATUS pair for DBGEN
)

// Ordinals of the CTRL registers in the protection banks. The STATUS
// register of each signal is the ordinal right after its CTRL.
const (
	DomainDBGEN   = 0
	DomainNIDEN   = 2
	DomainSPIDEN  = 4
	DomainSPNIDEN = 6

	APDBGEN = 0
)

// GPIO
const (
	DebugPin     = 9
	PinCnfOutput = 1
)

// Peripherals holds the register handles used by the boot sequence. It is
// built once at startup and never rebound.
type Peripherals struct {
	Out    mmio.Reg32  // P2 OUT
	PinCnf mmio.Bank32 // P2 PIN_CNF[n]
	Domain mmio.Bank32 // TAMPC PROTECT.DOMAIN[0]
	AP     mmio.Bank32 // TAMPC PROTECT.AP[0]
}

// Protect names one debug-enable CTRL register.
type Protect struct {
	Name string
	Reg  mmio.Reg32
}

// New binds the peripherals to bus. It panics if the register map overlaps
// itself, which can only be a programming error.
func New(bus mmio.Bus) *Peripherals {
	m := mmio.NewMap(bus)
	return &Peripherals{
		Out:    m.MustReg32("P2.OUT", P2OutAddr),
		PinCnf: m.MustBank32("P2.PIN_CNF", P2PinCnfAddr, P2PinCount),
		Domain: m.MustBank32("TAMPC.PROTECT.DOMAIN[0]", TampcProtectDomainAddr, DomainBankLength),
		AP:     m.MustBank32("TAMPC.PROTECT.AP[0]", TampcProtectAPAddr, APBankLength),
	}
}

// DebugEnableCount is the number of debug-enable CTRL registers.
const DebugEnableCount = 5

// DebugEnableNames names the debug-enable CTRL registers in unlock order.
var DebugEnableNames = [DebugEnableCount]string{
	"DBGEN",
	"NIDEN",
	"SPIDEN",
	"SPNIDEN",
	"AP.DBGEN", // RISC-V core
}

// DebugEnables returns the debug-enable CTRL registers in the order the boot
// sequence unlocks them.
func (p *Peripherals) DebugEnables() [DebugEnableCount]Protect {
	return [DebugEnableCount]Protect{
		{Name: DebugEnableNames[0], Reg: p.Domain.Index(DomainDBGEN)},
		{Name: DebugEnableNames[1], Reg: p.Domain.Index(DomainNIDEN)},
		{Name: DebugEnableNames[2], Reg: p.Domain.Index(DomainSPIDEN)},
		{Name: DebugEnableNames[3], Reg: p.Domain.Index(DomainSPNIDEN)},
		{Name: DebugEnableNames[4], Reg: p.AP.Index(APDBGEN)},
	}
}

// DebugEnableAddrs lists the addresses of the debug-enable CTRL registers,
// in unlock order.
func DebugEnableAddrs() []mmio.Addr {
	return []mmio.Addr{
		TampcProtectDomainAddr + DomainDBGEN*mmio.WordSize,
		TampcProtectDomainAddr + DomainNIDEN*mmio.WordSize,
		TampcProtectDomainAddr + DomainSPIDEN*mmio.WordSize,
		TampcProtectDomainAddr + DomainSPNIDEN*mmio.WordSize,
		TampcProtectAPAddr + APDBGEN*mmio.WordSize,
	}
}

// PinCnfAddr returns the PIN_CNF address of a P2 pin.
func PinCnfAddr(pin uint32) mmio.Addr {
	return P2PinCnfAddr + mmio.Addr(pin*mmio.WordSize)
}
