package mmio

import (
	"errors"
	"fmt"
)

var (
	// ErrOverlap is returned when a claim overlaps a range already claimed.
	ErrOverlap = errors.New("mmio: address range already claimed")

	// ErrUnaligned is returned for addresses that are not word aligned.
	ErrUnaligned = errors.New("mmio: address not word aligned")
)

type claim struct {
	name  string
	start Addr
	end   Addr // exclusive
}

// Map hands out register handles on one bus and refuses to hand out two
// handles covering the same address.
type Map struct {
	bus    Bus
	claims []claim
}

// NewMap creates an empty claim map for bus.
func NewMap(bus Bus) *Map {
	return &Map{bus: bus}
}

// Reg32 claims a single register at addr.
func (m *Map) Reg32(name string, addr Addr) (Reg32, error) {
	if err := m.claim(name, addr, 1); err != nil {
		return Reg32{}, err
	}
	return At(m.bus, addr), nil
}

// Bank32 claims n consecutive registers starting at base.
func (m *Map) Bank32(name string, base Addr, n uint32) (Bank32, error) {
	if n == 0 {
		return Bank32{}, fmt.Errorf("mmio: bank %s has no registers", name)
	}
	if err := m.claim(name, base, n); err != nil {
		return Bank32{}, err
	}
	return BankAt(m.bus, base), nil
}

// MustReg32 is like Reg32 but panics on error.
func (m *Map) MustReg32(name string, addr Addr) Reg32 {
	r, err := m.Reg32(name, addr)
	if err != nil {
		panic(err.Error())
	}
	return r
}

// MustBank32 is like Bank32 but panics on error.
func (m *Map) MustBank32(name string, base Addr, n uint32) Bank32 {
	b, err := m.Bank32(name, base, n)
	if err != nil {
		panic(err.Error())
	}
	return b
}

func (m *Map) claim(name string, start Addr, words uint32) error {
	if start%WordSize != 0 {
		return fmt.Errorf("%s at 0x%08x: %w", name, uint32(start), ErrUnaligned)
	}
	end := start + Addr(words*WordSize)
	for _, c := range m.claims {
		if start < c.end && c.start < end {
			return fmt.Errorf("%s at 0x%08x overlaps %s: %w", name, uint32(start), c.name, ErrOverlap)
		}
	}
	m.claims = append(m.claims, claim{name: name, start: start, end: end})
	return nil
}
