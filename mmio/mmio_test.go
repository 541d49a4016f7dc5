//go:build !tinygo

package mmio

import (
	"errors"
	"testing"
)

func TestBankIndexAddress(t *testing.T) {
	sim := NewSim()
	bank := BankAt(sim, 0x500DC500)

	testCases := []struct {
		index    uint32
		expected Addr
	}{
		{0, 0x500DC500},
		{1, 0x500DC504},
		{2, 0x500DC508},
		{6, 0x500DC518},
		{9, 0x500DC524},
	}

	for _, tc := range testCases {
		got := bank.Index(tc.index).Addr()
		if got != tc.expected {
			t.Errorf("Index(%d): expected 0x%08x, got 0x%08x", tc.index, uint32(tc.expected), uint32(got))
		}
	}
}

func TestRegisterGetSet(t *testing.T) {
	sim := NewSim()
	reg := At(sim, 0x50050400)

	if v := reg.Get(); v != 0 {
		t.Errorf("Expected fresh register to read 0, got 0x%08x", v)
	}

	reg.Set(0xDEADBEEF)
	if v := reg.Get(); v != 0xDEADBEEF {
		t.Errorf("Expected 0xDEADBEEF, got 0x%08x", v)
	}

	trace := sim.Trace()
	expected := []Op{
		{Kind: OpRead, Addr: 0x50050400, Value: 0},
		{Kind: OpWrite, Addr: 0x50050400, Value: 0xDEADBEEF},
		{Kind: OpRead, Addr: 0x50050400, Value: 0xDEADBEEF},
	}
	if len(trace) != len(expected) {
		t.Fatalf("Expected %d ops, got %d: %v", len(expected), len(trace), trace)
	}
	for i := range expected {
		if trace[i] != expected[i] {
			t.Errorf("Op %d: expected %v, got %v", i, expected[i], trace[i])
		}
	}
}

func TestRegisterXor(t *testing.T) {
	sim := NewSim()
	sim.Poke(0x50050400, 0x0000_0201)
	reg := At(sim, 0x50050400)

	reg.Xor(1 << 9)

	if v := sim.Peek(0x50050400); v != 0x1 {
		t.Errorf("Expected 0x1 after toggling bit 9, got 0x%08x", v)
	}

	trace := sim.Trace()
	if len(trace) != 2 {
		t.Fatalf("Expected exactly one read and one write, got %v", trace)
	}
	if trace[0].Kind != OpRead || trace[1].Kind != OpWrite {
		t.Errorf("Expected read then write, got %v", trace)
	}
	if trace[1].Value != trace[0].Value^(1<<9) {
		t.Errorf("Written value 0x%08x is not read value 0x%08x xor 0x200", trace[1].Value, trace[0].Value)
	}
}

func TestSimWritesAndReset(t *testing.T) {
	sim := NewSim()
	reg := At(sim, 0x1000)
	other := At(sim, 0x1004)

	reg.Set(1)
	other.Set(7)
	reg.Set(2)

	writes := sim.Writes(0x1000)
	if len(writes) != 2 || writes[0] != 1 || writes[1] != 2 {
		t.Errorf("Expected writes [1 2], got %v", writes)
	}

	sim.ResetTrace()
	if n := len(sim.Trace()); n != 0 {
		t.Errorf("Expected empty trace after reset, got %d ops", n)
	}
	if v := sim.Peek(0x1000); v != 2 {
		t.Errorf("Expected memory to survive trace reset, got %d", v)
	}
}

func TestSimUnalignedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected unaligned access to panic")
		}
	}()

	sim := NewSim()
	sim.Load32(0x1002)
}

func TestMapClaims(t *testing.T) {
	m := NewMap(NewSim())

	if _, err := m.Bank32("pin_cnf", 0x50050480, 32); err != nil {
		t.Fatalf("Bank32 failed: %v", err)
	}
	if _, err := m.Reg32("out", 0x50050400); err != nil {
		t.Fatalf("Reg32 failed: %v", err)
	}

	// Same address as "out"
	_, err := m.Reg32("out_alias", 0x50050400)
	if !errors.Is(err, ErrOverlap) {
		t.Errorf("Expected ErrOverlap for duplicate register, got %v", err)
	}

	// Inside the pin_cnf bank
	_, err = m.Reg32("pin9", 0x500504A4)
	if !errors.Is(err, ErrOverlap) {
		t.Errorf("Expected ErrOverlap for register inside bank, got %v", err)
	}

	// Bank running into pin_cnf from below
	_, err = m.Bank32("before", 0x50050470, 8)
	if !errors.Is(err, ErrOverlap) {
		t.Errorf("Expected ErrOverlap for overlapping bank, got %v", err)
	}

	// Adjacent, not overlapping
	if _, err := m.Bank32("after", 0x50050500, 4); err != nil {
		t.Errorf("Expected adjacent bank to be accepted, got %v", err)
	}

	_, err = m.Reg32("odd", 0x50050602)
	if !errors.Is(err, ErrUnaligned) {
		t.Errorf("Expected ErrUnaligned, got %v", err)
	}

	if _, err := m.Bank32("empty", 0x60000000, 0); err == nil {
		t.Error("Expected error for empty bank")
	}
}

func TestMapMustPanics(t *testing.T) {
	m := NewMap(NewSim())
	m.MustReg32("a", 0x2000)

	defer func() {
		if recover() == nil {
			t.Error("Expected MustReg32 to panic on duplicate claim")
		}
	}()
	m.MustReg32("b", 0x2000)
}

func TestHostHardwareIsSim(t *testing.T) {
	if Hardware() != Bus(HostSim()) {
		t.Error("Expected Hardware to return the host simulated bus")
	}
}
