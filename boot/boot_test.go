//go:build !tinygo

package boot

import (
	"strings"
	"testing"

	"nrf54boot/mmio"
	"nrf54boot/nrf54l"
)

func newSimSequence() (*Sequence, *mmio.Sim) {
	sim := mmio.NewSim()
	return New(nrf54l.New(sim)), sim
}

func TestStateTransitions(t *testing.T) {
	seq, _ := newSimSequence()

	if seq.State() != Uninitialized {
		t.Fatalf("Expected Uninitialized, got %v", seq.State())
	}

	expected := []State{DebugUnlocked, PinConfigured, PinToggled, Idle, Idle, Idle}
	for i, want := range expected {
		if got := seq.Step(); got != want {
			t.Errorf("Step %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestFinalRegisterState(t *testing.T) {
	seq, sim := newSimSequence()
	seq.Advance()

	testCases := []struct {
		name     string
		addr     mmio.Addr
		expected uint32
	}{
		{"DOMAIN[0]", nrf54l.TampcProtectDomainAddr + 0x00, 0x50FA0001},
		{"DOMAIN[2]", nrf54l.TampcProtectDomainAddr + 0x08, 0x50FA0001},
		{"DOMAIN[4]", nrf54l.TampcProtectDomainAddr + 0x10, 0x50FA0001},
		{"DOMAIN[6]", nrf54l.TampcProtectDomainAddr + 0x18, 0x50FA0001},
		{"AP[0]", nrf54l.TampcProtectAPAddr, 0x50FA0001},
		{"PIN_CNF[9]", nrf54l.P2PinCnfAddr + 9*4, 1},
		{"OUT", nrf54l.P2OutAddr, 0x200},
	}

	for _, tc := range testCases {
		if got := sim.Peek(tc.addr); got != tc.expected {
			t.Errorf("%s: expected 0x%08x, got 0x%08x", tc.name, tc.expected, got)
		}
	}
}

func TestUnlockOrdering(t *testing.T) {
	seq, sim := newSimSequence()
	seq.Advance()

	for _, addr := range nrf54l.DebugEnableAddrs() {
		writes := sim.Writes(addr)
		if len(writes) != 2 {
			t.Errorf("0x%08x: expected 2 writes, got %v", uint32(addr), writes)
			continue
		}
		if writes[0] != 0x50FA00F0 || writes[1] != 0x50FA0001 {
			t.Errorf("0x%08x: expected [0x50FA00F0 0x50FA0001], got [0x%08x 0x%08x]",
				uint32(addr), writes[0], writes[1])
		}
	}
}

func TestOnlyUnlockTargetsWritten(t *testing.T) {
	seq, sim := newSimSequence()
	seq.Advance()

	targets := make(map[mmio.Addr]bool)
	for _, a := range nrf54l.DebugEnableAddrs() {
		targets[a] = true
	}

	inBank := func(a, base mmio.Addr, n uint32) bool {
		return a >= base && a < base+mmio.Addr(n*mmio.WordSize)
	}

	for _, op := range sim.Trace() {
		if op.Kind != mmio.OpWrite {
			continue
		}
		if inBank(op.Addr, nrf54l.TampcProtectDomainAddr, nrf54l.DomainBankLength) ||
			inBank(op.Addr, nrf54l.TampcProtectAPAddr, nrf54l.APBankLength) {
			if !targets[op.Addr] {
				t.Errorf("Unexpected write to protection register 0x%08x", uint32(op.Addr))
			}
		}
	}
}

func TestPinConfigAfterUnlock(t *testing.T) {
	seq, sim := newSimSequence()
	seq.Advance()

	trace := sim.Trace()
	pinCnfBank := func(a mmio.Addr) bool {
		return a >= nrf54l.P2PinCnfAddr && a < nrf54l.P2PinCnfAddr+nrf54l.P2PinCount*mmio.WordSize
	}

	var cfgIdx []int
	lastUnlock := -1
	protect := make(map[mmio.Addr]bool)
	for _, a := range nrf54l.DebugEnableAddrs() {
		protect[a] = true
	}
	for i, op := range trace {
		if op.Kind != mmio.OpWrite {
			continue
		}
		if protect[op.Addr] {
			lastUnlock = i
		}
		if pinCnfBank(op.Addr) {
			cfgIdx = append(cfgIdx, i)
		}
	}

	if len(cfgIdx) != 1 {
		t.Fatalf("Expected exactly one PIN_CNF write, got %d", len(cfgIdx))
	}
	op := trace[cfgIdx[0]]
	if op.Addr != nrf54l.PinCnfAddr(9) || op.Value != 1 {
		t.Errorf("Expected PIN_CNF[9] = 1, got %v", op)
	}
	if cfgIdx[0] < lastUnlock {
		t.Errorf("PIN_CNF written at op %d before last unlock write at op %d", cfgIdx[0], lastUnlock)
	}
}

func TestToggleReadModifyWrite(t *testing.T) {
	testCases := []struct {
		initial  uint32
		expected uint32
	}{
		{0x00000000, 0x00000200},
		{0x00000200, 0x00000000},
		{0x00000401, 0x00000601},
	}

	for _, tc := range testCases {
		seq, sim := newSimSequence()
		sim.Poke(nrf54l.P2OutAddr, tc.initial)
		seq.Advance()

		var reads, writes []mmio.Op
		for _, op := range sim.Trace() {
			if op.Addr != nrf54l.P2OutAddr {
				continue
			}
			if op.Kind == mmio.OpRead {
				reads = append(reads, op)
			} else {
				writes = append(writes, op)
			}
		}

		if len(reads) != 1 || len(writes) != 1 {
			t.Errorf("initial 0x%08x: expected one read and one write, got %d and %d", tc.initial, len(reads), len(writes))
			continue
		}
		if writes[0].Value != reads[0].Value^0x200 {
			t.Errorf("initial 0x%08x: written 0x%08x is not read 0x%08x xor 0x200", tc.initial, writes[0].Value, reads[0].Value)
		}
		if writes[0].Value != tc.expected {
			t.Errorf("initial 0x%08x: expected 0x%08x, got 0x%08x", tc.initial, tc.expected, writes[0].Value)
		}
	}
}

func TestTraceLengthAndOrder(t *testing.T) {
	seq, sim := newSimSequence()
	seq.Advance()

	trace := sim.Trace()
	if len(trace) != 13 {
		t.Fatalf("Expected 13 MMIO operations, got %d: %v", len(trace), trace)
	}

	// Toggle is last: read then write of OUT
	if trace[11].Kind != mmio.OpRead || trace[11].Addr != nrf54l.P2OutAddr {
		t.Errorf("Expected OUT read at op 11, got %v", trace[11])
	}
	if trace[12].Kind != mmio.OpWrite || trace[12].Addr != nrf54l.P2OutAddr {
		t.Errorf("Expected OUT write at op 12, got %v", trace[12])
	}

	// Idle performs nothing further
	for i := 0; i < 10; i++ {
		seq.Step()
	}
	if n := len(sim.Trace()); n != 13 {
		t.Errorf("Expected no accesses in Idle, trace grew to %d", n)
	}
}

func TestStepTracePerState(t *testing.T) {
	seq, sim := newSimSequence()

	expected := []int{10, 1, 2, 0}
	for i, want := range expected {
		sim.ResetTrace()
		state := seq.Step()
		if got := len(sim.Trace()); got != want {
			t.Errorf("Transition to %v: expected %d ops, got %d", state, want, got)
		}
		if i == 0 {
			for _, op := range sim.Trace() {
				if op.Kind != mmio.OpWrite {
					t.Errorf("Unlock performed a read: %v", op)
				}
			}
		}
	}
}

// A warm reset reruns the sequence on a device whose registers kept their
// values, so the pin goes back to its previous level. This is intended.
func TestRerunTogglesPinBack(t *testing.T) {
	sim := mmio.NewSim()
	p := nrf54l.New(sim)

	New(p).Advance()
	if v := sim.Peek(nrf54l.P2OutAddr); v != 0x200 {
		t.Fatalf("Expected OUT 0x200 after first boot, got 0x%08x", v)
	}

	New(p).Advance()
	if v := sim.Peek(nrf54l.P2OutAddr); v != 0 {
		t.Errorf("Expected OUT back to 0 after second boot, got 0x%08x", v)
	}
	if v := sim.Peek(nrf54l.PinCnfAddr(9)); v != 1 {
		t.Errorf("Expected PIN_CNF[9] to stay 1, got %d", v)
	}
}

func TestSequenceUnlocksModel(t *testing.T) {
	model := nrf54l.NewModel(mmio.NewSim())
	New(nrf54l.New(model)).Advance()

	for _, a := range nrf54l.DebugEnableAddrs() {
		if !model.Enabled(a) {
			t.Errorf("Expected 0x%08x to be enabled", uint32(a))
		}
	}
}

func TestDebugWriter(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(nil)

	seq, _ := newSimSequence()
	seq.Advance()
	seq.Step()

	if len(lines) != 4 {
		t.Fatalf("Expected 4 transition messages, got %d: %v", len(lines), lines)
	}
	if lines[0] != "boot: Uninitialized -> DebugUnlocked" {
		t.Errorf("Unexpected first message: %q", lines[0])
	}
	if !strings.HasSuffix(lines[3], "-> Idle") {
		t.Errorf("Expected last message to end in Idle, got %q", lines[3])
	}
}

// nopBus drops writes and reads zero.
type nopBus struct{}

func (nopBus) Load32(a mmio.Addr) uint32 { return 0 }
func (nopBus) Store32(a mmio.Addr, v uint32) {}

func TestSequenceWithoutWriterDoesNotAllocate(t *testing.T) {
	SetDebugWriter(nil)
	seq := New(nrf54l.New(nopBus{}))

	allocs := testing.AllocsPerRun(100, func() {
		seq.state = Uninitialized
		seq.Advance()
	})
	if allocs != 0 {
		t.Errorf("Expected no allocations without a debug writer, got %v", allocs)
	}
	if seq.State() != Idle {
		t.Errorf("Expected Idle, got %v", seq.State())
	}
}

func TestSetDebugWriterNil(t *testing.T) {
	SetDebugWriter(func(s string) {})
	if !debugEnabled {
		t.Error("Expected debug output enabled with a writer installed")
	}
	SetDebugWriter(nil)
	if debugEnabled {
		t.Error("Expected debug output disabled after SetDebugWriter(nil)")
	}
}

func TestStateString(t *testing.T) {
	if s := State(42).String(); s != "Unknown" {
		t.Errorf("Expected Unknown, got %q", s)
	}
	if s := PinToggled.String(); s != "PinToggled" {
		t.Errorf("Expected PinToggled, got %q", s)
	}
}
