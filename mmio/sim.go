package mmio

import (
	"fmt"
	"sync"
)

// OpKind distinguishes reads from writes in a Sim trace.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpWrite
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Op is one recorded bus access.
type Op struct {
	Kind  OpKind
	Addr  Addr
	Value uint32
}

func (o Op) String() string {
	return fmt.Sprintf("%s 0x%08x = 0x%08x", o.Kind, uint32(o.Addr), o.Value)
}

// Sim is a simulated bus: sparse 32-bit memory, zero-initialized, that
// records every Load32 and Store32 in order.
type Sim struct {
	mu    sync.Mutex
	mem   map[Addr]uint32
	trace []Op
}

// NewSim creates an empty simulated bus.
func NewSim() *Sim {
	return &Sim{
		mem: make(map[Addr]uint32),
	}
}

// Load32 implements Bus.
func (s *Sim) Load32(a Addr) uint32 {
	checkAligned(a)
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.mem[a]
	s.trace = append(s.trace, Op{Kind: OpRead, Addr: a, Value: v})
	return v
}

// Store32 implements Bus.
func (s *Sim) Store32(a Addr, v uint32) {
	checkAligned(a)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem[a] = v
	s.trace = append(s.trace, Op{Kind: OpWrite, Addr: a, Value: v})
}

// Peek reads memory without recording a trace entry.
func (s *Sim) Peek(a Addr) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem[a]
}

// Poke writes memory without recording a trace entry.
func (s *Sim) Poke(a Addr, v uint32) {
	checkAligned(a)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[a] = v
}

// Trace returns a copy of the recorded accesses, oldest first.
func (s *Sim) Trace() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Op, len(s.trace))
	copy(out, s.trace)
	return out
}

// ResetTrace drops recorded accesses but keeps memory contents.
func (s *Sim) ResetTrace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = s.trace[:0]
}

// Writes returns the values written to a, in order.
func (s *Sim) Writes(a Addr) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []uint32
	for _, op := range s.trace {
		if op.Kind == OpWrite && op.Addr == a {
			out = append(out, op.Value)
		}
	}
	return out
}

func checkAligned(a Addr) {
	if a%WordSize != 0 {
		panic(fmt.Sprintf("mmio: unaligned 32-bit access at 0x%08x", uint32(a)))
	}
}
