package nrf54l

import (
	"sync"

	"nrf54boot/mmio"
)

type protectState uint8

const (
	protectLocked protectState = iota
	protectOpen
	protectEnabled
)

// Model is a simulated bus that also models how the TAMPC debug-enable CTRL
// registers accept writes: a write without the key is dropped, an enable is
// only accepted after an open on the same register, and any other keyed
// write closes the register again. All accesses are forwarded to the
// underlying Sim, so its trace stays complete.
type Model struct {
	*mmio.Sim

	mu      sync.Mutex
	protect map[mmio.Addr]protectState
}

// NewModel wraps sim.
func NewModel(sim *mmio.Sim) *Model {
	m := &Model{
		Sim:     sim,
		protect: make(map[mmio.Addr]protectState),
	}
	for _, a := range DebugEnableAddrs() {
		m.protect[a] = protectLocked
	}
	return m
}

// Store32 implements mmio.Bus.
func (m *Model) Store32(a mmio.Addr, v uint32) {
	m.Sim.Store32(a, v)

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.protect[a]
	if !ok || !HasKey(v) {
		return
	}
	switch {
	case v == UnlockOpen:
		if st != protectEnabled {
			m.protect[a] = protectOpen
		}
	case v == UnlockEnable && st == protectOpen:
		m.protect[a] = protectEnabled
	case st == protectOpen:
		m.protect[a] = protectLocked
	}
}

// Enabled reports whether the debug-enable register at a has accepted an
// enable write.
func (m *Model) Enabled(a mmio.Addr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.protect[a] == protectEnabled
}
