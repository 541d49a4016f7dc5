// Package boot runs the one-shot boot sequence: unlock the debug enables,
// configure the debug pin as output, toggle it, then idle forever.
package boot

import "nrf54boot/nrf54l"

// State is a stage of the boot sequence. Transitions only go forward.
type State uint8

const (
	Uninitialized State = iota
	DebugUnlocked
	PinConfigured
	PinToggled
	Idle
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case DebugUnlocked:
		return "DebugUnlocked"
	case PinConfigured:
		return "PinConfigured"
	case PinToggled:
		return "PinToggled"
	case Idle:
		return "Idle"
	default:
		return "Unknown"
	}
}

// Sequence drives the boot state machine over a fixed set of peripherals.
type Sequence struct {
	p     *nrf54l.Peripherals
	state State
}

// New creates a sequence in the Uninitialized state.
func New(p *nrf54l.Peripherals) *Sequence {
	return &Sequence{p: p}
}

// State returns the current state.
func (s *Sequence) State() State {
	return s.state
}

// Step performs the next transition and returns the new state.
// In Idle it does nothing.
func (s *Sequence) Step() State {
	prev := s.state
	switch s.state {
	case Uninitialized:
		s.unlockDebug()
		s.state = DebugUnlocked
	case DebugUnlocked:
		s.p.PinCnf.Index(nrf54l.DebugPin).Set(nrf54l.PinCnfOutput)
		s.state = PinConfigured
	case PinConfigured:
		s.p.Out.Xor(1 << nrf54l.DebugPin)
		s.state = PinToggled
	case PinToggled:
		s.state = Idle
	case Idle:
		return Idle
	}
	if debugEnabled {
		debugPrintln("boot: " + prev.String() + " -> " + s.state.String())
	}
	return s.state
}

// Advance steps until Idle and returns.
func (s *Sequence) Advance() {
	for s.state != Idle {
		s.Step()
	}
}

// Run advances to Idle and halts. It never returns.
func (s *Sequence) Run() {
	s.Advance()
	Halt()
}

// unlockDebug writes open then enable to each debug-enable register. The two
// writes to one register must stay in this order; the registers themselves
// are independent.
func (s *Sequence) unlockDebug() {
	for _, pr := range s.p.DebugEnables() {
		pr.Reg.Set(nrf54l.UnlockOpen)
		pr.Reg.Set(nrf54l.UnlockEnable)
	}
}

// Halt spins forever. The device stays here until reset.
func Halt() {
	for {
	}
}
