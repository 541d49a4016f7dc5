package harness

import (
	"context"
	"errors"
	"fmt"

	"nrf54boot/nrf54l"
)

// VerifyBoot reads back the registers the boot firmware writes and checks
// that its effects are visible: every debug-enable CTRL register has VALUE
// set, the debug pin is an output and driven high. Reset values are assumed
// for the pin, so this holds once after each power on. All mismatches are
// reported together.
func VerifyBoot(ctx context.Context, p Peeker) error {
	var errs []error

	for i, a := range nrf54l.DebugEnableAddrs() {
		name := nrf54l.DebugEnableNames[i]
		addr := uint32(a)
		v, err := p.Peek(ctx, addr)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if v&nrf54l.LevelEnable == 0 {
			errs = append(errs, fmt.Errorf("%w: %s at 0x%08x is 0x%08x, not enabled", ErrVerify, name, addr, v))
		}
	}

	pinCnf := uint32(nrf54l.PinCnfAddr(nrf54l.DebugPin))
	v, err := p.Peek(ctx, pinCnf)
	if err != nil {
		return fmt.Errorf("failed to read PIN_CNF[%d]: %w", nrf54l.DebugPin, err)
	}
	if v&nrf54l.PinCnfOutput == 0 {
		errs = append(errs, fmt.Errorf("%w: P2.%02d is not an output (PIN_CNF 0x%08x)", ErrVerify, nrf54l.DebugPin, v))
	}

	out := uint32(nrf54l.P2OutAddr)
	v, err = p.Peek(ctx, out)
	if err != nil {
		return fmt.Errorf("failed to read P2.OUT: %w", err)
	}
	if v&(1<<nrf54l.DebugPin) == 0 {
		errs = append(errs, fmt.Errorf("%w: P2.%02d was not toggled (OUT 0x%08x)", ErrVerify, nrf54l.DebugPin, v))
	}

	return errors.Join(errs...)
}
