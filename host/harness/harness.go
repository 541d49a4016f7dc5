// Package harness runs the nRF54L provisioning scenario against a Black
// Magic Probe and checks what the boot firmware left behind.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"nrf54boot/host/probe"
)

var (
	// ErrUnexpectedScan is returned when a scan shows a different device
	// state than the step expects, or an unknown target list.
	ErrUnexpectedScan = errors.New("unexpected scan result")

	// ErrNoTargets is returned when a scan finds nothing.
	ErrNoTargets = errors.New("no targets")

	// ErrMemoryMap is returned when the target memory map is not the nRF54L's.
	ErrMemoryMap = errors.New("unexpected memory map")

	// ErrVerify is returned when the boot firmware's register writes are
	// not visible on the target.
	ErrVerify = errors.New("boot verification failed")
)

// Peeker reads target memory
type Peeker interface {
	Peek(ctx context.Context, addr uint32) (uint32, error)
}

// Probe is the debug adapter. *probe.Blackmagic implements it.
type Probe interface {
	Peeker
	SWDScan(ctx context.Context) ([]string, error)
	Attach(ctx context.Context, id int) error
	Detach(ctx context.Context) error
	EraseMass(ctx context.Context) error
	MemoryMap(ctx context.Context) (map[uint32]probe.Region, error)
	File(ctx context.Context, path string) error
	Load(ctx context.Context) error
	CompareSections(ctx context.Context) (bool, error)
	Start(ctx context.Context) error
}

// Power switches the target supply. *power.Orbtrace implements it.
type Power interface {
	Cycle(ctx context.Context) error
}

// Harness holds what the scenario needs
type Harness struct {
	Probe    Probe
	Power    Power
	Log      *log.Logger
	Firmware string // ELF image with the boot firmware
	UICRHex  string // UICR image enabling APPROTECT
}

// Expected nRF54L15 memory map
var memoryMap = []probe.Region{
	{Addr: 0x00000000, Size: 1524 * 1024}, // RRAM
	{Addr: 0x00FFD000, Size: 0x1000},      // UICR
	{Addr: 0x20000000, Size: 256 * 1024},  // RAM
}

var regionNames = map[uint32]string{
	0x00000000: "RRAM",
	0x00FFD000: "UICR",
	0x20000000: "RAM",
}

func (h *Harness) logf(format string, args ...any) {
	if h.Log == nil {
		h.Log = log.New(io.Discard, "", 0)
	}
	h.Log.Printf(format, args...)
}

// Run takes the device from any state through erase, auto-lock, unlock,
// firmware load and boot check, a mass erase test, and finally re-locks it
// with APPROTECT. It stops at the first failed step.
func (h *Harness) Run(ctx context.Context) error {
	// Known initial state: erased

	h.logf("Turning on target")
	if err := h.Power.Cycle(ctx); err != nil {
		return err
	}

	h.logf("Performing SWD scan")
	state, err := h.scan(ctx)
	if err != nil {
		return err
	}
	var ctrlAP int
	switch state {
	case Locked:
		ctrlAP = lockedCtrlAP
	case Unlocked:
		ctrlAP = unlockedCtrlAP
	}
	h.logf("Found %s", state)

	h.logf("Performing mass erase via CTRL-AP")
	if err := h.eraseVia(ctx, ctrlAP); err != nil {
		return err
	}
	h.logf("Rescanning")
	if err := h.expect(ctx, Unlocked); err != nil {
		return err
	}

	// An erased device locks itself at power on

	h.logf("Cycling target power")
	if err := h.Power.Cycle(ctx); err != nil {
		return err
	}
	h.logf("Performing SWD scan")
	if err := h.expect(ctx, Locked); err != nil {
		return err
	}

	h.logf("Unlocking target through mass erase")
	if err := h.eraseVia(ctx, lockedCtrlAP); err != nil {
		return err
	}
	h.logf("Rescanning")
	if err := h.expect(ctx, Unlocked); err != nil {
		return err
	}

	if err := h.Probe.Attach(ctx, coreTarget); err != nil {
		return fmt.Errorf("could not attach: %w", err)
	}
	regions, err := h.Probe.MemoryMap(ctx)
	if err != nil {
		return fmt.Errorf("could not read memory map: %w", err)
	}
	if err := CheckMemoryMap(regions); err != nil {
		return err
	}

	h.logf("Loading firmware")
	if err := h.Probe.File(ctx, h.Firmware); err != nil {
		return fmt.Errorf("gdb could not open firmware file: %w", err)
	}
	if err := h.load(ctx); err != nil {
		return err
	}
	if err := h.Probe.Detach(ctx); err != nil {
		return fmt.Errorf("could not detach: %w", err)
	}

	// The firmware opens debug access at every boot

	h.logf("Cycling target power")
	if err := h.attachUnlocked(ctx); err != nil {
		return err
	}

	h.logf("Checking boot results")
	if err := VerifyBoot(ctx, h.Probe); err != nil {
		return err
	}

	h.logf("Running to main")
	if err := h.Probe.Start(ctx); err != nil {
		return fmt.Errorf("starting firmware failed: %w", err)
	}

	h.logf("Testing mass erase")
	if err := h.Probe.EraseMass(ctx); err != nil {
		return fmt.Errorf("could not erase: %w", err)
	}
	matched, err := h.Probe.CompareSections(ctx)
	if err != nil {
		return err
	}
	if matched {
		return fmt.Errorf("verifying rram contents succeeded unexpectedly after erase")
	}

	h.logf("Loading firmware again")
	if err := h.load(ctx); err != nil {
		return err
	}
	if err := h.Probe.Detach(ctx); err != nil {
		return fmt.Errorf("could not detach: %w", err)
	}

	h.logf("Cycling target power")
	if err := h.attachUnlocked(ctx); err != nil {
		return err
	}

	h.logf("Locking device through UICR")
	if err := h.Probe.File(ctx, h.UICRHex); err != nil {
		return fmt.Errorf("gdb could not open UICR hex file: %w", err)
	}
	if err := h.Probe.Load(ctx); err != nil {
		return fmt.Errorf("writing UICR failed: %w", err)
	}
	if err := h.Probe.Detach(ctx); err != nil {
		return fmt.Errorf("could not detach: %w", err)
	}

	h.logf("Rescanning")
	return h.expect(ctx, Locked)
}

// scan scans and classifies. Finding nothing is an error.
func (h *Harness) scan(ctx context.Context) (DeviceState, error) {
	names, err := h.Probe.SWDScan(ctx)
	if err != nil {
		return None, fmt.Errorf("SWD scan failed: %w", err)
	}
	state, err := Classify(names)
	if err != nil {
		return None, err
	}
	if state == None {
		return None, ErrNoTargets
	}
	return state, nil
}

func (h *Harness) expect(ctx context.Context, want DeviceState) error {
	state, err := h.scan(ctx)
	if err != nil {
		return err
	}
	if state != want {
		return fmt.Errorf("%w: found %s, expected %s", ErrUnexpectedScan, state, want)
	}
	h.logf("Found %s", state)
	return nil
}

func (h *Harness) eraseVia(ctx context.Context, ctrlAP int) error {
	if err := h.Probe.Attach(ctx, ctrlAP); err != nil {
		return fmt.Errorf("could not attach to CTRL-AP: %w", err)
	}
	if err := h.Probe.EraseMass(ctx); err != nil {
		return fmt.Errorf("could not erase: %w", err)
	}
	if err := h.Probe.Detach(ctx); err != nil {
		return fmt.Errorf("could not detach from CTRL-AP: %w", err)
	}
	return nil
}

// load writes the current file and checks it back.
func (h *Harness) load(ctx context.Context) error {
	if err := h.Probe.Load(ctx); err != nil {
		return fmt.Errorf("writing firmware failed: %w", err)
	}
	matched, err := h.Probe.CompareSections(ctx)
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("verifying rram contents failed")
	}
	return nil
}

// attachUnlocked power cycles, expects the device to come up unlocked and
// attaches to the core.
func (h *Harness) attachUnlocked(ctx context.Context) error {
	if err := h.Power.Cycle(ctx); err != nil {
		return err
	}
	h.logf("Performing SWD scan")
	if err := h.expect(ctx, Unlocked); err != nil {
		return err
	}
	if err := h.Probe.Attach(ctx, coreTarget); err != nil {
		return fmt.Errorf("could not attach: %w", err)
	}
	return nil
}

// CheckMemoryMap checks for exactly the RRAM, UICR and RAM regions of the
// nRF54L15.
func CheckMemoryMap(regions map[uint32]probe.Region) error {
	rest := make(map[uint32]probe.Region, len(regions))
	for addr, r := range regions {
		rest[addr] = r
	}

	for _, want := range memoryMap {
		name := regionNames[want.Addr]
		got, ok := rest[want.Addr]
		if !ok {
			return fmt.Errorf("%w: %s not in memory map", ErrMemoryMap, name)
		}
		if got.Size != want.Size {
			return fmt.Errorf("%w: unexpected %s size: %d", ErrMemoryMap, name, got.Size)
		}
		delete(rest, want.Addr)
	}

	if len(rest) > 0 {
		var extra []string
		for _, r := range rest {
			extra = append(extra, fmt.Sprintf("0x%08x+0x%x", r.Addr, r.Size))
		}
		sort.Strings(extra)
		return fmt.Errorf("%w: unexpected regions %v", ErrMemoryMap, extra)
	}
	return nil
}
