package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nrf54boot/host/gdbmi"
)

// Commander runs MI commands. *gdbmi.Controller implements it.
type Commander interface {
	Write(ctx context.Context, command string) ([]gdbmi.Record, error)
	WriteUntil(ctx context.Context, command string, stop func(gdbmi.Record) bool) ([]gdbmi.Record, error)
	Console(ctx context.Context, command string) ([]gdbmi.Record, error)
}

// Blackmagic is a Black Magic Probe reached through gdb's extended-remote
// target.
type Blackmagic struct {
	mi Commander
}

// NewBlackmagic prepares gdb and connects it to the probe's gdb server at
// remote (host:port for BMDA, or a serial device).
func NewBlackmagic(ctx context.Context, mi Commander, remote string) (*Blackmagic, error) {
	// Peripheral registers are outside the target's memory map
	if _, err := mi.Write(ctx, "-gdb-set mem inaccessible-by-default 0"); err != nil {
		return nil, err
	}
	if _, err := mi.Write(ctx, "-target-select extended-remote "+remote); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", remote, err)
	}
	return &Blackmagic{mi: mi}, nil
}

// Version returns gdb's version line.
func (b *Blackmagic) Version(ctx context.Context) (string, error) {
	records, err := b.mi.Write(ctx, "-gdb-version")
	if err != nil {
		return "", err
	}
	lines := gdbmi.Lines(records, gdbmi.TypeConsole)
	if len(lines) == 0 {
		return "", fmt.Errorf("gdb did not report a version")
	}
	return lines[0], nil
}

// Monitor runs a probe monitor command and returns its output lines.
func (b *Blackmagic) Monitor(ctx context.Context, command string) ([]string, error) {
	records, err := b.mi.Console(ctx, "monitor "+command)
	if err != nil {
		return nil, err
	}
	return gdbmi.Lines(records, gdbmi.TypeTarget), nil
}

// BMDVersion returns the probe firmware's version lines.
func (b *Blackmagic) BMDVersion(ctx context.Context) ([]string, error) {
	lines, err := b.Monitor(ctx, "version")
	if err != nil {
		return nil, err
	}
	if len(lines) > 2 {
		lines = lines[:2]
	}
	return lines, nil
}

// SWDScan scans the SWD bus and returns the target names in target number
// order.
func (b *Blackmagic) SWDScan(ctx context.Context) ([]string, error) {
	lines, err := b.Monitor(ctx, "swd_scan")
	if err != nil {
		return nil, err
	}
	return parseSWDScan(lines)
}

// EraseMass erases the attached target completely.
func (b *Blackmagic) EraseMass(ctx context.Context) error {
	lines, err := b.Monitor(ctx, "erase_mass")
	if err != nil {
		return err
	}
	if !lastLineIs(lines, "done") {
		return fmt.Errorf("mass erase did not complete: %q", lines)
	}
	return nil
}

// Attach attaches to target number id from the last scan.
func (b *Blackmagic) Attach(ctx context.Context, id int) error {
	_, err := b.mi.Write(ctx, fmt.Sprintf("-target-attach %d", id))
	return err
}

// Detach detaches from the current target.
func (b *Blackmagic) Detach(ctx context.Context) error {
	_, err := b.mi.Write(ctx, "-target-detach")
	return err
}

// MemoryMap returns the attached target's memory regions keyed by start
// address.
func (b *Blackmagic) MemoryMap(ctx context.Context) (map[uint32]Region, error) {
	records, err := b.mi.Console(ctx, "info mem")
	if err != nil {
		return nil, err
	}
	return parseMemoryMap(gdbmi.Lines(records, gdbmi.TypeConsole))
}

// File sets the file gdb loads and reads symbols from.
func (b *Blackmagic) File(ctx context.Context, path string) error {
	_, err := b.mi.Write(ctx, "-file-exec-and-symbols "+gdbmi.Quote(path))
	return err
}

// Load writes the current file to the target.
func (b *Blackmagic) Load(ctx context.Context) error {
	_, err := b.mi.Write(ctx, "-target-download")
	return err
}

// CompareSections reports whether every loadable section of the current
// file matches target memory.
func (b *Blackmagic) CompareSections(ctx context.Context) (bool, error) {
	records, err := b.mi.Console(ctx, "compare-sections")
	if errors.Is(err, gdbmi.ErrCommand) {
		// gdb fails the command when a section differs
		return false, nil
	}
	if err != nil {
		return false, err
	}
	lines := gdbmi.Lines(records, gdbmi.TypeConsole)
	if len(lines) == 0 {
		return false, nil
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, ": matched.") {
			return false, nil
		}
	}
	return true, nil
}

// Start resets the target and runs it to main.
func (b *Blackmagic) Start(ctx context.Context) error {
	records, err := b.mi.WriteUntil(ctx, "-exec-run --start", func(rec gdbmi.Record) bool {
		return rec.Type == gdbmi.TypeNotify && rec.Message == "stopped"
	})
	if err != nil {
		return err
	}
	stop := records[len(records)-1]
	if reason, _ := stop.Value("reason"); strings.HasPrefix(reason, "exited") {
		return fmt.Errorf("target %s before reaching main", reason)
	}
	return nil
}

// Peek reads a 32-bit word from target memory.
func (b *Blackmagic) Peek(ctx context.Context, addr uint32) (uint32, error) {
	records, err := b.mi.Write(ctx, fmt.Sprintf("-data-evaluate-expression {unsigned}0x%x", addr))
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if rec.Type != gdbmi.TypeResult {
			continue
		}
		s, _ := rec.Value("value")
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("peek 0x%08x: bad value %q", addr, s)
		}
		return uint32(v), nil
	}
	return 0, fmt.Errorf("peek 0x%08x: no result", addr)
}
