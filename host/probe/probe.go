// Package probe drives a Black Magic Probe, either through gdb (BMDA or the
// probe's own gdb server) or directly over the remote serial protocol.
package probe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrScan is returned when swd_scan output cannot be understood.
var ErrScan = errors.New("probe: bad swd_scan output")

// Region is one entry of the target memory map
type Region struct {
	Addr   uint32
	Size   uint32
	Access string // "flash", "rw", "ro"
}

// parseSWDScan extracts target names from swd_scan monitor output:
//
//	Target voltage: 3.3V
//	Available Targets:
//	No. Att Driver
//	 1      Nordic nRF54L M33
//	 2      Nordic nRF54L Access Port
//
// Output without a target table means nothing answered the scan. Target
// numbers must count up from 1.
func parseSWDScan(lines []string) ([]string, error) {
	header := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "No.") {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, nil
	}

	var names []string
	for _, line := range lines[header+1:] {
		num, name, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrScan, line)
		}
		id, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrScan, line)
		}
		if id != len(names)+1 {
			return nil, fmt.Errorf("%w: target numbers are not contiguous at %d", ErrScan, id)
		}

		// The attach column holds '*' for the target gdb is attached to
		name = strings.TrimSpace(name)
		name = strings.TrimSpace(strings.TrimPrefix(name, "*"))
		names = append(names, name)
	}
	return names, nil
}

// parseMemoryMap parses gdb's "info mem" output into regions keyed by start
// address:
//
//	Using memory regions provided by the target.
//	Num Enb Low Addr   High Addr  Attrs
//	0   y   0x00000000 0x0017d000 flash blocksize 0x800 nocache
//	2   y   0x20000000 0x20040000 rw nocache
func parseMemoryMap(lines []string) (map[uint32]Region, error) {
	if len(lines) > 0 && strings.HasPrefix(lines[0], "Using memory regions") {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty memory map")
	}

	regions := make(map[uint32]Region)
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("bad memory map line %q", line)
		}
		low, err := strconv.ParseUint(fields[2], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad memory map line %q: %w", line, err)
		}
		high, err := strconv.ParseUint(fields[3], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad memory map line %q: %w", line, err)
		}
		if high < low || low > 0xFFFFFFFF || high-low > 0xFFFFFFFF {
			return nil, fmt.Errorf("bad memory range in %q", line)
		}
		regions[uint32(low)] = Region{
			Addr:   uint32(low),
			Size:   uint32(high - low),
			Access: fields[4],
		}
	}
	return regions, nil
}

// lastLineIs reports whether the final line of output equals s.
func lastLineIs(lines []string, s string) bool {
	return len(lines) > 0 && lines[len(lines)-1] == s
}
