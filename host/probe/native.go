package probe

import (
	"context"
	"fmt"
	"io"

	"nrf54boot/host/rsp"
)

// Native talks to a Black Magic Probe's gdb serial port directly, without
// gdb. It covers the operations needed to inspect a target.
type Native struct {
	c *rsp.Client
}

// NewNative creates a probe on the gdb serial port rw.
func NewNative(rw io.ReadWriter) *Native {
	return &Native{c: rsp.NewClient(rw)}
}

// Monitor runs a probe monitor command and returns its output lines.
func (n *Native) Monitor(ctx context.Context, command string) ([]string, error) {
	return n.c.Monitor(ctx, command)
}

// SWDScan scans the SWD bus and returns the target names in target number
// order.
func (n *Native) SWDScan(ctx context.Context) ([]string, error) {
	lines, err := n.c.Monitor(ctx, "swd_scan")
	if err != nil {
		return nil, err
	}
	return parseSWDScan(lines)
}

// EraseMass erases the attached target completely.
func (n *Native) EraseMass(ctx context.Context) error {
	lines, err := n.c.Monitor(ctx, "erase_mass")
	if err != nil {
		return err
	}
	if !lastLineIs(lines, "done") {
		return fmt.Errorf("mass erase did not complete: %q", lines)
	}
	return nil
}

// Attach attaches to target number id from the last scan.
func (n *Native) Attach(ctx context.Context, id int) error {
	return n.c.Attach(ctx, id)
}

// Detach detaches from the current target.
func (n *Native) Detach(ctx context.Context) error {
	return n.c.Detach(ctx)
}

// Peek reads a 32-bit word from target memory.
func (n *Native) Peek(ctx context.Context, addr uint32) (uint32, error) {
	return n.c.Read32(ctx, addr)
}
