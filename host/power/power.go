// Package power switches target power through an Orbtrace adapter.
package power

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Runner runs an external command line. exec is used unless replaced.
type Runner func(ctx context.Context, argv []string) error

// Orbtrace drives the orbtrace CLI's VTPWR output
type Orbtrace struct {
	Cmd    []string      // orbtrace command line
	Settle time.Duration // wait after each switch
	Run    Runner
}

// New creates a power switch using cmd.
func New(cmd []string, settle time.Duration) *Orbtrace {
	return &Orbtrace{Cmd: cmd, Settle: settle, Run: runCommand}
}

func runCommand(ctx context.Context, argv []string) error {
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", argv[0], err, out)
	}
	return nil
}

// Set switches the 5V target supply on or off and waits for it to settle.
func (o *Orbtrace) Set(ctx context.Context, on bool) error {
	if len(o.Cmd) == 0 {
		return fmt.Errorf("orbtrace command line is empty")
	}
	state := "off"
	if on {
		state = "on"
	}

	argv := append(append([]string{}, o.Cmd...), "--voltage", "vtpwr,5", "--power", "vtpwr,"+state)
	run := o.Run
	if run == nil {
		run = runCommand
	}
	if err := run(ctx, argv); err != nil {
		return fmt.Errorf("failed to switch power %s: %w", state, err)
	}

	timer := time.NewTimer(o.Settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cycle turns the target off and back on.
func (o *Orbtrace) Cycle(ctx context.Context) error {
	if err := o.Set(ctx, false); err != nil {
		return err
	}
	return o.Set(ctx, true)
}
