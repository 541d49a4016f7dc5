// Package bmda runs the Black Magic Debug App, the host-side gdb server for
// Black Magic Probe compatible adapters.
package bmda

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ErrExited is returned when BMDA quits during startup, and is the
// cancellation cause of a Watch context when it quits later.
var ErrExited = errors.New("BMDA quit unexpectedly")

// Options controls how BMDA is started
type Options struct {
	Log   string        // file receiving stdout and stderr
	Grace time.Duration // how long BMDA must survive to count as started
	Env   []string      // extra environment, KEY=VALUE
}

// Process is a running BMDA
type Process struct {
	cmd    *exec.Cmd
	exited chan struct{}
	err    error // valid after exited is closed
}

// Start runs argv with "-v 1" appended and waits out the grace period. If
// BMDA exits in that time the returned error wraps ErrExited and carries the
// log contents.
func Start(ctx context.Context, argv []string, opts Options) (*Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("BMDA command line is empty")
	}
	if opts.Grace <= 0 {
		opts.Grace = 100 * time.Millisecond
	}

	logFile, err := os.Create(opts.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create BMDA log: %w", err)
	}
	// The child holds its own handle
	defer logFile.Close()

	args := append(append([]string{}, argv[1:]...), "-v", "1")
	cmd := exec.Command(argv[0], args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	p := &Process{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.exited)
	}()

	timer := time.NewTimer(opts.Grace)
	defer timer.Stop()
	select {
	case <-timer.C:
		return p, nil
	case <-p.exited:
		out, _ := os.ReadFile(opts.Log)
		return nil, fmt.Errorf("%w (%v):\n%s", ErrExited, p.err, strings.TrimSpace(string(out)))
	case <-ctx.Done():
		_ = p.Stop()
		return nil, ctx.Err()
	}
}

// Stop terminates BMDA and waits for it to exit.
func (p *Process) Stop() error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = p.cmd.Process.Kill()
	}

	select {
	case <-p.exited:
	case <-time.After(5 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	return nil
}

// Exited is closed once BMDA has exited.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Watch returns a context that is canceled when BMDA exits. The cause then
// wraps ErrExited, so a step failing on the lost connection can be reported
// as what it is.
func (p *Process) Watch(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-p.exited:
			cancel(fmt.Errorf("%w (%v)", ErrExited, p.err))
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}
