package gdbmi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrCommand is returned when gdb answers a command with ^error.
	ErrCommand = errors.New("gdb command failed")

	// ErrClosed is returned once gdb's output has ended.
	ErrClosed = errors.New("gdb output closed")
)

// TraceFunc receives every record read from gdb
type TraceFunc func(Record)

// Controller sends MI commands and collects the records gdb answers with.
// Commands are serialized; records that arrive between commands (async
// notifications) are returned with the next command's records.
type Controller struct {
	w       io.Writer
	records chan Record
	closer  func() error
	done    chan struct{}
	once    sync.Once

	mu    sync.Mutex
	token uint64

	traceMu sync.Mutex
	trace   TraceFunc

	readErr error // valid after records is closed
}

// NewController wraps gdb's stdout (r) and stdin (w). It starts a goroutine
// that reads r until EOF.
func NewController(r io.Reader, w io.Writer) *Controller {
	c := &Controller{
		w:       w,
		records: make(chan Record, 64),
		closer:  func() error { return nil },
		done:    make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

// Start runs gdb with argv (program and extra arguments) in MI4 mode and
// waits for its first prompt.
func Start(ctx context.Context, argv []string) (*Controller, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("gdb command line is empty")
	}

	args := append(append([]string{}, argv[1:]...), "--interpreter=mi4")
	cmd := exec.Command(argv[0], args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	c := NewController(stdout, stdin)
	c.closer = func() error {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}

	// Skip the initial wall of text
	if _, err := c.WaitPrompt(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("gdb did not start: %w", err)
	}
	return c, nil
}

// SetTrace installs fn to observe every record (nil to disable).
func (c *Controller) SetTrace(fn TraceFunc) {
	c.traceMu.Lock()
	defer c.traceMu.Unlock()
	c.trace = fn
}

func (c *Controller) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rec, err := ParseLine(scanner.Text())
		if err != nil {
			rec = Record{Type: TypeOutput, Text: scanner.Text()}
		}
		c.traceMu.Lock()
		trace := c.trace
		c.traceMu.Unlock()
		if trace != nil {
			trace(rec)
		}
		select {
		case c.records <- rec:
		case <-c.done:
			return
		}
	}
	c.readErr = scanner.Err()
	close(c.records)
}

func (c *Controller) next(ctx context.Context) (Record, error) {
	select {
	case rec, ok := <-c.records:
		if !ok {
			if c.readErr != nil {
				return Record{}, fmt.Errorf("%w: %v", ErrClosed, c.readErr)
			}
			return Record{}, ErrClosed
		}
		return rec, nil
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

// WaitPrompt collects records up to the next (gdb) prompt.
func (c *Controller) WaitPrompt(ctx context.Context) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Record
	for {
		rec, err := c.next(ctx)
		if err != nil {
			return out, err
		}
		if rec.Type == TypePrompt {
			return out, nil
		}
		out = append(out, rec)
	}
}

// Write sends one command and returns the records up to and including its
// result record. A ^error result is returned as an error wrapping ErrCommand.
func (c *Controller) Write(ctx context.Context, command string) ([]Record, error) {
	return c.WriteUntil(ctx, command, nil)
}

// WriteUntil is like Write, but after a successful result it keeps
// collecting records until stop returns true. Used for commands whose real
// outcome is an async record, such as -exec-run.
func (c *Controller) WriteUntil(ctx context.Context, command string, stop func(Record) bool) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	token := strconv.FormatUint(c.token, 10)
	if _, err := io.WriteString(c.w, token+command+"\n"); err != nil {
		return nil, fmt.Errorf("failed to write %q: %w", command, err)
	}

	var out []Record
	gotResult := false
	for {
		rec, err := c.next(ctx)
		if err != nil {
			return out, fmt.Errorf("%s: %w", command, err)
		}
		if rec.Type == TypePrompt {
			continue
		}
		out = append(out, rec)

		if !gotResult {
			if rec.Type != TypeResult || rec.Token != token {
				continue
			}
			if rec.Message == "error" {
				msg, _ := rec.Value("msg")
				return out, fmt.Errorf("%w: %s: %s", ErrCommand, command, msg)
			}
			gotResult = true
			if stop == nil {
				return out, nil
			}
			continue
		}
		if stop(rec) {
			return out, nil
		}
	}
}

// Console runs a CLI command through the MI console interpreter.
func (c *Controller) Console(ctx context.Context, command string) ([]Record, error) {
	return c.Write(ctx, "-interpreter-exec console "+Quote(command))
}

// Close stops gdb.
func (c *Controller) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.closer()
}

// Lines returns the text of records of type t, split into trimmed
// non-empty lines.
func Lines(records []Record, t RecordType) []string {
	var out []string
	for _, rec := range records {
		if rec.Type != t {
			continue
		}
		for _, line := range strings.Split(rec.Text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}
