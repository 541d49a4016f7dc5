// Package serial opens the probe's serial ports.
package serial

import (
	"errors"
	"io"
)

// ErrTimeout is returned by Read when no byte arrived within the configured
// read timeout. It reports Timeout() == true so callers can retry.
var ErrTimeout error = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "serial: read timeout" }
func (timeoutError) Timeout() bool { return true }

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyBmpGdb", "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ACM ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for a Black Magic Probe gdb port
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100, // 100ms read timeout
	}
}

// IsTimeout reports whether err is a read timeout
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
