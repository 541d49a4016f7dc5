// Package config holds the provisioning harness configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/shlex"
)

// Environment variables naming the external tools. Each holds one program
// path, used as is. Extra arguments go in the matching *_ARGS variable and
// are split shell-style.
const (
	EnvBlackmagic = "BLACKMAGIC"
	EnvOrbtrace   = "ORBTRACE"
	EnvGDB        = "GDB"

	EnvBlackmagicArgs = "BLACKMAGIC_ARGS"
	EnvOrbtraceArgs   = "ORBTRACE_ARGS"
	EnvGDBArgs        = "GDB_ARGS"
)

// Config is the harness configuration
type Config struct {
	Blackmagic []string // BMDA command line
	Orbtrace   []string // orbtrace command line
	GDB        []string // gdb command line

	Firmware string // ELF image to load
	UICRHex  string // hex file that enables APPROTECT
	BMDALog  string // BMDA output log
	Remote   string // BMDA gdb server address

	Settle time.Duration // wait after switching power
	Debug  bool          // trace gdb/MI records

	VerifyTTY string // native probe gdb port; skips the scenario when set
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// FromEnv builds a configuration with the tool command lines taken from the
// environment, falling back to defaults
func FromEnv(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{}
	var err error
	if cfg.Blackmagic, err = commandFromEnv(getenv, EnvBlackmagic, EnvBlackmagicArgs, "blackmagic"); err != nil {
		return nil, err
	}
	if cfg.Orbtrace, err = commandFromEnv(getenv, EnvOrbtrace, EnvOrbtraceArgs, "orbtrace"); err != nil {
		return nil, err
	}
	if cfg.GDB, err = commandFromEnv(getenv, EnvGDB, EnvGDBArgs, "arm-none-eabi-gdb"); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Validate checks that the configuration can be used
func (c *Config) Validate() error {
	if c.VerifyTTY != "" {
		return nil
	}
	if c.Firmware == "" {
		return fmt.Errorf("firmware image not set")
	}
	if c.UICRHex == "" {
		return fmt.Errorf("UICR hex file not set")
	}
	if c.Settle < 0 {
		return fmt.Errorf("negative settle time %v", c.Settle)
	}
	return nil
}

// commandFromEnv builds a command line from a program variable and an
// arguments variable. The program is never split, so Windows paths and paths
// with spaces survive.
func commandFromEnv(getenv func(string) string, progVar, argsVar, def string) ([]string, error) {
	prog := getenv(progVar)
	if prog == "" {
		prog = def
	}
	argv := []string{prog}

	if v := getenv(argsVar); v != "" {
		args, err := shlex.Split(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse $%s: %w", argsVar, err)
		}
		argv = append(argv, args...)
	}
	return argv, nil
}

// applyDefaults fills in missing configuration values
func applyDefaults(c *Config) {
	if len(c.Blackmagic) == 0 {
		c.Blackmagic = []string{"blackmagic"}
	}
	if len(c.Orbtrace) == 0 {
		c.Orbtrace = []string{"orbtrace"}
	}
	if len(c.GDB) == 0 {
		c.GDB = []string{"arm-none-eabi-gdb"}
	}
	if c.Firmware == "" {
		c.Firmware = "nrf54l_firmware.elf"
	}
	if c.UICRHex == "" {
		c.UICRHex = "nrf54l_uicr_approtect.hex"
	}
	if c.BMDALog == "" {
		c.BMDALog = "bmda_log.txt"
	}
	if c.Remote == "" {
		c.Remote = "localhost:2000"
	}
	if c.Settle == 0 {
		c.Settle = 100 * time.Millisecond
	}
}
