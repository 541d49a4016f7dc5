package config

import (
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !reflect.DeepEqual(cfg.GDB, []string{"arm-none-eabi-gdb"}) {
		t.Errorf("Expected default gdb, got %v", cfg.GDB)
	}
	if cfg.Remote != "localhost:2000" {
		t.Errorf("Expected default remote localhost:2000, got %s", cfg.Remote)
	}
	if cfg.Settle != 100*time.Millisecond {
		t.Errorf("Expected 100ms settle, got %v", cfg.Settle)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestFromEnvCommandLines(t *testing.T) {
	testCases := []struct {
		name     string
		env      map[string]string
		gdb      []string
		bmda     []string
		orbtrace []string
	}{
		{
			name:     "defaults",
			env:      map[string]string{},
			gdb:      []string{"arm-none-eabi-gdb"},
			bmda:     []string{"blackmagic"},
			orbtrace: []string{"orbtrace"},
		},
		{
			name:     "windows path",
			env:      map[string]string{EnvGDB: `C:\tools\arm-none-eabi-gdb.exe`},
			gdb:      []string{`C:\tools\arm-none-eabi-gdb.exe`},
			bmda:     []string{"blackmagic"},
			orbtrace: []string{"orbtrace"},
		},
		{
			name:     "path with spaces",
			env:      map[string]string{EnvBlackmagic: "/opt/Black Magic/blackmagic"},
			gdb:      []string{"arm-none-eabi-gdb"},
			bmda:     []string{"/opt/Black Magic/blackmagic"},
			orbtrace: []string{"orbtrace"},
		},
		{
			name: "arguments split shell-style",
			env: map[string]string{
				EnvBlackmagic:     "/opt/Black Magic/blackmagic",
				EnvBlackmagicArgs: `--serial "ABC 123"`,
				EnvGDB:            "gdb-multiarch",
				EnvGDBArgs:        "-nx",
				EnvOrbtraceArgs:   "-s 1234",
			},
			gdb:      []string{"gdb-multiarch", "-nx"},
			bmda:     []string{"/opt/Black Magic/blackmagic", "--serial", "ABC 123"},
			orbtrace: []string{"orbtrace", "-s", "1234"},
		},
	}

	for _, tc := range testCases {
		cfg, err := FromEnv(func(k string) string { return tc.env[k] })
		if err != nil {
			t.Errorf("%s: FromEnv failed: %v", tc.name, err)
			continue
		}
		if !reflect.DeepEqual(cfg.GDB, tc.gdb) {
			t.Errorf("%s: expected gdb %q, got %q", tc.name, tc.gdb, cfg.GDB)
		}
		if !reflect.DeepEqual(cfg.Blackmagic, tc.bmda) {
			t.Errorf("%s: expected blackmagic %q, got %q", tc.name, tc.bmda, cfg.Blackmagic)
		}
		if !reflect.DeepEqual(cfg.Orbtrace, tc.orbtrace) {
			t.Errorf("%s: expected orbtrace %q, got %q", tc.name, tc.orbtrace, cfg.Orbtrace)
		}
	}
}

func TestFromEnvBadQuoting(t *testing.T) {
	_, err := FromEnv(func(k string) string {
		if k == EnvOrbtraceArgs {
			return `--serial "unterminated`
		}
		return ""
	})
	if err == nil {
		t.Error("Expected error for unterminated quote")
	}

	// Quotes in the program path are part of the path
	cfg, err := FromEnv(func(k string) string {
		if k == EnvOrbtrace {
			return `orbtrace "unterminated`
		}
		return ""
	})
	if err != nil || len(cfg.Orbtrace) != 1 {
		t.Errorf("Expected program path used as is, got %q (%v)", cfg.Orbtrace, err)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Firmware = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for missing firmware")
	}

	// Verify-only mode needs no images
	cfg.VerifyTTY = "/dev/ttyBmpGdb"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected verify-only config to validate, got %v", err)
	}
}
