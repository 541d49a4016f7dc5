package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nrf54boot/host/bmda"
	"nrf54boot/host/config"
	"nrf54boot/host/gdbmi"
	"nrf54boot/host/harness"
	"nrf54boot/host/power"
	"nrf54boot/host/probe"
	"nrf54boot/host/serial"
)

var defaults = config.DefaultConfig()

var (
	firmware  = flag.String("firmware", defaults.Firmware, "Firmware ELF image")
	uicr      = flag.String("uicr", defaults.UICRHex, "UICR image enabling APPROTECT")
	bmdaLog   = flag.String("bmda-log", defaults.BMDALog, "BMDA output log")
	remote    = flag.String("remote", defaults.Remote, "BMDA gdb server address")
	debug     = flag.Bool("debug", false, "Trace gdb/MI records")
	verifyTTY = flag.String("verify-tty", "", "Only verify boot results through a native probe on this gdb serial port")
	settle    = flag.Duration("settle", defaults.Settle, "Wait after switching target power")
)

func main() {
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.FromEnv(nil)
	if err != nil {
		logger.Fatalf("Error: %v", err)
	}
	cfg.Firmware = *firmware
	cfg.UICRHex = *uicr
	cfg.BMDALog = *bmdaLog
	cfg.Remote = *remote
	cfg.Debug = *debug
	cfg.VerifyTTY = *verifyTTY
	cfg.Settle = *settle
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.VerifyTTY != "" {
		err = verify(ctx, cfg, logger)
	} else {
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Printf("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

// run starts BMDA and gdb and runs the provisioning scenario.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	server, err := bmda.Start(ctx, cfg.Blackmagic, bmda.Options{Log: cfg.BMDALog})
	if err != nil {
		return err
	}
	defer server.Stop()

	// Fail the current step as soon as BMDA dies
	ctx, cancel := server.Watch(ctx)
	defer cancel()

	mi, err := gdbmi.Start(ctx, cfg.GDB)
	if err != nil {
		return err
	}
	defer mi.Close()
	if cfg.Debug {
		mi.SetTrace(func(rec gdbmi.Record) {
			logger.Printf("gdb: %s", rec)
		})
	}

	bmp, err := probe.NewBlackmagic(ctx, mi, cfg.Remote)
	if err != nil {
		return err
	}

	version, err := bmp.Version(ctx)
	if err != nil {
		return err
	}
	logger.Print(version)
	lines, err := bmp.BMDVersion(ctx)
	if err != nil {
		return err
	}
	for _, line := range lines {
		logger.Print(line)
	}

	h := &harness.Harness{
		Probe:    bmp,
		Power:    power.New(cfg.Orbtrace, cfg.Settle),
		Log:      logger,
		Firmware: cfg.Firmware,
		UICRHex:  cfg.UICRHex,
	}
	if err := h.Run(ctx); err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, bmda.ErrExited) {
			return fmt.Errorf("%w; last step: %v", cause, err)
		}
		return err
	}
	logger.Print("All steps passed")
	return nil
}

// verify attaches to the core through a native probe and checks the boot
// results, without gdb.
func verify(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	port, err := serial.Open(serial.DefaultConfig(cfg.VerifyTTY))
	if err != nil {
		return err
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", cfg.VerifyTTY, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	bmp := probe.NewNative(port)
	logger.Print("Performing SWD scan")
	names, err := bmp.SWDScan(ctx)
	if err != nil {
		return err
	}
	state, err := harness.Classify(names)
	if err != nil {
		return err
	}
	logger.Printf("Found %s", state)
	if state != harness.Unlocked {
		return fmt.Errorf("%w: found %s, expected %s", harness.ErrUnexpectedScan, state, harness.Unlocked)
	}

	if err := bmp.Attach(ctx, 1); err != nil {
		return fmt.Errorf("could not attach: %w", err)
	}
	defer bmp.Detach(ctx)

	logger.Print("Checking boot results")
	if err := harness.VerifyBoot(ctx, bmp); err != nil {
		return err
	}
	logger.Print("Boot results verified")
	return nil
}
