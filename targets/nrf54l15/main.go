//go:build tinygo

// Command nrf54l15 is the boot firmware for the nRF54L15 application core.
//
// Stock TinyGo has no nrf54l15 target and no runtime support for the chip,
// so building this needs a TinyGo tree that adds both. The image the harness
// loads by default, nrf54l_firmware.elf, is not built from this repository:
// it is supplied by the firmware build of the same boot sequence and is
// selected with -firmware.
package main

import (
	"nrf54boot/boot"
	"nrf54boot/mmio"
	"nrf54boot/nrf54l"
)

func main() {
	// The runtime has set up the stack, .data/.bss and the vector table by
	// the time main runs. Nothing here returns.
	boot.New(nrf54l.New(mmio.Hardware())).Run()
}
