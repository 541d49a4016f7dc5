//go:build tinygo && semihosting

package main

import (
	"nrf54boot/boot"

	"tinygo.org/x/drivers/semihosting"
)

// With -tags semihosting the boot transitions are printed on the debugger's
// console. A Black Magic Probe services semihosting calls itself and passes
// the output to gdb, so nothing has to be enabled. Without a debugger
// attached the semihosting call faults.
func init() {
	boot.SetDebugWriter(func(s string) {
		_ = semihosting.Stdout.Write([]byte(s + "\n"))
	})
}
