package boot

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

var (
	// debugWriter is the global debug print function (can be set by target code)
	debugWriter DebugWriter = func(s string) {} // No-op by default

	// debugEnabled is set while a writer is installed. Messages are only
	// built when it is true.
	debugEnabled bool = false
)

// SetDebugWriter sets the target-specific debug output function.
// Passing nil restores the no-op writer and disables debug output.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		debugWriter = func(s string) {}
		debugEnabled = false
		return
	}
	debugWriter = writer
	debugEnabled = true
}

// debugPrintln writes a debug message using the target-specific writer
func debugPrintln(msg string) {
	if !debugEnabled {
		return
	}
	debugWriter(msg)
}
