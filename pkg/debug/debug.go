// Package debug provides global debug flags for hot-path logging
package debug

import "fmt"

// Enabled controls whether debug logging is active
var Enabled bool

// Vision controls per-frame detection logs (faces, barcodes).
// These fire every frame, so they have their own switch.
var Vision bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// VisionLog prints a message only if vision debug mode is enabled
func VisionLog(format string, args ...interface{}) {
	if Vision {
		fmt.Printf(format, args...)
	}
}
