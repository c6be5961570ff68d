package debug

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DebugHeader marks the start of a traced call when debugging is enabled
func DebugHeader(enabled bool) {
	if enabled {
		zap.S().Debug("=== DEBUG START ===")
	}
}

// DebugFooter marks the end of a traced call when debugging is enabled
func DebugFooter(enabled bool) {
	if enabled {
		zap.S().Debug("=== DEBUG END ===")
	}
}

// DebugOutput logs a formatted line at debug level when debugging is enabled
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if enabled {
		zap.L().Debug(fmt.Sprintf(format, args...))
	}
}

// DebugTiming logs start and completion of an operation with its duration.
// Call the returned func when the operation ends.
func DebugTiming(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	DebugOutput(enabled, "Starting: %s", operation)

	return func() {
		zap.L().Debug("Completed: "+operation, zap.Duration("took", time.Since(start)))
	}
}
