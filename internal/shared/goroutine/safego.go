// Package goroutine launches goroutines with panic recovery.
package goroutine

import (
	"fmt"
	"runtime/debug"

	"github.com/icubam/icubam/internal/shared/logger"
)

// SafeGo runs fn in a goroutine; a panic is logged with its stack instead of crashing the process.
func SafeGo(log logger.Interface, name string, fn func()) {
	go func() {
		defer Recover(log, name)
		fn()
	}()
}

// Recover logs a recovered panic. It must be deferred directly.
func Recover(log logger.Interface, name string) {
	if r := recover(); r != nil {
		log.Errorw("goroutine panicked",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)
	}
}
