//go:build !tinygo

package sched

import "runtime/debug"

// captureStack returns the faulting task's goroutine stack for the panic
// report.
func captureStack() []byte { return debug.Stack() }
