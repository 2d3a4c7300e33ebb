//go:build tinygo

package sched

func captureStack() []byte { return nil }
