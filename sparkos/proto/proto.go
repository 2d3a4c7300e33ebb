// Package proto defines the fixed binary records copied across the syscall
// boundary into task buffers.
package proto

// Record sizes in bytes.
const (
	EventRecordSize    = 24
	TaskInfoRecordSize = 52
	StatsRecordSize    = 40
)

// TaskNameMax is the longest task name carried in a task info record.
const TaskNameMax = 24
