// Package syscall is the system call layer: the dispatcher tasks call into
// and the spawn registration that connects it to the scheduler.
package syscall

import (
	"errors"
	"sync/atomic"

	"sparkcore/sparkos/kernel/lockorder"
	"sparkcore/sparkos/kernel/task"
)

var (
	// ErrAlreadyRegistered is returned by a second SpawnCell.Register.
	ErrAlreadyRegistered = errors.New("syscall: spawn implementation already registered")
	// ErrNilSpawn is returned when registering a nil SpawnFunc.
	ErrNilSpawn = errors.New("syscall: nil spawn implementation")
)

// SpawnRequest asks for a new task running Program.
type SpawnRequest struct {
	Name     string
	Priority task.Priority
	Program  Program
}

// SpawnFunc creates a task. It fails with an error wrapping task.ErrNoSlot
// when no task slot is free.
type SpawnFunc func(tok lockorder.Token[lockorder.Clean], req SpawnRequest) (task.ID, error)

// SpawnCell holds the one spawn implementation of the kernel. The startup
// context registers it exactly once and seals the cell before serving
// system calls.
type SpawnCell struct {
	fn     atomic.Pointer[SpawnFunc]
	sealed atomic.Bool
}

// Register installs fn. Only the first registration takes effect; later ones
// return ErrAlreadyRegistered.
func (c *SpawnCell) Register(fn SpawnFunc) error {
	if fn == nil {
		return ErrNilSpawn
	}
	if !c.fn.CompareAndSwap(nil, &fn) {
		return ErrAlreadyRegistered
	}
	return nil
}

// Registered reports whether a spawn implementation is installed.
func (c *SpawnCell) Registered() bool { return c.fn.Load() != nil }

// Seal marks the end of startup. Sealing an empty cell is a boot sequencing
// bug and panics.
func (c *SpawnCell) Seal() {
	if !c.Registered() {
		panic("syscall: sealed without a spawn implementation")
	}
	c.sealed.Store(true)
}

// Sealed reports whether startup completed.
func (c *SpawnCell) Sealed() bool { return c.sealed.Load() }

// Spawn calls the registered implementation. Spawning before registration is
// a boot sequencing bug and panics.
func (c *SpawnCell) Spawn(tok lockorder.Token[lockorder.Clean], req SpawnRequest) (task.ID, error) {
	fn := c.fn.Load()
	if fn == nil {
		panic("syscall: spawn before registration")
	}
	return (*fn)(tok, req)
}
