// Package lockorder enforces the kernel's lock hierarchy.
//
// Every kernel lock is assigned one of six levels, L0 (lowest) to L5. An
// execution context may only acquire locks in strictly decreasing level
// order. The rule is carried by an ordering token: Exec.Begin hands out the
// only clean token of a context, and each acquisition consumes a token whose
// bound permits the lock's level and returns a more restrictive one.
//
// The level check is static. Lock levels are type parameters (Level0 ...
// Level5) and token bounds are types (Clean, Held5 ... Held0), and the
// per-level acquire functions (Read4, Write4, Lock4, ...) only accept token
// types in the matching Allows constraint. Acquiring out of order does not
// compile.
//
// What the type system cannot express (a token being consumed) is checked at
// runtime: presenting a stale token or releasing guards out of order panics
// with an *OrderViolation.
package lockorder

import "strconv"

// Level is the rank of a lock in the hierarchy.
type Level uint8

const (
	L0 Level = iota
	L1
	L2
	L3
	L4
	L5

	// unbounded is the bound of a clean token: every level is acquirable.
	unbounded
)

// Levels is the number of lock levels.
const Levels = int(unbounded)

func (l Level) String() string {
	if l == unbounded {
		return "clean"
	}
	return "L" + strconv.Itoa(int(l))
}

// Level markers, used as the level type parameter of a lock.
type (
	Level0 struct{}
	Level1 struct{}
	Level2 struct{}
	Level3 struct{}
	Level4 struct{}
	Level5 struct{}
)

// Marker is the set of level marker types.
type Marker interface {
	Level0 | Level1 | Level2 | Level3 | Level4 | Level5
}

// LevelOf returns the level named by marker L.
func LevelOf[L Marker]() Level {
	var m L
	switch any(m).(type) {
	case Level0:
		return L0
	case Level1:
		return L1
	case Level2:
		return L2
	case Level3:
		return L3
	case Level4:
		return L4
	default:
		return L5
	}
}

// Token bounds. Clean means no lock is held; HeldN means the most recently
// acquired (and therefore lowest) lock is at level N.
type (
	Clean struct{}
	Held5 struct{}
	Held4 struct{}
	Held3 struct{}
	Held2 struct{}
	Held1 struct{}
	Held0 struct{}
)

// Bound is the set of token bound types.
type Bound interface {
	Clean | Held5 | Held4 | Held3 | Held2 | Held1 | Held0
}

// AllowsN is satisfied by the token bounds under which a lock at level N may
// be acquired.
type (
	Allows5 interface{ Clean }
	Allows4 interface{ Clean | Held5 }
	Allows3 interface {
		Clean | Held5 | Held4
	}
	Allows2 interface {
		Clean | Held5 | Held4 | Held3
	}
	Allows1 interface {
		Clean | Held5 | Held4 | Held3 | Held2
	}
	Allows0 interface {
		Clean | Held5 | Held4 | Held3 | Held2 | Held1
	}
)

func boundOf[B Bound]() Level {
	var b B
	switch any(b).(type) {
	case Clean:
		return unbounded
	case Held5:
		return L5
	case Held4:
		return L4
	case Held3:
		return L3
	case Held2:
		return L2
	case Held1:
		return L1
	default:
		return L0
	}
}
