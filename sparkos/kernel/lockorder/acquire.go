package lockorder

// Per-level acquire functions. Each one accepts only tokens whose bound
// permits its level and returns a token bounded at that level.

// Read5 takes a shared hold on a level 5 lock.
func Read5[B Allows5, V any](t Token[B], l *RWLock[Level5, V]) (Token[Held5], ReadGuard[V]) {
	return read[Held5](t, l)
}

// Write5 takes an exclusive hold on a level 5 lock.
func Write5[B Allows5, V any](t Token[B], l *RWLock[Level5, V]) (Token[Held5], WriteGuard[V]) {
	return write[Held5](t, l)
}

// Lock5 locks a level 5 mutex.
func Lock5[B Allows5, V any](t Token[B], m *Mutex[Level5, V]) (Token[Held5], MutexGuard[V]) {
	return lock[Held5](t, m)
}

// Read4 takes a shared hold on a level 4 lock.
func Read4[B Allows4, V any](t Token[B], l *RWLock[Level4, V]) (Token[Held4], ReadGuard[V]) {
	return read[Held4](t, l)
}

// Write4 takes an exclusive hold on a level 4 lock.
func Write4[B Allows4, V any](t Token[B], l *RWLock[Level4, V]) (Token[Held4], WriteGuard[V]) {
	return write[Held4](t, l)
}

// Lock4 locks a level 4 mutex.
func Lock4[B Allows4, V any](t Token[B], m *Mutex[Level4, V]) (Token[Held4], MutexGuard[V]) {
	return lock[Held4](t, m)
}

// Read3 takes a shared hold on a level 3 lock.
func Read3[B Allows3, V any](t Token[B], l *RWLock[Level3, V]) (Token[Held3], ReadGuard[V]) {
	return read[Held3](t, l)
}

// Write3 takes an exclusive hold on a level 3 lock.
func Write3[B Allows3, V any](t Token[B], l *RWLock[Level3, V]) (Token[Held3], WriteGuard[V]) {
	return write[Held3](t, l)
}

// Lock3 locks a level 3 mutex.
func Lock3[B Allows3, V any](t Token[B], m *Mutex[Level3, V]) (Token[Held3], MutexGuard[V]) {
	return lock[Held3](t, m)
}

// Read2 takes a shared hold on a level 2 lock.
func Read2[B Allows2, V any](t Token[B], l *RWLock[Level2, V]) (Token[Held2], ReadGuard[V]) {
	return read[Held2](t, l)
}

// Write2 takes an exclusive hold on a level 2 lock.
func Write2[B Allows2, V any](t Token[B], l *RWLock[Level2, V]) (Token[Held2], WriteGuard[V]) {
	return write[Held2](t, l)
}

// Lock2 locks a level 2 mutex.
func Lock2[B Allows2, V any](t Token[B], m *Mutex[Level2, V]) (Token[Held2], MutexGuard[V]) {
	return lock[Held2](t, m)
}

// Read1 takes a shared hold on a level 1 lock.
func Read1[B Allows1, V any](t Token[B], l *RWLock[Level1, V]) (Token[Held1], ReadGuard[V]) {
	return read[Held1](t, l)
}

// Write1 takes an exclusive hold on a level 1 lock.
func Write1[B Allows1, V any](t Token[B], l *RWLock[Level1, V]) (Token[Held1], WriteGuard[V]) {
	return write[Held1](t, l)
}

// Lock1 locks a level 1 mutex.
func Lock1[B Allows1, V any](t Token[B], m *Mutex[Level1, V]) (Token[Held1], MutexGuard[V]) {
	return lock[Held1](t, m)
}

// Read0 takes a shared hold on a level 0 lock.
func Read0[B Allows0, V any](t Token[B], l *RWLock[Level0, V]) (Token[Held0], ReadGuard[V]) {
	return read[Held0](t, l)
}

// Write0 takes an exclusive hold on a level 0 lock.
func Write0[B Allows0, V any](t Token[B], l *RWLock[Level0, V]) (Token[Held0], WriteGuard[V]) {
	return write[Held0](t, l)
}

// Lock0 locks a level 0 mutex.
func Lock0[B Allows0, V any](t Token[B], m *Mutex[Level0, V]) (Token[Held0], MutexGuard[V]) {
	return lock[Held0](t, m)
}
