// Package keylock serializes operations on a single registration. Every
// read-modify-write of verification state (attempt counter, stored code,
// verified flags) must run under the key for that registration ID, otherwise
// parallel wrong-code submissions could each observe the pre-increment
// attempt count and bypass the ceiling.
//
// This is a single-process mechanism: it serializes the instance that holds
// it, nothing more. Running several instances against one database needs a
// shared guard (a row lock or a version column) that does not exist yet.
package keylock

import "sync"

// KeyLock provides a mutex per string key. Locks are created on first use
// and retained; the key space (registration IDs under active verification)
// is small and short-lived enough that eviction is not worth the complexity.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (k *KeyLock) Lock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. The entry is dropped once no goroutine
// holds or waits on it.
func (k *KeyLock) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
	}
	k.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}

// WithLock runs fn while holding the mutex for key.
func (k *KeyLock) WithLock(key string, fn func() error) error {
	k.Lock(key)
	defer k.Unlock(key)
	return fn()
}
