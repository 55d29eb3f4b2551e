package store

import "sync"

// KeyedMutex provides a mutex per string key. SQL-backed stores use it to
// serialize read-modify-write cycles for one upload ID without blocking
// operations on other IDs.
//
// Entries are never evicted; keys are upload IDs whose count stays small
// enough that the map is cheaper than reference counting.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that was never locked
// panics, same as sync.Mutex.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()

	if !ok {
		panic("store: unlock of unknown key " + key)
	}
	m.Unlock()
}
