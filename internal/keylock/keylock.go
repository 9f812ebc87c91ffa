// Package keylock provides mutual exclusion per string key.
package keylock

import "sync"

// Map serializes critical sections that share a key. Entries are dropped once
// no goroutine holds or waits for them.
type Map struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func New() *Map {
	return &Map{locks: make(map[string]*refLock)}
}

// Lock acquires the lock for key and returns its release func.
func (k *Map) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len reports how many keys are currently held or awaited.
func (k *Map) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
