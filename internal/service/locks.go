package service

import "sync"

// keyedMutex serializes work per equipment id. ComputeHealth and alert
// generation both read-then-write the same health and alert state, so
// concurrent invocations for one equipment must not interleave. Entries
// are never removed; the map is bounded by the equipment fleet size.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*sync.Mutex{}}
}

func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()
	lock.Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()
	lock := k.locks[key]
	k.mu.Unlock()
	if lock != nil {
		lock.Unlock()
	}
}
