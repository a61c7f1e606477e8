package engine

import "sync"

// keyedMutex hands out one mutex per principal so that two requests
// from the same user serialize while different users only contend on
// the short map access. Entries are never evicted; the per-user
// footprint is one mutex.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[int64]*sync.Mutex{}}
}

func (k *keyedMutex) get(id int64) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[id] = lock
	}
	return lock
}
