package warmup

import "sync"

// sendLocks serializes the quota check and counter update per mailbox id.
// Peer sends and auto-replies share it, so a mailbox cannot exceed its daily
// limit when the two cycles overlap.
var sendLocks = newKeyedMutex()

type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[uint]*sync.Mutex{}}
}

func (k *keyedMutex) Lock(key uint) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
}

func (k *keyedMutex) Unlock(key uint) {
	k.mu.Lock()
	l, ok := k.locks[key]
	k.mu.Unlock()
	if ok {
		l.Unlock()
	}
}
