// Package keylock provides a mutex scoped to a string key.
package keylock

import (
	"sync"

	"github.com/moby/locker"
)

// KeyedMutex serializes callers that share a key while letting callers with
// different keys proceed in parallel. Entries are released when their last
// holder unlocks.
type KeyedMutex struct {
	l *locker.Locker
}

// New returns an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{l: locker.New()}
}

// Lock acquires the lock for key and returns the matching unlock function.
// Calling the unlock function more than once has no effect.
//
//	unlock := km.Lock("res.partner")
//	defer unlock()
func (k *KeyedMutex) Lock(key string) func() {
	k.l.Lock(key)
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = k.l.Unlock(key)
		})
	}
}
