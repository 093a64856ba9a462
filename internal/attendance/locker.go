package attendance

import "sync"

// IdentityLocker provides per-identity mutual exclusion. Requests for
// different identities proceed in parallel; requests for the same identity
// are serialized around the read-decide-append sequence, closing the
// check-then-act race between concurrent submissions.
type IdentityLocker struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// NewIdentityLocker creates an empty locker.
func NewIdentityLocker() *IdentityLocker {
	return &IdentityLocker{locks: make(map[string]*identityLock)}
}

// Lock acquires the lock for the given identity, blocking until available.
func (l *IdentityLocker) Lock(identityID string) {
	l.mu.Lock()
	e, ok := l.locks[identityID]
	if !ok {
		e = &identityLock{}
		l.locks[identityID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for the given identity. Entries are removed
// once no goroutine holds or waits on them, so the map does not grow with
// the population.
func (l *IdentityLocker) Unlock(identityID string) {
	l.mu.Lock()
	e, ok := l.locks[identityID]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(l.locks, identityID)
		}
	}
	l.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
