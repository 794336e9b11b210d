package app

import "sync"

// sessionLocks serializes mutations per session id so concurrent requests
// against the same session never apply over a stale snapshot. Entries are a
// bare mutex each and are kept for the process lifetime; session counts stay
// small enough that eviction isn't worth the bookkeeping.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *sessionLocks) lock(sessionID string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m
}
