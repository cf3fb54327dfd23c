package billing

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLock provides per-invoice single-flight for generation runs. TryLock
// never blocks: a second generation request for the same invoice is rejected
// immediately rather than queued behind the running one.
type keyedLock struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[uuid.UUID]struct{})}
}

// TryLock acquires the lock for key, reporting false if it is already held.
func (l *keyedLock) TryLock(key uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Unlock releases the lock for key.
func (l *keyedLock) Unlock(key uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
