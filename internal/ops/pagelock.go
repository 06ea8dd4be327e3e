package ops

import (
	"sync"
	"time"

	"bindery/internal/errors"
)

// pageLock is one page's write token plus a count of holders and waiters,
// so the table entry can be dropped once nobody references it.
type pageLock struct {
	ch   chan struct{}
	refs int
}

// pageLockTable serializes writers per page. Locks are acquired with a
// timeout; a writer that cannot get the lock in time fails with PAGE_BUSY
// rather than queueing indefinitely. Entries are removed when the last
// holder or waiter lets go, so the table stays bounded by in-flight writes.
type pageLockTable struct {
	mu    sync.Mutex
	locks map[string]*pageLock
}

var pageLocks = &pageLockTable{locks: make(map[string]*pageLock)}

// acquire takes the write lock for pageID, waiting up to timeout.
// Returns a release func, or PAGE_BUSY on expiry.
func (t *pageLockTable) acquire(pageID string, timeout time.Duration) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[pageID]
	if !ok {
		l = &pageLock{ch: make(chan struct{}, 1)}
		t.locks[pageID] = l
	}
	l.refs++
	t.mu.Unlock()

	release := func() {
		<-l.ch
		t.unref(pageID, l)
	}

	select {
	case l.ch <- struct{}{}:
		return release, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		return release, nil
	case <-timer.C:
		t.unref(pageID, l)
		return nil, errors.NewPageBusy(pageID)
	}
}

func (t *pageLockTable) unref(pageID string, l *pageLock) {
	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, pageID)
	}
	t.mu.Unlock()
}

// size reports the number of live entries; tests use it.
func (t *pageLockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
