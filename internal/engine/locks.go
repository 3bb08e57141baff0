package engine

import "sync"

// merchantLocks provides per-key logical locks so concurrent imports
// serialize history updates for the same canonical merchant while distinct
// merchants proceed in parallel.
type merchantLocks struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

func newMerchantLocks() *merchantLocks {
	return &merchantLocks{locks: make(map[string]*sync.Mutex)}
}

func (m *merchantLocks) lock(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}
