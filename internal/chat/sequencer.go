package chat

import "sync"

// sequencer hands out one mutex per key and forgets it once unused.
type sequencer struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{locks: make(map[string]*keyLock)}
}

// lock blocks until key is free and returns the matching unlock.
func (s *sequencer) lock(key string) func() {
	s.mu.Lock()
	kl, ok := s.locks[key]
	if !ok {
		kl = &keyLock{}
		s.locks[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		s.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *sequencer) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
