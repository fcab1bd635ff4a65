package storefake

import (
	"sync"

	"github.com/jrsteele09/micromanager/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory session.Store that counts mutations.
type FakeStore struct {
	values map[string]string
	writes int
	lock   sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{values: make(map[string]string)}
}

// NewFakeStoreWith returns a FakeStore pre-populated with values. The seed does not
// count as a write.
func NewFakeStoreWith(values map[string]string) *FakeStore {
	s := NewFakeStore()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *FakeStore) Get(key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FakeStore) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
	s.writes++
	return nil
}

func (s *FakeStore) Remove(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.values, key)
	s.writes++
	return nil
}

// Snapshot returns a copy of the stored values.
func (s *FakeStore) Snapshot() map[string]string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Writes returns the number of Set and Remove calls.
func (s *FakeStore) Writes() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.writes
}
