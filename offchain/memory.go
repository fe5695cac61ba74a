package offchain

import (
	"bytes"
	"sync"
)

// MemStorage is a process-local Storage for tests and the demo ledger.
type MemStorage struct {
	mu     sync.Mutex
	m      map[string][]byte
	closed bool
}

func NewMemStorage() *MemStorage {
	return &MemStorage{m: make(map[string][]byte)}
}

func (s *MemStorage) Get(key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrStorageClosed
	}
	v, ok := s.m[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (s *MemStorage) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}
	s.m[string(key)] = append([]byte{}, value...)
	return nil
}

func (s *MemStorage) CompareAndSet(key, old, new []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrStorageClosed
	}
	current, ok := s.m[string(key)]
	if ok != (old != nil) || (ok && !bytes.Equal(current, old)) {
		return false, nil
	}
	if new == nil {
		delete(s.m, string(key))
	} else {
		s.m[string(key)] = append([]byte{}, new...)
	}
	return true, nil
}

func (s *MemStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
