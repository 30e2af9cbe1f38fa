// Package memory provides an in-process entry store for tests and demos.
package memory

import (
	"context"
	"sync"

	"cambi/internal/core"
	"cambi/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	payload []byte
	saves   int
	loadErr error
	saveErr error
	pingErr error
}

// New returns a store seeded with entries. With no entries the slot starts
// unwritten.
func New(seed ...core.Entry) *Store {
	s := &Store{}
	if len(seed) > 0 {
		b, err := storage.Encode(seed)
		if err != nil {
			panic(err)
		}
		s.payload = b
	}
	return s
}

// NewRaw returns a store whose slot holds payload as-is.
func NewRaw(payload []byte) *Store {
	return &Store{payload: append([]byte(nil), payload...)}
}

func (s *Store) Load(_ context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return storage.Decode(s.payload)
}

func (s *Store) Save(_ context.Context, entries []core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	b, err := storage.Encode(entries)
	if err != nil {
		return err
	}
	s.payload = b
	s.saves++
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

// Saves returns how many saves succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Payload returns a copy of the raw slot contents.
func (s *Store) Payload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.payload...)
}

// FailLoad makes subsequent loads return err. Pass nil to clear.
func (s *Store) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// FailSave makes subsequent saves return err. Pass nil to clear.
func (s *Store) FailSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// FailPing makes Ping return err. Pass nil to clear.
func (s *Store) FailPing(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}
