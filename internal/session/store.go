package session

import (
	"context"
	"sync"

	"otr_messaging/internal/model"
)

// StateStore persists ratchet session state per session. Load returns
// (nil, nil) when no state exists yet.
type StateStore interface {
	Load(ctx context.Context, id model.SessionID) (*State, error)
	Save(ctx context.Context, id model.SessionID, st *State) error
	Delete(ctx context.Context, id model.SessionID) error
}

// MemoryStateStore keeps session state in memory. Used in tests and by
// clients that accept losing sessions on restart.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[model.SessionID]*State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[model.SessionID]*State)}
}

var _ StateStore = (*MemoryStateStore)(nil)

func (s *MemoryStateStore) Load(_ context.Context, id model.SessionID) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id], nil
}

func (s *MemoryStateStore) Save(_ context.Context, id model.SessionID, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = st
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}
