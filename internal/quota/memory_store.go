package quota

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps quota state in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[uuid.UUID]State)}
}

func (s *MemoryStore) Load(ctx context.Context, userID uuid.UUID) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[userID]
	if st.BurstWindowStart != nil {
		start := *st.BurstWindowStart
		st.BurstWindowStart = &start
	}
	return st, nil
}

func (s *MemoryStore) Save(ctx context.Context, userID uuid.UUID, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.BurstWindowStart != nil {
		start := *st.BurstWindowStart
		st.BurstWindowStart = &start
	}
	s.states[userID] = st
	return nil
}
