package testutil

import (
	"context"
	"sync"
)

// PrepStore wraps a MemStore with a write protocol that brackets ranged
// writes, recording the order of Prepare and Finalize calls.
type PrepStore struct {
	*MemStore

	// FinalizeFunc, when set, decides the outcome of each Finalize call
	// after it has been recorded.
	FinalizeFunc func(ctx context.Context, path string) error

	mu        sync.Mutex
	Prepared  []string
	Finalized []string
}

// NewPrepStore creates an empty PrepStore.
func NewPrepStore() *PrepStore {
	return &PrepStore{MemStore: NewMemStore()}
}

// Prepare records the upcoming upload.
func (s *PrepStore) Prepare(_ context.Context, path string, _, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prepared = append(s.Prepared, path)
	return nil
}

// Finalize records the completed upload.
func (s *PrepStore) Finalize(ctx context.Context, path string) error {
	s.mu.Lock()
	s.Finalized = append(s.Finalized, path)
	s.mu.Unlock()
	if s.FinalizeFunc != nil {
		return s.FinalizeFunc(ctx, path)
	}
	return nil
}
