// Package testutil provides test utilities for progress tracking.
package testutil

import "sync"

// MockProgressTracker is a mock implementation of ProgressTracker for
// testing. It is safe for concurrent updates from transfer workers.
type MockProgressTracker struct {
	mu               sync.Mutex
	UpdateCalled     bool
	CompleteCalled   bool
	BytesTransferred int64
	TotalBytes       int64
	Updates          []ProgressUpdate // For detailed tracking
}

// ProgressUpdate represents a single progress update event.
type ProgressUpdate struct {
	Transferred int64
	Total       int64
}

// Update records a progress update.
func (m *MockProgressTracker) Update(bytesTransferred, totalBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalled = true
	m.BytesTransferred = bytesTransferred
	m.TotalBytes = totalBytes
	m.Updates = append(m.Updates, ProgressUpdate{
		Transferred: bytesTransferred,
		Total:       totalBytes,
	})
}

// Complete marks the operation as complete.
func (m *MockProgressTracker) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalled = true
}

// MaxTransferred returns the highest cumulative byte count observed.
func (m *MockProgressTracker) MaxTransferred() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, u := range m.Updates {
		if u.Transferred > max {
			max = u.Transferred
		}
	}
	return max
}

// Completed reports whether Complete was called.
func (m *MockProgressTracker) Completed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompleteCalled
}
