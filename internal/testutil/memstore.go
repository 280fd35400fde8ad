package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/storeapi"
)

// MemStore is an in-memory implementation of storeapi.Store for testing.
// Behavior can be customized per operation through function fields, and
// artificial latency can be injected to exercise concurrency and
// interruption paths.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	dirs    map[string]bool

	// Optional per-operation overrides. When set, the override is called
	// instead of the default in-memory behavior.
	InfoFunc        func(ctx context.Context, path string) (storeapi.Info, error)
	ListFunc        func(ctx context.Context, prefix string) ([]storeapi.Info, error)
	RangedReadFunc  func(ctx context.Context, path string, offset, length int64) ([]byte, error)
	RangedWriteFunc func(ctx context.Context, path string, offset int64, data []byte) error

	// ReadDelay and WriteDelay are applied before each ranged read or
	// write, keeping chunks in flight long enough for interruption tests.
	ReadDelay  time.Duration
	WriteDelay time.Duration

	// Counters for asserting call activity.
	Reads  int64
	Writes int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string][]byte),
		dirs:    make(map[string]bool),
	}
}

// PutObject seeds an object directly, creating parent directories.
func (s *MemStore) PutObject(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), data...)
	s.addParents(path)
}

// Object returns a copy of the stored object's bytes and whether it exists.
func (s *MemStore) Object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// ObjectCount returns the number of objects under prefix.
func (s *MemStore) ObjectCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p := range s.objects {
		if within(p, prefix) {
			n++
		}
	}
	return n
}

// TotalBytes returns the summed size of all objects under prefix.
func (s *MemStore) TotalBytes(prefix string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for p, data := range s.objects {
		if within(p, prefix) {
			n += int64(len(data))
		}
	}
	return n
}

// Info implements storeapi.Store.
func (s *MemStore) Info(ctx context.Context, path string) (storeapi.Info, error) {
	if s.InfoFunc != nil {
		return s.InfoFunc(ctx, path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.objects[path]; ok {
		return storeapi.Info{Path: path, Size: int64(len(data))}, nil
	}
	if s.dirs[path] {
		return storeapi.Info{Path: path, Dir: true}, nil
	}
	return storeapi.Info{}, errors.NewPathError("info", path, errors.ErrObjectNotFound)
}

// List implements storeapi.Store.
func (s *MemStore) List(ctx context.Context, prefix string) ([]storeapi.Info, error) {
	if s.ListFunc != nil {
		return s.ListFunc(ctx, prefix)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var infos []storeapi.Info
	for p, data := range s.objects {
		if within(p, prefix) {
			infos = append(infos, storeapi.Info{Path: p, Size: int64(len(data))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// RangedRead implements storeapi.Store.
func (s *MemStore) RangedRead(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if s.RangedReadFunc != nil {
		return s.RangedReadFunc(ctx, path, offset, length)
	}
	if s.ReadDelay > 0 {
		select {
		case <-time.After(s.ReadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++
	data, ok := s.objects[path]
	if !ok {
		return nil, errors.NewPathError("read", path, errors.ErrObjectNotFound)
	}
	if offset+length > int64(len(data)) {
		return nil, errors.NewPathError("read", path, errors.ErrInvalidInput)
	}
	return append([]byte(nil), data[offset:offset+length]...), nil
}

// RangedWrite implements storeapi.Store. Writes at arbitrary offsets
// extend the object as needed, so chunks may arrive in any order.
func (s *MemStore) RangedWrite(ctx context.Context, path string, offset int64, data []byte) error {
	if s.RangedWriteFunc != nil {
		return s.RangedWriteFunc(ctx, path, offset, data)
	}
	if s.WriteDelay > 0 {
		select {
		case <-time.After(s.WriteDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	obj := s.objects[path]
	end := offset + int64(len(data))
	if int64(len(obj)) < end {
		grown := make([]byte, end)
		copy(grown, obj)
		obj = grown
	}
	copy(obj[offset:end], data)
	s.objects[path] = obj
	s.addParents(path)
	return nil
}

// Mkdir implements storeapi.Store.
func (s *MemStore) Mkdir(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[path] = true
	s.addParents(path + "/x")
	return nil
}

// Remove implements storeapi.Store.
func (s *MemStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return errors.NewPathError("remove", path, errors.ErrObjectNotFound)
	}
	delete(s.objects, path)
	return nil
}

// Exists implements storeapi.Store.
func (s *MemStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok, nil
}

// addParents records every ancestor directory of path. Callers must hold mu.
func (s *MemStore) addParents(path string) {
	segs := strings.Split(path, "/")
	for i := 1; i < len(segs); i++ {
		dir := strings.Join(segs[:i], "/")
		if dir != "" {
			s.dirs[dir] = true
		}
	}
}

func within(p, prefix string) bool {
	return prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/")
}

var _ storeapi.Store = (*MemStore)(nil)
