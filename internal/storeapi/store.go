// Package storeapi defines the interface the transfer engine uses to talk
// to a remote hierarchical object store. Concrete backends (S3, in-memory
// test stores) implement Store; the engine never depends on a specific SDK.
package storeapi

import (
	"context"
)

// Info describes a single entry in the remote store.
type Info struct {
	// Path is the full slash-separated path of the entry.
	Path string

	// Size is the entry size in bytes. Zero for directories.
	Size int64

	// Dir reports whether the entry is a directory (or pure prefix).
	Dir bool
}

// Store is the minimal remote-store surface the engine requires.
// All paths are slash-separated. Implementations must be safe for
// concurrent use.
type Store interface {
	// Info returns metadata for the entry at path. Returns an error
	// wrapping errors.ErrObjectNotFound when nothing exists there.
	Info(ctx context.Context, path string) (Info, error)

	// List returns every file under prefix, recursively, in
	// lexicographic order by path. Directories are not included.
	List(ctx context.Context, prefix string) ([]Info, error)

	// RangedRead returns exactly length bytes of the object at path
	// starting at offset. A zero length returns an empty slice.
	RangedRead(ctx context.Context, path string, offset, length int64) ([]byte, error)

	// RangedWrite writes data at offset into the object at path.
	// Writes to distinct offsets of the same object may happen
	// concurrently and in any order. A zero-length write at offset
	// zero creates an empty object.
	RangedWrite(ctx context.Context, path string, offset int64, data []byte) error

	// Mkdir ensures the directory at path exists. Backends without
	// real directories may treat this as a no-op.
	Mkdir(ctx context.Context, path string) error

	// Remove deletes the object at path.
	Remove(ctx context.Context, path string) error

	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// Preparer is an optional interface for stores whose write protocol
// brackets ranged writes with an open and a commit step. When a Store
// implements Preparer, the engine calls Prepare before the first
// RangedWrite to a destination and Finalize after the last one.
type Preparer interface {
	// Prepare announces an upcoming upload of size bytes written in
	// chunkSize-aligned ranges.
	Prepare(ctx context.Context, path string, size, chunkSize int64) error

	// Finalize commits the object after all ranges are written.
	Finalize(ctx context.Context, path string) error
}
