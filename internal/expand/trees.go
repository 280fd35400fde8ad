package expand

import (
	"context"
	"os"
	"sort"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/storeapi"
)

// StoreTree adapts a remote store to the Tree interface. The context is
// captured at construction and used for all store calls made during
// expansion.
func StoreTree(ctx context.Context, store storeapi.Store) Tree {
	return &storeTree{ctx: ctx, store: store}
}

type storeTree struct {
	ctx   context.Context
	store storeapi.Store
}

func (t *storeTree) Stat(path string) (Entry, error) {
	info, err := t.store.Info(t.ctx, path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Path: info.Path, Size: info.Size, Dir: info.Dir}, nil
}

func (t *storeTree) ListPrefix(dir string) ([]Entry, error) {
	infos, err := t.store.List(t.ctx, dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.Dir {
			continue
		}
		entries = append(entries, Entry{Path: info.Path, Size: info.Size})
	}
	return entries, nil
}

// FSTree adapts a local filesystem to the Tree interface.
func FSTree(fsys fs.Filesystem) Tree {
	return &fsTree{fsys: fsys}
}

type fsTree struct {
	fsys fs.Filesystem
}

func (t *fsTree) Stat(path string) (Entry, error) {
	info, err := t.fsys.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Path: path, Size: info.Size(), Dir: info.IsDir()}, nil
}

func (t *fsTree) ListPrefix(dir string) ([]Entry, error) {
	if _, err := t.fsys.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	err := t.fsys.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		entries = append(entries, Entry{Path: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
