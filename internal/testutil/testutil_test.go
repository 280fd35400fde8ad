package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
)

func TestMemStoreRangedReadWrite(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	// Out-of-order writes assemble the same object.
	require.NoError(t, store.RangedWrite(ctx, "data/file", 5, []byte("56789")))
	require.NoError(t, store.RangedWrite(ctx, "data/file", 0, []byte("01234")))

	got, ok := store.Object("data/file")
	require.True(t, ok)
	assert.Equal(t, []byte("0123456789"), got)

	data, err := store.RangedRead(ctx, "data/file", 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("3456"), data)
}

func TestMemStoreInfoAndList(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	store.PutObject("data/a/x", Pattern(10))
	store.PutObject("data/a/y", Pattern(20))
	store.PutObject("data/b/z", Pattern(30))

	info, err := store.Info(ctx, "data/a/x")
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size)

	info, err = store.Info(ctx, "data/a")
	require.NoError(t, err)
	assert.True(t, info.Dir)

	_, err = store.Info(ctx, "data/missing")
	require.Error(t, err)
	assert.True(t, errors.IsObjectNotFound(err))

	infos, err := store.List(ctx, "data/a")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "data/a/x", infos[0].Path)
	assert.Equal(t, "data/a/y", infos[1].Path)

	assert.Equal(t, 3, store.ObjectCount("data"))
	assert.Equal(t, int64(60), store.TotalBytes("data"))
}

func TestGenerators(t *testing.T) {
	assert.Equal(t, Pattern(100), Pattern(100))
	assert.NotEqual(t, Pattern(100)[:50], Pattern(100)[25:75])

	fixture := CSVFixture(42)
	assert.Equal(t, 42, CountLines(fixture))
}
