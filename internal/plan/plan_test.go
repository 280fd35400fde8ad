package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		name      string
		fileSize  int64
		chunkSize int64
		wantLens  []int64
	}{
		{
			name:      "exact multiple",
			fileSize:  100,
			chunkSize: 25,
			wantLens:  []int64{25, 25, 25, 25},
		},
		{
			name:      "short final chunk",
			fileSize:  110,
			chunkSize: 25,
			wantLens:  []int64{25, 25, 25, 25, 10},
		},
		{
			name:      "chunk larger than file",
			fileSize:  10,
			chunkSize: 1024,
			wantLens:  []int64{10},
		},
		{
			name:      "single byte",
			fileSize:  1,
			chunkSize: 1,
			wantLens:  []int64{1},
		},
		{
			name:      "zero-byte file still gets one chunk",
			fileSize:  0,
			chunkSize: 1024,
			wantLens:  []int64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Chunks(tt.fileSize, tt.chunkSize)
			require.NoError(t, err)
			require.Len(t, chunks, len(tt.wantLens))

			var offset, total int64
			for i, c := range chunks {
				assert.Equal(t, offset, c.Offset)
				assert.Equal(t, tt.wantLens[i], c.Length)
				assert.Equal(t, bulktypes.ChunkPending, c.Status)
				offset += c.Length
				total += c.Length
			}
			assert.Equal(t, tt.fileSize, total)
		})
	}
}

func TestChunksInvalidInput(t *testing.T) {
	_, err := Chunks(100, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Chunks(100, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Chunks(-1, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestChunksDeterministic(t *testing.T) {
	first, err := Chunks(81_840_585, 2<<22)
	require.NoError(t, err)
	second, err := Chunks(81_840_585, 2<<22)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
