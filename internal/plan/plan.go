// Package plan computes deterministic chunk plans for file transfers.
// Given the same file size and chunk size, the plan is always identical,
// which is what makes interrupted jobs resumable.
package plan

import (
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
)

// Chunks splits a file of fileSize bytes into chunkSize-byte chunks. The
// final chunk carries the remainder and may be shorter. A zero-byte file
// yields exactly one zero-length chunk so empty files are still created
// at the destination.
func Chunks(fileSize, chunkSize int64) ([]bulktypes.Chunk, error) {
	if fileSize < 0 {
		return nil, errors.NewError("plan", errors.ErrInvalidInput).WithMessage("negative file size")
	}
	if chunkSize <= 0 {
		return nil, errors.NewError("plan", errors.ErrInvalidInput).WithMessage("chunk size must be positive")
	}

	if fileSize == 0 {
		return []bulktypes.Chunk{{Offset: 0, Length: 0, Status: bulktypes.ChunkPending}}, nil
	}

	n := fileSize / chunkSize
	if fileSize%chunkSize != 0 {
		n++
	}

	chunks := make([]bulktypes.Chunk, 0, n)
	for offset := int64(0); offset < fileSize; offset += chunkSize {
		length := chunkSize
		if offset+length > fileSize {
			length = fileSize - offset
		}
		chunks = append(chunks, bulktypes.Chunk{
			Offset: offset,
			Length: length,
			Status: bulktypes.ChunkPending,
		})
	}
	return chunks, nil
}
