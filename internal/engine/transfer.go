package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
)

// retryInitialInterval is the starting backoff delay between chunk
// transfer attempts.
const retryInitialInterval = 100 * time.Millisecond

// transferChunk moves one chunk, retrying transient failures with
// exponential backoff up to the configured retry limit.
func (e *Engine) transferChunk(ctx context.Context, fst *fileState, chunk *bulktypes.Chunk) error {
	op := func() error {
		switch e.job.Direction {
		case bulktypes.DirectionDownload:
			return e.downloadChunk(ctx, fst, chunk)
		case bulktypes.DirectionUpload:
			return e.uploadChunk(ctx, fst, chunk)
		default:
			return backoff.Permanent(errors.NewError("transfer", errors.ErrInvalidInput))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.retries)), ctx))
}

// downloadChunk reads the chunk's range from the remote object and
// writes it at the same offset of the local file.
func (e *Engine) downloadChunk(ctx context.Context, fst *fileState, chunk *bulktypes.Chunk) error {
	data, err := e.store.RangedRead(ctx, fst.ft.Src, chunk.Offset, chunk.Length)
	if err != nil {
		return err
	}
	if int64(len(data)) != chunk.Length {
		return fmt.Errorf("short read at offset %d: got %d bytes, want %d", chunk.Offset, len(data), chunk.Length)
	}
	if chunk.Length == 0 {
		return nil
	}
	return fst.writeAt(data, chunk.Offset)
}

// uploadChunk reads the chunk's range from the local file and writes it
// at the same offset of the remote object. Zero-length chunks are still
// written so empty objects get created.
func (e *Engine) uploadChunk(ctx context.Context, fst *fileState, chunk *bulktypes.Chunk) error {
	buf := e.buffers.Get(chunk.Length)
	defer e.buffers.Put(buf)

	if chunk.Length > 0 {
		n, err := fst.src.ReadAt(buf, chunk.Offset)
		if err != nil && err != io.EOF {
			return err
		}
		if int64(n) != chunk.Length {
			return fmt.Errorf("short read at offset %d: got %d bytes, want %d", chunk.Offset, n, chunk.Length)
		}
	}
	return e.store.RangedWrite(ctx, fst.ft.Dst, chunk.Offset, buf)
}

// writeAt writes data at offset in the destination file. The handle only
// supports Seek followed by Write, so positional writes are serialized
// per file.
func (fst *fileState) writeAt(data []byte, offset int64) error {
	fst.mu.Lock()
	defer fst.mu.Unlock()

	if _, err := fst.dst.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	n, err := fst.dst.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}
