package s3store

import (
	"bytes"
	"context"
	"mime"
	"path"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
)

// pendingUpload is an open write protocol for one destination object.
// Small objects (at most one chunk) are buffered and sent with a single
// PutObject on Finalize; larger objects stream through the S3 multipart
// protocol with one part per chunk.
type pendingUpload struct {
	uploadID  string
	chunkSize int64

	mu    sync.Mutex
	parts []types.CompletedPart

	// buf holds the whole object for the single-chunk path. Nil when
	// the multipart protocol is in use.
	buf []byte
}

// Prepare opens the write protocol for path. Objects no larger than one
// chunk are buffered in memory; larger objects start a multipart upload
// whose parts are addressed by chunk offset. Preparing a path that is
// already open is a no-op, so a rerun after a failed commit keeps the
// parts it has already uploaded.
func (s *Store) Prepare(ctx context.Context, objPath string, size, chunkSize int64) error {
	if chunkSize <= 0 {
		return errors.NewPathError("s3store.prepare", objPath, errors.ErrInvalidInput).
			WithMessage("chunk size must be positive")
	}

	s.mu.Lock()
	_, open := s.uploads[objPath]
	s.mu.Unlock()
	if open {
		return nil
	}

	if size <= chunkSize {
		s.mu.Lock()
		s.uploads[objPath] = &pendingUpload{chunkSize: chunkSize, buf: make([]byte, size)}
		s.mu.Unlock()
		return nil
	}

	contentType := mime.TypeByExtension(path.Ext(objPath))
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objPath),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return errors.NewPathError("s3store.prepare", objPath, err)
	}

	s.mu.Lock()
	s.uploads[objPath] = &pendingUpload{
		uploadID:  aws.ToString(out.UploadId),
		chunkSize: chunkSize,
	}
	s.mu.Unlock()
	return nil
}

// RangedWrite writes data at offset into the object at path. With an
// open write protocol the offset must be chunk-aligned, because it
// addresses the multipart part number. Without one, a write at offset
// zero is sent as a whole-object PutObject.
func (s *Store) RangedWrite(ctx context.Context, objPath string, offset int64, data []byte) error {
	s.mu.Lock()
	up := s.uploads[objPath]
	s.mu.Unlock()

	if up == nil {
		if offset != 0 {
			return errors.NewPathError("s3store.write", objPath, errors.ErrInvalidInput).
				WithMessage("ranged writes require a prepared upload")
		}
		return s.putObject(ctx, objPath, data)
	}

	if up.buf != nil {
		if offset != 0 || int64(len(data)) != int64(len(up.buf)) {
			return errors.NewPathError("s3store.write", objPath, errors.ErrInvalidInput).
				WithMessage("single-chunk upload must be written in one piece")
		}
		up.mu.Lock()
		copy(up.buf, data)
		up.mu.Unlock()
		return nil
	}

	if offset%up.chunkSize != 0 {
		return errors.NewPathError("s3store.write", objPath, errors.ErrChunkMisaligned)
	}
	partNumber := int32(offset/up.chunkSize) + 1

	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objPath),
		UploadId:      aws.String(up.uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return errors.NewPathError("s3store.write", objPath, err)
	}

	up.setPart(types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)})
	return nil
}

// setPart records a completed part, replacing any earlier record for the
// same part number. Re-sending a part after a retried chunk must not
// leave duplicate entries for CompleteMultipartUpload.
func (up *pendingUpload) setPart(part types.CompletedPart) {
	up.mu.Lock()
	defer up.mu.Unlock()
	for i := range up.parts {
		if aws.ToInt32(up.parts[i].PartNumber) == aws.ToInt32(part.PartNumber) {
			up.parts[i] = part
			return
		}
	}
	up.parts = append(up.parts, part)
}

// Finalize commits the object at path: buffered single-chunk objects are
// sent with PutObject, multipart uploads are completed with their parts
// in part-number order. On failure the prepared upload stays open with
// its parts intact, so Finalize can be retried.
func (s *Store) Finalize(ctx context.Context, objPath string) error {
	s.mu.Lock()
	up := s.uploads[objPath]
	s.mu.Unlock()

	if up == nil {
		return errors.NewPathError("s3store.finalize", objPath, errors.ErrInvalidInput).
			WithMessage("no prepared upload")
	}

	if up.buf != nil {
		if err := s.putObject(ctx, objPath, up.buf); err != nil {
			return err
		}
		s.forget(objPath)
		return nil
	}

	up.mu.Lock()
	parts := make([]types.CompletedPart, len(up.parts))
	copy(parts, up.parts)
	up.mu.Unlock()
	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(objPath),
		UploadId:        aws.String(up.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return errors.NewPathError("s3store.finalize", objPath, err)
	}
	s.forget(objPath)
	return nil
}

func (s *Store) forget(objPath string) {
	s.mu.Lock()
	delete(s.uploads, objPath)
	s.mu.Unlock()
}

// AbandonPending aborts every write protocol opened by Prepare that was
// never finalized, releasing the storage S3 holds for their parts. Call
// it when an interrupted upload job will not be resumed in this process.
func (s *Store) AbandonPending(ctx context.Context) error {
	s.mu.Lock()
	pending := s.uploads
	s.uploads = make(map[string]*pendingUpload)
	s.mu.Unlock()

	var firstErr error
	for objPath, up := range pending {
		if up.uploadID == "" {
			continue
		}
		if err := s.abort(ctx, objPath, up.uploadID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) abort(ctx context.Context, objPath, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objPath),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return errors.NewPathError("s3store.abort", objPath, err)
	}
	return nil
}

// putObject sends a whole object in one request, sniffing the content
// type from the data itself.
func (s *Store) putObject(ctx context.Context, objPath string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objPath),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if len(data) > 0 {
		input.ContentType = aws.String(mimetype.Detect(data).String())
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errors.NewPathError("s3store.write", objPath, err)
	}
	return nil
}
