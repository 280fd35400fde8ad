package bulk

import (
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/plan"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/storeapi"
)

// ResumeDownloader rebuilds a downloader from a persisted record. The
// file list and chunk plan come from the record, so the remote side is
// not listed again; chunks the record marks pending are the only ones
// transferred.
func ResumeDownloader(
	store Store,
	fsys fs.Filesystem,
	rec *bulktypes.JobRecord,
	opts ...Option,
) (*Downloader, error) {
	t, err := resumeTransfer(store, fsys, bulktypes.DirectionDownload, rec, opts)
	if err != nil {
		return nil, err
	}
	return &Downloader{transfer: *t}, nil
}

// ResumeUploader rebuilds an uploader from a persisted record. Stores
// with a write protocol (such as s3store) hold the parts of a partially
// uploaded file in process memory, so a resumed job cannot count on
// them: any file the record marks partially complete is re-uploaded in
// full. Fully uploaded files were committed and stay done.
func ResumeUploader(
	store Store,
	fsys fs.Filesystem,
	rec *bulktypes.JobRecord,
	opts ...Option,
) (*Uploader, error) {
	t, err := resumeTransfer(store, fsys, bulktypes.DirectionUpload, rec, opts)
	if err != nil {
		return nil, err
	}
	return &Uploader{transfer: *t}, nil
}

func resumeTransfer(
	store Store,
	fsys fs.Filesystem,
	direction bulktypes.Direction,
	rec *bulktypes.JobRecord,
	opts []Option,
) (*transfer, error) {
	if store == nil {
		return nil, errors.NewError("resume", errors.ErrInvalidInput).WithMessage("store is required")
	}
	if rec == nil {
		return nil, errors.NewError("resume", errors.ErrInvalidInput).WithMessage("record is required")
	}
	if rec.Direction != direction {
		return nil, errors.NewPathError("resume", rec.Hash, errors.ErrInvalidInput).
			WithMessage("record direction does not match")
	}

	cfg := bulktypes.DefaultTransferConfig()
	// The record fixes the chunk size; options may still change worker
	// count, retries, and the rest.
	cfg.ChunkSize = rec.ChunkSize
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.ChunkSize = rec.ChunkSize
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys = billy.NewBaseOSFS()
	}

	// A write-protocol store keeps the uploaded parts of an uncommitted
	// file in memory; a resumed job cannot rely on them surviving, so
	// partially uploaded files start over from their first chunk.
	_, protocol := store.(storeapi.Preparer)
	restartPartial := direction == bulktypes.DirectionUpload && protocol

	job := &bulktypes.TransferJob{
		Direction:   rec.Direction,
		Source:      rec.Source,
		Destination: rec.Destination,
		ChunkSize:   rec.ChunkSize,
		Hash:        rec.Hash,
	}
	for _, fr := range rec.Files {
		chunks, err := plan.Chunks(fr.Size, rec.ChunkSize)
		if err != nil {
			return nil, err
		}
		pending := make(map[int]bool, len(fr.Pending))
		for _, idx := range fr.Pending {
			if idx < 0 || idx >= len(chunks) {
				return nil, errors.NewPathError("resume", fr.Src, errors.ErrInvalidInput).
					WithMessage("pending chunk index out of range")
			}
			pending[idx] = true
		}
		if !(restartPartial && len(fr.Pending) > 0 && len(fr.Pending) < len(chunks)) {
			for i := range chunks {
				if !pending[i] {
					chunks[i].Status = bulktypes.ChunkDone
				}
			}
		}
		job.Files = append(job.Files, &bulktypes.FileTransfer{
			Src:    fr.Src,
			Dst:    fr.Dst,
			Size:   fr.Size,
			Chunks: chunks,
		})
	}

	return &transfer{job: job, store: store, fsys: fsys, cfg: cfg}, nil
}
