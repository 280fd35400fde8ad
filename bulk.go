package bulk

import (
	"context"
	"os/signal"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/engine"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/expand"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/identity"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/plan"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/storeapi"
)

// Store is the remote side of a transfer. See the s3store package for an
// S3-backed implementation; any backend that can read and write byte
// ranges of named objects can implement it.
type Store = storeapi.Store

// StoreInfo describes a single entry in a remote store.
type StoreInfo = storeapi.Info

// StorePreparer is the optional write protocol a Store may implement to
// bracket ranged writes with an open and a commit step.
type StorePreparer = storeapi.Preparer

// transfer carries the planned job and everything needed to run it.
// Downloader and Uploader are thin direction-specific views over it.
type transfer struct {
	job   *bulktypes.TransferJob
	store storeapi.Store
	fsys  fs.Filesystem
	cfg   *bulktypes.TransferConfig
	saved *Registry
}

// Downloader moves remote objects to local files.
type Downloader struct {
	transfer
}

// Uploader moves local files to remote objects.
type Uploader struct {
	transfer
}

// NewDownloader plans a download of source (a remote path, prefix, or
// glob) into destination on the local filesystem. Planning lists the
// remote side but moves no bytes; call Run to transfer. A nil fsys
// defaults to the OS filesystem.
func NewDownloader(
	ctx context.Context,
	store Store,
	fsys fs.Filesystem,
	source, destination string,
	opts ...Option,
) (*Downloader, error) {
	t, err := newTransfer(ctx, store, fsys, bulktypes.DirectionDownload, source, destination, opts)
	if err != nil {
		return nil, err
	}
	return &Downloader{transfer: *t}, nil
}

// NewUploader plans an upload of source (a local path, directory, or
// glob) into destination on the remote store. Planning walks the local
// side but moves no bytes; call Run to transfer. A nil fsys defaults to
// the OS filesystem.
func NewUploader(
	ctx context.Context,
	store Store,
	fsys fs.Filesystem,
	source, destination string,
	opts ...Option,
) (*Uploader, error) {
	t, err := newTransfer(ctx, store, fsys, bulktypes.DirectionUpload, source, destination, opts)
	if err != nil {
		return nil, err
	}
	return &Uploader{transfer: *t}, nil
}

// Download plans and runs a download in one call.
func Download(
	ctx context.Context,
	store Store,
	fsys fs.Filesystem,
	source, destination string,
	opts ...Option,
) (*bulktypes.TransferStats, error) {
	d, err := NewDownloader(ctx, store, fsys, source, destination, opts...)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx)
}

// Upload plans and runs an upload in one call.
func Upload(
	ctx context.Context,
	store Store,
	fsys fs.Filesystem,
	source, destination string,
	opts ...Option,
) (*bulktypes.TransferStats, error) {
	u, err := NewUploader(ctx, store, fsys, source, destination, opts...)
	if err != nil {
		return nil, err
	}
	return u.Run(ctx)
}

func newTransfer(
	ctx context.Context,
	store Store,
	fsys fs.Filesystem,
	direction bulktypes.Direction,
	source, destination string,
	opts []Option,
) (*transfer, error) {
	if store == nil {
		return nil, errors.NewError("plan", errors.ErrInvalidInput).WithMessage("store is required")
	}
	if destination == "" {
		return nil, errors.NewError("plan", errors.ErrInvalidInput).WithMessage("destination is required")
	}

	cfg := bulktypes.DefaultTransferConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys = billy.NewBaseOSFS()
	}

	var srcTree, dstTree expand.Tree
	switch direction {
	case bulktypes.DirectionDownload:
		srcTree = expand.StoreTree(ctx, store)
		dstTree = expand.FSTree(fsys)
	case bulktypes.DirectionUpload:
		srcTree = expand.FSTree(fsys)
		dstTree = expand.StoreTree(ctx, store)
	}

	matches, err := expand.Expand(srcTree, dstTree, source, destination)
	if err != nil {
		if errors.IsNoMatch(err) && cfg.AllowEmpty {
			matches = nil
		} else {
			return nil, err
		}
	}

	if !cfg.Overwrite {
		if err := checkDestinations(ctx, store, fsys, direction, matches); err != nil {
			return nil, err
		}
	}

	job := &bulktypes.TransferJob{
		Direction:   direction,
		Source:      source,
		Destination: destination,
		ChunkSize:   cfg.ChunkSize,
		Hash:        identity.Hash(direction, source, destination, cfg.ChunkSize),
	}
	for _, m := range matches {
		chunks, err := plan.Chunks(m.Size, cfg.ChunkSize)
		if err != nil {
			return nil, err
		}
		job.Files = append(job.Files, &bulktypes.FileTransfer{
			Src:    m.Src,
			Dst:    m.Dst,
			Size:   m.Size,
			Chunks: chunks,
		})
	}

	return &transfer{job: job, store: store, fsys: fsys, cfg: cfg}, nil
}

func validateConfig(cfg *bulktypes.TransferConfig) error {
	if cfg.Threads <= 0 {
		return errors.NewError("plan", errors.ErrInvalidInput).WithMessage("threads must be positive")
	}
	if cfg.ChunkSize <= 0 {
		return errors.NewError("plan", errors.ErrInvalidInput).WithMessage("chunk size must be positive")
	}
	if cfg.Retries < 0 {
		return errors.NewError("plan", errors.ErrInvalidInput).WithMessage("retries must not be negative")
	}
	return nil
}

// checkDestinations rejects the plan when a destination already exists
// and overwriting was not requested.
func checkDestinations(
	ctx context.Context,
	store Store,
	fsys fs.Filesystem,
	direction bulktypes.Direction,
	matches []expand.Match,
) error {
	for _, m := range matches {
		var exists bool
		switch direction {
		case bulktypes.DirectionDownload:
			exists, _ = fsys.Exists(m.Dst)
		case bulktypes.DirectionUpload:
			exists, _ = store.Exists(ctx, m.Dst)
		}
		if exists {
			return errors.NewPathError("plan", m.Dst, errors.ErrInvalidInput).
				WithMessage("destination exists and overwrite is disabled")
		}
	}
	return nil
}

// Run transfers every pending chunk of the job. It blocks until all
// chunks complete, a configured interrupt signal arrives, or ctx is
// cancelled. Interruption is not an error: in-flight chunks drain,
// the rest stay pending, and the returned stats report a non-zero
// PendingChunks count. Running again picks up exactly where the last
// run stopped.
func (t *transfer) Run(ctx context.Context) (*bulktypes.TransferStats, error) {
	runCtx := ctx
	if !t.cfg.NoSignalHandling && len(t.cfg.Signals) > 0 {
		var stop context.CancelFunc
		runCtx, stop = signal.NotifyContext(ctx, t.cfg.Signals...)
		defer stop()
	}

	stats, err := engine.New(t.job, t.store, t.fsys, t.cfg).Run(runCtx)

	// Keep the registry in step with the outcome: a finished job has no
	// business being resumable, an interrupted one stays current.
	if t.saved != nil {
		if stats.PendingChunks == 0 {
			_ = t.saved.Delete(t.job.Hash)
			t.saved = nil
		} else {
			_ = t.saved.Put(t.job.Record())
		}
	}
	return stats, err
}

// Save persists the job's current state to reg so it can be resumed by a
// later process. With keep=false the job's record is removed instead.
// After a successful Run the record is deleted automatically.
func (t *transfer) Save(reg *Registry, keep bool) error {
	if reg == nil {
		return errors.NewError("save", errors.ErrInvalidInput).WithMessage("registry is required")
	}
	if !keep {
		t.saved = nil
		return reg.Delete(t.job.Hash)
	}
	t.saved = reg
	return reg.Put(t.job.Record())
}

// Hash returns the job identity hash. Two jobs with the same direction,
// source, destination, and chunk size share a hash regardless of worker
// count.
func (t *transfer) Hash() string { return t.job.Hash }

// TotalChunks returns the number of chunks across all files in the job.
func (t *transfer) TotalChunks() int { return t.job.TotalChunks() }

// PendingChunks returns the number of chunks not yet transferred.
// This is the job's sole progress signal: zero means complete.
func (t *transfer) PendingChunks() int { return t.job.PendingChunks() }

// TotalBytes returns the summed size of all files in the job.
func (t *transfer) TotalBytes() int64 { return t.job.TotalBytes() }

// Job returns the underlying planned job. The returned value is shared
// with the transfer and must not be mutated during Run.
func (t *transfer) Job() *bulktypes.TransferJob { return t.job }

func (t *transfer) sources() []string {
	out := make([]string, len(t.job.Files))
	for i, f := range t.job.Files {
		out[i] = f.Src
	}
	return out
}

func (t *transfer) destinations() []string {
	out := make([]string, len(t.job.Files))
	for i, f := range t.job.Files {
		out[i] = f.Dst
	}
	return out
}

// RemoteFiles returns the planned remote paths in transfer order.
func (d *Downloader) RemoteFiles() []string { return d.sources() }

// LocalFiles returns the planned local paths in transfer order.
func (d *Downloader) LocalFiles() []string { return d.destinations() }

// LocalFiles returns the planned local paths in transfer order.
func (u *Uploader) LocalFiles() []string { return u.sources() }

// RemoteFiles returns the planned remote paths in transfer order.
func (u *Uploader) RemoteFiles() []string { return u.destinations() }
