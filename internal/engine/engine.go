// Package engine executes planned transfer jobs. It runs a pool of chunk
// workers over a shared queue, reassembles files byte-exactly regardless
// of chunk completion order, and stops cooperatively on cancellation:
// in-flight chunks finish, queued chunks stay pending.
package engine

import (
	"context"
	"os"
	"path"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/internal/storeapi"
)

// Engine runs one transfer job. An Engine is single-use per Run call;
// calling Run again retries whatever the previous run left pending.
type Engine struct {
	job     *bulktypes.TransferJob
	store   storeapi.Store
	fsys    fs.Filesystem
	threads int
	retries int
	tracker bulktypes.ProgressTracker
	buffers *pool.ChunkPool
}

// New creates an engine for job using the given store and local
// filesystem.
func New(job *bulktypes.TransferJob, store storeapi.Store, fsys fs.Filesystem, cfg *bulktypes.TransferConfig) *Engine {
	return &Engine{
		job:     job,
		store:   store,
		fsys:    fsys,
		threads: cfg.Threads,
		retries: cfg.Retries,
		tracker: cfg.Tracker,
		buffers: pool.NewChunkPool(job.ChunkSize),
	}
}

// workItem is one pending chunk handed to a worker. The queue guarantees
// each chunk is dispatched to exactly one worker.
type workItem struct {
	file  *fileState
	chunk int
}

// fileState is the per-file runtime state shared by workers.
type fileState struct {
	ft *bulktypes.FileTransfer

	// dst is the local destination handle for downloads. Positional
	// writes are serialized through mu because the handle exposes only
	// Seek and Write.
	dst fs.File
	mu  sync.Mutex

	// src is the local source handle for uploads. ReadAt is stateless,
	// so concurrent chunk reads need no lock.
	src fs.File

	// hadPending marks files this run actually worked on, so size
	// verification and finalization only touch them.
	hadPending bool
}

// runState aggregates worker results for one Run.
type runState struct {
	mu          sync.Mutex
	transferred int
	failed      int
	bytes       int64
	doneBytes   int64
	firstErr    error
}

// Run executes all pending chunks of the job. It returns statistics for
// the run and an error only for genuine transfer failures; cancellation
// is reported through the stats, not as an error.
func (e *Engine) Run(ctx context.Context) (*bulktypes.TransferStats, error) {
	start := time.Now()
	stats := &bulktypes.TransferStats{
		Files:       len(e.job.Files),
		TotalChunks: e.job.TotalChunks(),
	}

	files, items := e.collectPending()
	if len(items) == 0 {
		stats.Duration = time.Since(start)
		e.complete()
		return stats, nil
	}

	if err := e.prepare(ctx, files); err != nil {
		e.closeFiles(files)
		stats.PendingChunks = e.job.PendingChunks()
		stats.Duration = time.Since(start)
		return stats, err
	}

	state := &runState{doneBytes: e.previouslyDoneBytes()}

	queue := make(chan workItem, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	workers := e.threads
	if workers > len(items) {
		workers = len(items)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx, queue, state)
		}()
	}
	wg.Wait()

	e.closeFiles(files)

	verifyErr := e.finalize(ctx, files)

	stats.TransferredChunks = state.transferred
	stats.FailedChunks = state.failed
	stats.BytesTransferred = state.bytes
	stats.PendingChunks = e.job.PendingChunks()
	stats.Interrupted = ctx.Err() != nil
	stats.Duration = time.Since(start)
	e.complete()

	if state.firstErr != nil {
		return stats, state.firstErr
	}
	if verifyErr != nil {
		return stats, verifyErr
	}
	return stats, nil
}

// collectPending snapshots the pending chunks into work items, one
// fileState per file that still owes chunks.
func (e *Engine) collectPending() ([]*fileState, []workItem) {
	var (
		files []*fileState
		items []workItem
	)
	for _, ft := range e.job.Files {
		pending := ft.Pending()
		fst := &fileState{ft: ft, hadPending: len(pending) > 0}
		files = append(files, fst)
		for _, idx := range pending {
			items = append(items, workItem{file: fst, chunk: idx})
		}
	}
	return files, items
}

// prepare opens local handles and announces destinations before any
// chunk moves. For downloads the destination file is created (but never
// truncated, so resumed runs keep already-written ranges). For uploads
// the remote side is given the chance to open its write protocol.
func (e *Engine) prepare(ctx context.Context, files []*fileState) error {
	preparer, _ := e.store.(storeapi.Preparer)

	for _, fst := range files {
		if !fst.hadPending {
			continue
		}
		ft := fst.ft

		switch e.job.Direction {
		case bulktypes.DirectionDownload:
			if dir := path.Dir(ft.Dst); dir != "." && dir != "/" && dir != "" {
				if err := e.fsys.MkdirAll(dir, 0o755); err != nil {
					return errors.NewPathError("download.prepare", ft.Dst, err)
				}
			}
			if len(ft.Pending()) == len(ft.Chunks) {
				// Fresh file, not a resume: drop any previous content
				// so stale trailing bytes cannot outlive the rewrite.
				if ok, _ := e.fsys.Exists(ft.Dst); ok {
					if err := e.fsys.Remove(ft.Dst); err != nil {
						return errors.NewPathError("download.prepare", ft.Dst, err)
					}
				}
			}
			f, err := e.fsys.OpenFile(ft.Dst, os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return errors.NewPathError("download.prepare", ft.Dst, err)
			}
			fst.dst = f

		case bulktypes.DirectionUpload:
			if dir := path.Dir(ft.Dst); dir != "." && dir != "/" && dir != "" {
				if err := e.store.Mkdir(ctx, dir); err != nil {
					return errors.NewPathError("upload.prepare", ft.Dst, err)
				}
			}
			if preparer != nil {
				if err := preparer.Prepare(ctx, ft.Dst, ft.Size, e.job.ChunkSize); err != nil {
					return errors.NewPathError("upload.prepare", ft.Dst, err)
				}
			}
			f, err := e.fsys.Open(ft.Src)
			if err != nil {
				return errors.NewPathError("upload.prepare", ft.Src, err)
			}
			fst.src = f
		}
	}
	return nil
}

// worker drains the queue. After cancellation it keeps draining without
// transferring, which leaves the remaining chunks pending for a later
// run.
func (e *Engine) worker(ctx context.Context, queue <-chan workItem, state *runState) {
	for item := range queue {
		if ctx.Err() != nil {
			continue
		}

		chunk := &item.file.ft.Chunks[item.chunk]
		e.setStatus(state, chunk, bulktypes.ChunkInFlight)

		err := e.transferChunk(ctx, item.file, chunk)
		switch {
		case err == nil:
			e.chunkDone(state, chunk)
		case ctx.Err() != nil:
			// Cancelled mid-transfer. The chunk goes back to pending
			// and will be retried by the next run.
			e.setStatus(state, chunk, bulktypes.ChunkPending)
		default:
			e.chunkFailed(state, item.file.ft, chunk, err)
		}
	}
}

func (e *Engine) setStatus(state *runState, chunk *bulktypes.Chunk, status bulktypes.ChunkStatus) {
	state.mu.Lock()
	defer state.mu.Unlock()
	chunk.Status = status
}

func (e *Engine) chunkDone(state *runState, chunk *bulktypes.Chunk) {
	state.mu.Lock()
	chunk.Status = bulktypes.ChunkDone
	state.transferred++
	state.bytes += chunk.Length
	state.doneBytes += chunk.Length
	done, total := state.doneBytes, e.job.TotalBytes()
	state.mu.Unlock()

	if e.tracker != nil {
		e.tracker.Update(done, total)
	}
}

func (e *Engine) chunkFailed(state *runState, ft *bulktypes.FileTransfer, chunk *bulktypes.Chunk, err error) {
	state.mu.Lock()
	defer state.mu.Unlock()
	chunk.Status = bulktypes.ChunkFailed
	state.failed++
	if state.firstErr == nil {
		state.firstErr = errors.NewPathError("chunk", ft.Src, errors.ErrChunkTransfer).
			WithMessage(err.Error())
	}
}

// finalize commits and verifies every file this run completed. Files
// interrupted mid-way are skipped; they are verified by the run that
// finishes them. A file whose commit fails or is overtaken by
// cancellation gets its last chunk reverted to pending, so the job never
// reports zero pending chunks until the commit has actually happened.
func (e *Engine) finalize(ctx context.Context, files []*fileState) error {
	preparer, _ := e.store.(storeapi.Preparer)

	var firstErr error
	for _, fst := range files {
		if !fst.hadPending || !fst.ft.Done() {
			continue
		}
		ft := fst.ft

		if ctx.Err() != nil {
			// Draining. Commit nothing now; a write-protocol upload owes
			// its commit to a later run.
			if e.job.Direction == bulktypes.DirectionUpload && preparer != nil {
				uncommit(ft)
			}
			continue
		}

		var size int64
		switch e.job.Direction {
		case bulktypes.DirectionDownload:
			info, err := e.fsys.Stat(ft.Dst)
			if err != nil {
				if firstErr == nil {
					firstErr = errors.NewPathError("download.verify", ft.Dst, err)
				}
				continue
			}
			size = info.Size()

		case bulktypes.DirectionUpload:
			if preparer != nil {
				if err := preparer.Finalize(ctx, ft.Dst); err != nil {
					uncommit(ft)
					if firstErr == nil {
						firstErr = errors.NewPathError("upload.finalize", ft.Dst, err)
					}
					continue
				}
			}
			info, err := e.store.Info(ctx, ft.Dst)
			if err != nil {
				if firstErr == nil {
					firstErr = errors.NewPathError("upload.verify", ft.Dst, err)
				}
				continue
			}
			size = info.Size
		}

		if size != ft.Size {
			if firstErr == nil {
				firstErr = errors.NewPathError("verify", ft.Dst, errors.ErrSizeMismatch)
			}
		}
	}
	return firstErr
}

// uncommit reverts the file's last chunk to pending. The next run
// re-sends that chunk and retries the commit, so an uncommitted file can
// never be mistaken for a complete one.
func uncommit(ft *bulktypes.FileTransfer) {
	if n := len(ft.Chunks); n > 0 {
		ft.Chunks[n-1].Status = bulktypes.ChunkPending
	}
}

// previouslyDoneBytes sums the bytes of chunks completed by earlier
// runs, so progress reporting for resumed jobs starts from the right
// baseline.
func (e *Engine) previouslyDoneBytes() int64 {
	var n int64
	for _, ft := range e.job.Files {
		for i := range ft.Chunks {
			if ft.Chunks[i].Status == bulktypes.ChunkDone {
				n += ft.Chunks[i].Length
			}
		}
	}
	return n
}

func (e *Engine) closeFiles(files []*fileState) {
	for _, fst := range files {
		if fst.dst != nil {
			fst.dst.Close()
			fst.dst = nil
		}
		if fst.src != nil {
			fst.src.Close()
			fst.src = nil
		}
	}
}

func (e *Engine) complete() {
	if e.tracker != nil {
		e.tracker.Complete()
	}
}
