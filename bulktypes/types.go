// Package bulktypes provides shared type definitions for the bulk transfer module.
package bulktypes

import (
	"os"
	"time"
)

// Direction indicates which way bytes move between the local filesystem
// and the remote store.
type Direction string

// Transfer directions
const (
	// DirectionDownload copies remote objects to local files.
	DirectionDownload Direction = "download"

	// DirectionUpload copies local files to remote objects.
	DirectionUpload Direction = "upload"
)

// ChunkStatus represents the lifecycle state of a single chunk.
type ChunkStatus string

// Chunk lifecycle states
const (
	// ChunkPending means the chunk has not been transferred yet.
	ChunkPending ChunkStatus = "pending"

	// ChunkInFlight means a worker is currently transferring the chunk.
	ChunkInFlight ChunkStatus = "in-flight"

	// ChunkDone means the chunk transferred successfully.
	ChunkDone ChunkStatus = "done"

	// ChunkFailed means the chunk exhausted its retries.
	ChunkFailed ChunkStatus = "failed"
)

// Chunk is a contiguous byte range of a single file transfer.
type Chunk struct {
	// Offset is the starting byte position within the file.
	Offset int64

	// Length is the number of bytes covered by this chunk. The final
	// chunk of a file may be shorter than the configured chunk size.
	Length int64

	// Status is the chunk's current lifecycle state.
	Status ChunkStatus
}

// FileTransfer is one source/destination file pair and its chunk plan.
type FileTransfer struct {
	// Src is the source path (remote for downloads, local for uploads).
	Src string

	// Dst is the destination path (local for downloads, remote for uploads).
	Dst string

	// Size is the source file size in bytes at planning time.
	Size int64

	// Chunks is the deterministic chunk plan covering [0, Size).
	Chunks []Chunk
}

// Pending returns the indices of chunks that still need to be transferred.
func (f *FileTransfer) Pending() []int {
	var idx []int
	for i := range f.Chunks {
		if f.Chunks[i].Status != ChunkDone {
			idx = append(idx, i)
		}
	}
	return idx
}

// Done reports whether every chunk of the file has transferred.
func (f *FileTransfer) Done() bool {
	for i := range f.Chunks {
		if f.Chunks[i].Status != ChunkDone {
			return false
		}
	}
	return true
}

// TransferJob is the fully planned state of one transfer: the resolved
// file list, the chunk plan for each file, and the identity hash that
// names the job in the registry.
type TransferJob struct {
	// Direction is the transfer direction.
	Direction Direction

	// Source is the original source specification (may contain wildcards).
	Source string

	// Destination is the destination root path.
	Destination string

	// ChunkSize is the chunk size in bytes used for planning.
	ChunkSize int64

	// Hash is the job identity derived from direction, source,
	// destination, and chunk size.
	Hash string

	// Files is the ordered list of planned file transfers.
	Files []*FileTransfer
}

// TotalChunks returns the number of chunks across all files.
func (j *TransferJob) TotalChunks() int {
	n := 0
	for _, f := range j.Files {
		n += len(f.Chunks)
	}
	return n
}

// PendingChunks returns the number of chunks not yet transferred.
func (j *TransferJob) PendingChunks() int {
	n := 0
	for _, f := range j.Files {
		n += len(f.Pending())
	}
	return n
}

// TotalBytes returns the sum of all planned file sizes.
func (j *TransferJob) TotalBytes() int64 {
	var n int64
	for _, f := range j.Files {
		n += f.Size
	}
	return n
}

// Record converts the job's current state into a persistable JobRecord.
func (j *TransferJob) Record() *JobRecord {
	rec := &JobRecord{
		Hash:        j.Hash,
		Direction:   j.Direction,
		Source:      j.Source,
		Destination: j.Destination,
		ChunkSize:   j.ChunkSize,
		SavedAt:     time.Now().UTC(),
	}
	for _, f := range j.Files {
		rec.Files = append(rec.Files, FileRecord{
			Src:     f.Src,
			Dst:     f.Dst,
			Size:    f.Size,
			Pending: f.Pending(),
		})
	}
	return rec
}

// FileRecord is the persisted state of one file transfer.
type FileRecord struct {
	Src     string `json:"src"`
	Dst     string `json:"dst"`
	Size    int64  `json:"size"`
	Pending []int  `json:"pending"`
}

// JobRecord is the persisted state of an interrupted or in-progress job.
// It carries everything needed to resume without re-listing the source.
type JobRecord struct {
	Hash        string       `json:"hash"`
	Direction   Direction    `json:"direction"`
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	ChunkSize   int64        `json:"chunk_size"`
	SavedAt     time.Time    `json:"saved_at"`
	Files       []FileRecord `json:"files"`
}

// PendingChunks returns the number of chunks the record still owes.
func (r *JobRecord) PendingChunks() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Pending)
	}
	return n
}

// TransferStats summarizes the outcome of one Run.
type TransferStats struct {
	// Files is the number of files in the job.
	Files int

	// TotalChunks is the number of chunks across all files.
	TotalChunks int

	// TransferredChunks is the number of chunks completed by this run.
	TransferredChunks int

	// PendingChunks is the number of chunks still outstanding after
	// this run. Non-zero after an interrupt or chunk failures.
	PendingChunks int

	// FailedChunks is the number of chunks that exhausted retries.
	FailedChunks int

	// BytesTransferred is the number of bytes moved by this run.
	BytesTransferred int64

	// Interrupted reports whether the run stopped due to cancellation
	// or an interrupt signal.
	Interrupted bool

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// ProgressTracker receives progress updates during a transfer.
type ProgressTracker interface {
	// Update is called as chunks complete with the cumulative number of
	// transferred bytes and the total number of bytes in the job.
	Update(transferred, total int64)

	// Complete is called once when the run finishes.
	Complete()
}

// Default configuration values
const (
	// DefaultThreads is the default worker count.
	DefaultThreads = 16

	// DefaultChunkSize is the default chunk size (256 MiB).
	DefaultChunkSize int64 = 256 * 1024 * 1024

	// DefaultRetries is the default per-chunk retry limit.
	DefaultRetries = 3
)

// TransferConfig holds the tunable settings for a transfer job.
type TransferConfig struct {
	// Threads is the number of concurrent chunk workers.
	Threads int

	// ChunkSize is the chunk size in bytes.
	ChunkSize int64

	// Retries is the number of times a failed chunk transfer is retried
	// before the chunk is marked failed.
	Retries int

	// AllowEmpty permits a source specification that matches nothing.
	// When false an empty expansion is an error.
	AllowEmpty bool

	// Overwrite permits replacing destination files that already exist.
	Overwrite bool

	// Tracker receives progress updates. Nil disables progress reporting.
	Tracker ProgressTracker

	// Signals are the OS signals that trigger a cooperative interrupt
	// during Run. Defaults to os.Interrupt.
	Signals []os.Signal

	// NoSignalHandling disables signal-based interruption entirely.
	// Cancellation via the Run context still works.
	NoSignalHandling bool
}

// DefaultTransferConfig returns a TransferConfig with default values.
func DefaultTransferConfig() *TransferConfig {
	return &TransferConfig{
		Threads:   DefaultThreads,
		ChunkSize: DefaultChunkSize,
		Retries:   DefaultRetries,
		Signals:   []os.Signal{os.Interrupt},
	}
}
