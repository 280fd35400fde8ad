package bulk

import (
	"os"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
)

// Option configures a transfer job.
type Option func(*bulktypes.TransferConfig)

// WithThreads sets the number of concurrent chunk workers.
func WithThreads(n int) Option {
	return func(cfg *bulktypes.TransferConfig) {
		cfg.Threads = n
	}
}

// WithChunkSize sets the chunk size in bytes. The chunk size is part of
// the job identity: changing it produces a different job.
func WithChunkSize(size int64) Option {
	return func(cfg *bulktypes.TransferConfig) {
		cfg.ChunkSize = size
	}
}

// WithRetries sets how many times a failed chunk transfer is retried.
func WithRetries(n int) Option {
	return func(cfg *bulktypes.TransferConfig) {
		cfg.Retries = n
	}
}

// WithAllowEmpty permits a source specification that matches no files.
// The resulting job has nothing to do and completes immediately.
func WithAllowEmpty() Option {
	return func(cfg *bulktypes.TransferConfig) {
		cfg.AllowEmpty = true
	}
}

// WithOverwrite permits replacing destination files that already exist.
func WithOverwrite() Option {
	return func(cfg *bulktypes.TransferConfig) {
		cfg.Overwrite = true
	}
}

// WithProgress installs a progress tracker that receives byte-level
// updates as chunks complete.
func WithProgress(tracker bulktypes.ProgressTracker) Option {
	return func(cfg *bulktypes.TransferConfig) {
		cfg.Tracker = tracker
	}
}

// WithSignals sets the OS signals that interrupt a running transfer.
func WithSignals(signals ...os.Signal) Option {
	return func(cfg *bulktypes.TransferConfig) {
		cfg.Signals = signals
	}
}

// WithoutSignalHandling disables signal-based interruption. The transfer
// can still be stopped by cancelling the context passed to Run.
func WithoutSignalHandling() Option {
	return func(cfg *bulktypes.TransferConfig) {
		cfg.NoSignalHandling = true
	}
}
