// Package bulk provides a high-level Go module for bulk data transfer
// between a local filesystem and a remote hierarchical object store.
// It moves whole file trees in concurrent, chunked, resumable transfers
// while keeping the remote backend behind a small interface.
//
// A transfer is planned at construction time: the source specification
// (a literal path, a directory prefix, or a glob pattern) is expanded
// into an ordered file list and each file is split into a deterministic
// chunk plan. Run then moves the pending chunks with a pool of workers.
// Chunks complete out of order but reassemble byte-exactly, because each
// chunk lands at its own fixed offset.
//
// Key features:
//   - Glob expansion with per-segment wildcards for both directions
//   - Deterministic chunk planning, so interrupted jobs can resume
//   - Cooperative interruption: in-flight chunks drain, the rest wait
//   - Persistent job registry keyed by job identity hash
//   - Progressive enhancement through functional options
//   - Pluggable stores; an S3 implementation ships in s3store
//
// Example usage:
//
//	store, err := s3store.New(ctx, "my-bucket")
//	if err != nil {
//	    return err
//	}
//
//	// Download everything under a remote prefix.
//	stats, err := bulk.Download(ctx, store, nil, "datasets/2026/*.csv", "/local/data")
//	if err != nil {
//	    return err
//	}
//
//	// A run that was interrupted reports pending chunks; save it and
//	// resume later.
//	d, err := bulk.NewDownloader(ctx, store, nil, "datasets/2026/*.csv", "/local/data")
//	if err != nil {
//	    return err
//	}
//	stats, err = d.Run(ctx)
//	if stats.PendingChunks > 0 {
//	    err = d.Save(reg, true)
//	}
package bulk
