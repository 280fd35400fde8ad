// Package expand resolves source path specifications (literal files,
// directory prefixes, or glob patterns) into concrete source/destination
// file pairs. Expansion is deterministic: results are ordered
// lexicographically by source path.
package expand

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/errors"
)

// Entry describes one node in a source or destination tree.
type Entry struct {
	// Path is the full slash-separated path of the entry.
	Path string

	// Size is the file size in bytes. Zero for directories.
	Size int64

	// Dir reports whether the entry is a directory.
	Dir bool
}

// Tree abstracts one side of a transfer for expansion purposes. Both the
// remote store and the local filesystem are presented through it, so the
// same expansion logic serves uploads and downloads.
type Tree interface {
	// Stat returns the entry at path. The error unwraps to
	// errors.ErrObjectNotFound when nothing exists there.
	Stat(path string) (Entry, error)

	// ListPrefix returns every file under dir, recursively. Directories
	// themselves are not returned.
	ListPrefix(dir string) ([]Entry, error)
}

// Match is one resolved source/destination pair.
type Match struct {
	// Src is the concrete source path.
	Src string

	// Dst is the computed destination path.
	Dst string

	// Size is the source size in bytes at expansion time.
	Size int64
}

// Expand resolves spec against the source tree and computes a destination
// under dstRoot for every matched file. It returns errors.ErrNoMatch when
// nothing matches.
func Expand(src, dst Tree, spec, dstRoot string) ([]Match, error) {
	spec = normalize(spec)
	dstRoot = normalize(dstRoot)

	var (
		matches []Match
		err     error
	)
	if HasWildcard(spec) {
		matches, err = expandGlob(src, spec, dstRoot)
	} else {
		matches, err = expandLiteral(src, dst, spec, dstRoot)
	}
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.NewError("expand", errors.ErrNoMatch).WithPath(spec)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Src < matches[j].Src })
	return matches, nil
}

// expandLiteral handles specs without wildcards: a single file, or a
// directory walked recursively.
func expandLiteral(src, dst Tree, spec, dstRoot string) ([]Match, error) {
	info, statErr := src.Stat(spec)
	if statErr == nil && !info.Dir {
		// A single file. If the destination root is an existing
		// directory the file lands inside it under its own base name.
		target := dstRoot
		if di, err := dst.Stat(dstRoot); err == nil && di.Dir {
			target = joinPath(dstRoot, path.Base(spec))
		}
		return []Match{{Src: spec, Dst: target, Size: info.Size}}, nil
	}
	if statErr != nil && spec != "" && !isNotFound(statErr) {
		// A real I/O failure must not be mistaken for an empty match.
		return nil, errors.NewError("expand", statErr).WithPath(spec)
	}

	// Directory, pure prefix, or nothing. Listing decides which.
	entries, err := src.ListPrefix(spec)
	if err != nil {
		return nil, errors.NewError("expand", err).WithPath(spec)
	}
	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		rel := relativeTo(e.Path, spec)
		matches = append(matches, Match{Src: e.Path, Dst: joinPath(dstRoot, rel), Size: e.Size})
	}
	return matches, nil
}

// expandGlob handles specs containing '*'. Every file under the longest
// non-wildcard prefix is listed once and matched segment-wise, so a
// wildcard covers exactly one directory level.
func expandGlob(src Tree, spec, dstRoot string) ([]Match, error) {
	prefix := LiteralPrefix(spec)
	entries, err := src.ListPrefix(prefix)
	if err != nil {
		return nil, errors.NewError("expand", err).WithPath(spec)
	}

	patSegs := Split(spec)
	var matches []Match
	for _, e := range entries {
		if e.Dir {
			continue
		}
		if !MatchSegments(Split(e.Path), patSegs) {
			continue
		}
		rel := relativeTo(e.Path, prefix)
		matches = append(matches, Match{Src: e.Path, Dst: joinPath(dstRoot, rel), Size: e.Size})
	}
	return matches, nil
}

// isNotFound reports whether err means "nothing at this path", from
// either side of a transfer: stores unwrap to ErrObjectNotFound, local
// filesystems to os.ErrNotExist.
func isNotFound(err error) bool {
	return errors.IsObjectNotFound(err) || os.IsNotExist(err)
}

// normalize collapses redundant separators and trailing slashes while
// preserving rootedness. An empty spec stays empty and means "everything".
func normalize(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// relativeTo strips the prefix (and its separator) from p. An empty
// prefix leaves p unchanged apart from a leading slash.
func relativeTo(p, prefix string) string {
	if prefix == "" {
		return strings.TrimPrefix(p, "/")
	}
	rel := strings.TrimPrefix(p, prefix)
	return strings.TrimPrefix(rel, "/")
}

// joinPath joins base and rel without cleaning away an intentionally
// empty base.
func joinPath(base, rel string) string {
	if base == "" {
		return rel
	}
	if rel == "" {
		return base
	}
	return base + "/" + rel
}
