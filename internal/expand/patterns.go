package expand

import "strings"

// HasWildcard reports whether the path specification contains a glob
// wildcard. Only '*' is recognized; it never matches a path separator.
func HasWildcard(spec string) bool {
	return strings.Contains(spec, "*")
}

// Split breaks a slash-separated path into its segments. A rooted path
// keeps its leading empty segment so rooted and relative paths never
// compare equal.
func Split(p string) []string {
	return strings.Split(p, "/")
}

// MatchSegments matches a path, segment by segment, against a pattern.
// Every segment must match its counterpart and the segment counts must
// be equal, so a wildcard never spans directory levels.
func MatchSegments(pathSegs, patternSegs []string) bool {
	if len(pathSegs) != len(patternSegs) {
		return false
	}
	for i := range patternSegs {
		if !matchSegment(pathSegs[i], patternSegs[i]) {
			return false
		}
	}
	return true
}

// matchSegment matches a single path segment against a pattern segment
// that may contain any number of '*' wildcards.
func matchSegment(s, pattern string) bool {
	// Fast paths for the common cases.
	if !strings.Contains(pattern, "*") {
		return s == pattern
	}
	if pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, "*")

	// The first and last parts are anchored.
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	if !strings.HasSuffix(s, last) {
		return false
	}
	s = s[:len(s)-len(last)]

	// Interior parts match greedily left to right.
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return true
}

// LiteralPrefix returns the longest leading run of segments that contain
// no wildcard, joined back into a path. For "data/*/x.csv" it returns
// "data"; for "*/x.csv" it returns "".
func LiteralPrefix(spec string) string {
	segs := Split(spec)
	n := 0
	for _, seg := range segs {
		if strings.Contains(seg, "*") {
			break
		}
		n++
	}
	return strings.Join(segs[:n], "/")
}
