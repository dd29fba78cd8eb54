// Package pathutil checks user-supplied names before they are joined into
// workspace paths.
package pathutil

import "strings"

// HasDotSegments reports whether any slash-separated segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// IsPlainName reports whether name is usable as a single path component on
// every platform: non-empty, no separators, no NUL, and not a dot segment.
func IsPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
