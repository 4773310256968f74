package util

import "strings"

// NormalizePath brings a request path to its canonical form: a single
// leading slash, duplicate slashes collapsed, no trailing slash (the root
// stays "/"). Dot segments are kept as-is so traversal attempts remain
// visible to the serving layer.
func NormalizePath(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 1)

	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}

		b.WriteByte('/')
		b.WriteString(seg)
	}

	if b.Len() == 0 {
		return "/"
	}

	return b.String()
}

// HasTraversal reports whether any segment of p is a parent-directory
// reference.
func HasTraversal(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}

	return false
}
