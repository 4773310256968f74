package resolver

import (
	"sort"
	"strings"
	"time"

	"github.com/jgivc/spaproxy/internal/common"
	"github.com/jgivc/spaproxy/internal/entity"
	"github.com/jgivc/spaproxy/internal/util"
)

// Index is an immutable snapshot mapping path prefixes to properties.
// It is built once and published through an atomic pointer; concurrent
// requests only ever read it.
type Index struct {
	entries []*entity.Property
	byPath  map[string]*entity.Property
	builtAt time.Time
}

// BuildIndex groups properties by normalized path. Input order decides
// duplicate-path collisions: a later entry replaces an earlier one with the
// same path (the scanner provides deterministic order, so this is a
// reproducible last-write-wins). Entries are kept sorted longest path first
// so resolution can stop at the first boundary match; equal-length paths are
// ordered by ref so ties break to the lexicographically first ref.
func BuildIndex(props []*entity.Property) *Index {
	byPath := make(map[string]*entity.Property, len(props))
	for _, prop := range props {
		byPath[prop.Path] = prop
	}

	entries := make([]*entity.Property, 0, len(byPath))
	for _, prop := range byPath {
		entries = append(entries, prop)
	}

	sort.Slice(entries, func(a, b int) bool {
		if len(entries[a].Path) != len(entries[b].Path) {
			return len(entries[a].Path) > len(entries[b].Path)
		}
		if entries[a].Ref != entries[b].Ref {
			return entries[a].Ref < entries[b].Ref
		}

		return entries[a].Path < entries[b].Path
	})

	return &Index{
		entries: entries,
		byPath:  byPath,
		builtAt: time.Now(),
	}
}

// Resolve finds the property whose path is the longest prefix of
// requestPath ending at a segment boundary and returns it together with the
// remaining sub-path after the prefix. The remainder never starts with a
// slash and is empty when the request hit the property path exactly.
func (ix *Index) Resolve(requestPath string) (*entity.Property, string, error) {
	p := util.NormalizePath(requestPath)

	for _, prop := range ix.entries {
		remainder, ok := matchPrefix(p, prop.Path)
		if ok {
			return prop, remainder, nil
		}
	}

	return nil, "", common.ErrPathNotFoundError
}

// Size returns the number of active properties in the snapshot.
func (ix *Index) Size() int {
	return len(ix.entries)
}

// Properties returns the snapshot's entries ordered by path.
func (ix *Index) Properties() []*entity.Property {
	props := make([]*entity.Property, len(ix.entries))
	copy(props, ix.entries)

	sort.Slice(props, func(a, b int) bool {
		return props[a].Path < props[b].Path
	})

	return props
}

// matchPrefix reports whether prefix owns p: it must be equal to p or be
// followed by a path separator, so /foo never matches /foobar.
func matchPrefix(p, prefix string) (string, bool) {
	if prefix == "/" {
		return strings.TrimPrefix(p, "/"), true
	}

	if !strings.HasPrefix(p, prefix) {
		return "", false
	}

	if len(p) == len(prefix) {
		return "", true
	}

	if p[len(prefix)] != '/' {
		return "", false
	}

	return p[len(prefix)+1:], true
}
