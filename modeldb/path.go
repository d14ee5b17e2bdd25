package modeldb

import (
	"strings"
)

// Path is an ordered sequence of string segments addressing a node inside
// the shared document. Paths are stable for the lifetime of a primitive;
// re-pathing a composite updates its path and its children's in lockstep.
type Path []string

// NewPath builds a path from segments.
func NewPath(segments ...string) Path {
	return Path(segments)
}

// ParsePath splits a dotted path string into segments.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "."))
}

// Concat returns a new path with the given segments appended.
func (p Path) Concat(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	out = append(out, segments...)
	return out
}

// String returns the dotted form of the path.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Equal reports whether two paths address the same location.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}
