package crdt

import (
	"collabdoc/common"
)

// Node is a single addressable node inside a CRDT document. Every node keeps
// the stamp it was created with, which gives it stable identity across merges.
type Node interface {
	// Stamp returns the unique identifier of the node.
	Stamp() common.Stamp

	// Kind returns the kind of the node.
	Kind() common.NodeKind

	// Value returns the plain JSON view of the node.
	Value() interface{}
}

// rgaElement is one slot of a replicated growable array. Deleted elements
// remain as tombstones so that concurrent operations can still address them.
type rgaElement struct {
	stamp   common.Stamp
	value   interface{}
	deleted bool
}
