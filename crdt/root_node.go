package crdt

import (
	"collabdoc/common"
)

// RootNode is the entry point of a document. It behaves as a LWW register
// whose value is the document's top-level node.
type RootNode struct {
	stamp     common.Stamp
	wroteAt   common.Stamp
	NodeValue Node
}

// NewRootNode creates a new root node.
func NewRootNode(stamp common.Stamp) *RootNode {
	return &RootNode{stamp: stamp}
}

// Stamp returns the unique identifier of the node.
func (n *RootNode) Stamp() common.Stamp {
	return n.stamp
}

// Kind returns the kind of the node.
func (n *RootNode) Kind() common.NodeKind {
	return common.NodeKindRoot
}

// Value returns the plain JSON view of the node.
func (n *RootNode) Value() interface{} {
	if n.NodeValue == nil {
		return nil
	}
	return n.NodeValue.Value()
}

// Set replaces the root value if stamp is newer than the last write.
func (n *RootNode) Set(stamp common.Stamp, value Node) bool {
	if n.NodeValue == nil || stamp.Compare(n.wroteAt) > 0 {
		n.wroteAt = stamp
		n.NodeValue = value
		return true
	}
	return false
}
