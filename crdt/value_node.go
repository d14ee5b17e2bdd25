package crdt

import (
	"collabdoc/common"
)

// ValueNode is a last-write-wins register. Concurrent writes are resolved by
// stamp comparison, so all replicas converge on the same winner.
type ValueNode struct {
	stamp     common.Stamp
	wroteAt   common.Stamp
	NodeValue Node
}

// NewValueNode creates a new LWW register node.
func NewValueNode(stamp common.Stamp, value Node) *ValueNode {
	return &ValueNode{stamp: stamp, wroteAt: stamp, NodeValue: value}
}

// Stamp returns the unique identifier of the node.
func (n *ValueNode) Stamp() common.Stamp {
	return n.stamp
}

// Kind returns the kind of the node.
func (n *ValueNode) Kind() common.NodeKind {
	return common.NodeKindVal
}

// Value returns the plain JSON view of the node.
func (n *ValueNode) Value() interface{} {
	if n.NodeValue == nil {
		return nil
	}
	return n.NodeValue.Value()
}

// Set replaces the register value if stamp is newer than the last write.
func (n *ValueNode) Set(stamp common.Stamp, value Node) bool {
	if n.NodeValue == nil || stamp.Compare(n.wroteAt) > 0 {
		n.wroteAt = stamp
		n.NodeValue = value
		return true
	}
	return false
}
