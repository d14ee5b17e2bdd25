package crdt

import (
	"collabdoc/common"
)

// LiteralNode holds an immutable scalar value. Mutation of a literal is
// expressed by writing a new literal into the parent register or container.
type LiteralNode struct {
	stamp common.Stamp
	value interface{}
}

// NewLiteralNode creates a new literal node.
func NewLiteralNode(stamp common.Stamp, value interface{}) *LiteralNode {
	return &LiteralNode{stamp: stamp, value: value}
}

// Stamp returns the unique identifier of the node.
func (n *LiteralNode) Stamp() common.Stamp {
	return n.stamp
}

// Kind returns the kind of the node.
func (n *LiteralNode) Kind() common.NodeKind {
	return common.NodeKindCon
}

// Value returns the scalar value.
func (n *LiteralNode) Value() interface{} {
	return n.value
}
