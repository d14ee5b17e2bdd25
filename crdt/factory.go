package crdt

import (
	"collabdoc/common"
)

// NewNodeOfKind creates an empty node of the given kind. Literal nodes carry
// their value at creation time and are built with NewLiteralNode directly.
func NewNodeOfKind(kind common.NodeKind, stamp common.Stamp) (Node, error) {
	switch kind {
	case common.NodeKindCon:
		return NewLiteralNode(stamp, nil), nil
	case common.NodeKindVal:
		return NewValueNode(stamp, nil), nil
	case common.NodeKindObj:
		return NewObjectNode(stamp), nil
	case common.NodeKindArr:
		return NewListNode(stamp), nil
	case common.NodeKindStr:
		return NewTextNode(stamp), nil
	case common.NodeKindRoot:
		return NewRootNode(stamp), nil
	default:
		return nil, common.ErrInvalidNodeKind{Kind: string(kind)}
	}
}
