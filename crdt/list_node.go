package crdt

import (
	"collabdoc/common"
)

// ListNode is a replicated growable array whose elements are child nodes.
// Deleted elements become tombstones; visible indexes skip them.
type ListNode struct {
	stamp    common.Stamp
	elements []*rgaElement
}

// NewListNode creates a new RGA list node.
func NewListNode(stamp common.Stamp) *ListNode {
	return &ListNode{stamp: stamp}
}

// Stamp returns the unique identifier of the node.
func (n *ListNode) Stamp() common.Stamp {
	return n.stamp
}

// Kind returns the kind of the node.
func (n *ListNode) Kind() common.NodeKind {
	return common.NodeKindArr
}

// Value returns the plain JSON view of the node.
func (n *ListNode) Value() interface{} {
	result := make([]interface{}, 0, len(n.elements))
	for _, elem := range n.elements {
		if !elem.deleted {
			result = append(result, elem.value.(Node).Value())
		}
	}
	return result
}

// Len returns the number of visible elements.
func (n *ListNode) Len() int {
	count := 0
	for _, elem := range n.elements {
		if !elem.deleted {
			count++
		}
	}
	return count
}

// NodeAt returns the child node at the given visible index.
func (n *ListNode) NodeAt(index int) (Node, error) {
	elem, err := n.visible(index)
	if err != nil {
		return nil, err
	}
	return elem.value.(Node), nil
}

// StampAt returns the stamp of the element at the given visible index.
func (n *ListNode) StampAt(index int) (common.Stamp, error) {
	elem, err := n.visible(index)
	if err != nil {
		return common.NilStamp, err
	}
	return elem.stamp, nil
}

// StampBefore returns the stamp to insert after so that the new element lands
// at the given visible index. Index 0 maps to the list head.
func (n *ListNode) StampBefore(index int) (common.Stamp, error) {
	if index == 0 {
		return common.RootStamp, nil
	}
	return n.StampAt(index - 1)
}

func (n *ListNode) visible(index int) (*rgaElement, error) {
	if index < 0 {
		return nil, common.ErrInvalidArgument{Message: "index cannot be negative"}
	}
	seen := 0
	for _, elem := range n.elements {
		if elem.deleted {
			continue
		}
		if seen == index {
			return elem, nil
		}
		seen++
	}
	return nil, common.ErrInvalidArgument{Message: "index out of bounds"}
}

// Insert places a child node after the element identified by afterStamp.
// common.RootStamp addresses the list head. Among elements inserted after the
// same reference, higher stamps sort first, which makes concurrent inserts
// commute.
func (n *ListNode) Insert(afterStamp, stamp common.Stamp, value Node) bool {
	pos := -1
	if afterStamp.Compare(common.RootStamp) != 0 {
		for i, elem := range n.elements {
			if elem.stamp.Compare(afterStamp) == 0 {
				pos = i
				break
			}
		}
		if pos == -1 {
			return false
		}
	}

	// RGA skip rule: pass over concurrent siblings with a higher stamp.
	for pos+1 < len(n.elements) && n.elements[pos+1].stamp.Compare(stamp) > 0 {
		pos++
	}

	elem := &rgaElement{stamp: stamp, value: value}
	n.elements = append(n.elements, nil)
	copy(n.elements[pos+2:], n.elements[pos+1:])
	n.elements[pos+1] = elem
	return true
}

// Delete marks the element with the given stamp as a tombstone.
func (n *ListNode) Delete(stamp common.Stamp) bool {
	for _, elem := range n.elements {
		if elem.stamp.Compare(stamp) == 0 {
			if elem.deleted {
				return false
			}
			elem.deleted = true
			return true
		}
	}
	return false
}

// DeleteRange marks every element between startStamp and endStamp inclusive
// as a tombstone.
func (n *ListNode) DeleteRange(startStamp, endStamp common.Stamp) bool {
	startPos, endPos := -1, -1
	for i, elem := range n.elements {
		if elem.stamp.Compare(startStamp) == 0 {
			startPos = i
		}
		if elem.stamp.Compare(endStamp) == 0 {
			endPos = i
		}
		if startPos != -1 && endPos != -1 {
			break
		}
	}

	if startPos == -1 || endPos == -1 || startPos > endPos {
		return false
	}

	for i := startPos; i <= endPos; i++ {
		n.elements[i].deleted = true
	}
	return true
}
