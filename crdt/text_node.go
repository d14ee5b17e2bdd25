package crdt

import (
	"strings"

	"collabdoc/common"
)

// TextNode is a replicated growable array of runes. Multi-rune inserts expand
// into consecutive elements whose stamps advance by one per rune.
type TextNode struct {
	stamp    common.Stamp
	elements []*rgaElement
}

// NewTextNode creates a new RGA text node.
func NewTextNode(stamp common.Stamp) *TextNode {
	return &TextNode{stamp: stamp}
}

// Stamp returns the unique identifier of the node.
func (n *TextNode) Stamp() common.Stamp {
	return n.stamp
}

// Kind returns the kind of the node.
func (n *TextNode) Kind() common.NodeKind {
	return common.NodeKindStr
}

// Value returns the plain JSON view of the node.
func (n *TextNode) Value() interface{} {
	return n.String()
}

// String returns the visible text.
func (n *TextNode) String() string {
	var sb strings.Builder
	for _, elem := range n.elements {
		if !elem.deleted {
			sb.WriteRune(elem.value.(rune))
		}
	}
	return sb.String()
}

// Len returns the number of visible runes.
func (n *TextNode) Len() int {
	count := 0
	for _, elem := range n.elements {
		if !elem.deleted {
			count++
		}
	}
	return count
}

// StampAt returns the stamp of the rune at the given visible index.
func (n *TextNode) StampAt(index int) (common.Stamp, error) {
	if index < 0 {
		return common.NilStamp, common.ErrInvalidArgument{Message: "index cannot be negative"}
	}
	seen := 0
	for _, elem := range n.elements {
		if elem.deleted {
			continue
		}
		if seen == index {
			return elem.stamp, nil
		}
		seen++
	}
	return common.NilStamp, common.ErrInvalidArgument{Message: "index out of bounds"}
}

// StampBefore returns the stamp to insert after so that new text lands at the
// given visible index. Index 0 maps to the text head.
func (n *TextNode) StampBefore(index int) (common.Stamp, error) {
	if index == 0 {
		return common.RootStamp, nil
	}
	return n.StampAt(index - 1)
}

// Insert places text after the rune identified by afterStamp. The i-th rune
// of value takes stamp.Advance(i). common.RootStamp addresses the text head.
func (n *TextNode) Insert(afterStamp, stamp common.Stamp, value string) bool {
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

	runes := []rune(value)
	inserted := make([]*rgaElement, len(runes))
	for i, r := range runes {
		inserted[i] = &rgaElement{stamp: stamp.Advance(uint64(i)), value: r}
	}

	tail := make([]*rgaElement, len(n.elements[pos+1:]))
	copy(tail, n.elements[pos+1:])
	n.elements = append(n.elements[:pos+1], append(inserted, tail...)...)
	return true
}

// Delete marks every rune between startStamp and endStamp inclusive as a
// tombstone.
func (n *TextNode) Delete(startStamp, endStamp common.Stamp) bool {
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
