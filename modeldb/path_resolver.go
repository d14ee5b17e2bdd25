package modeldb

import (
	"github.com/pkg/errors"

	"collabdoc/common"
	"collabdoc/crdt"
	"collabdoc/crdtpatch"
)

// listSegment is the reserved segment name that materializes as an array
// container instead of an object when force-creating intermediate nodes.
const listSegment = "list"

// resolveNode returns the node at path, or nil if any segment is missing.
func resolveNode(doc *crdt.Doc, path Path) crdt.Node {
	cur := doc.Root().NodeValue
	if cur == nil {
		return nil
	}
	for _, seg := range path {
		obj, ok := cur.(*crdt.ObjectNode)
		if !ok {
			return nil
		}
		cur = obj.Get(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// forceParent walks to the object holding path's final segment, silently
// materializing missing intermediate containers. This is a deliberate
// create-on-write policy: primitives never need two-phase existence checks.
// Overwriting a wrongly-shaped intermediate is not an error either; the new
// container wins.
func forceParent(b *crdtpatch.Builder, path Path) (*crdt.ObjectNode, string, error) {
	if len(path) == 0 {
		return nil, "", common.ErrInvalidArgument{Message: "path cannot be empty"}
	}

	doc := b.Doc()
	root := doc.Root()
	cur, ok := root.NodeValue.(*crdt.ObjectNode)
	if !ok {
		stamp, err := b.NewObject()
		if err != nil {
			return nil, "", err
		}
		if err := b.SetRootNode(stamp); err != nil {
			return nil, "", err
		}
		node, err := doc.Node(stamp)
		if err != nil {
			return nil, "", err
		}
		cur = node.(*crdt.ObjectNode)
	}

	for _, seg := range path[:len(path)-1] {
		child, ok := cur.Get(seg).(*crdt.ObjectNode)
		if ok {
			cur = child
			continue
		}

		if seg == listSegment && cur.Get(seg) == nil {
			// An absent reserved list segment first materializes as an empty
			// array. Descending through it for further keys then falls into
			// the usual shape-repair below, where the object wins.
			stamp, err := b.NewList()
			if err != nil {
				return nil, "", err
			}
			if err := b.SetKeyNode(cur.Stamp(), seg, stamp); err != nil {
				return nil, "", err
			}
		}

		stamp, err := b.NewObject()
		if err != nil {
			return nil, "", err
		}
		if err := b.SetKeyNode(cur.Stamp(), seg, stamp); err != nil {
			return nil, "", err
		}
		node, err := doc.Node(stamp)
		if err != nil {
			return nil, "", err
		}
		cur = node.(*crdt.ObjectNode)
	}

	return cur, path[len(path)-1], nil
}

// forceSetNode materializes intermediate containers along path, then assigns
// the node produced by mk to the final segment. A final segment named by the
// reserved list name still takes whatever mk produced; the reservation only
// affects intermediate containers.
func forceSetNode(b *crdtpatch.Builder, path Path, mk func(*crdtpatch.Builder) (common.Stamp, error)) (common.Stamp, error) {
	parent, key, err := forceParent(b, path)
	if err != nil {
		return common.NilStamp, err
	}
	stamp, err := mk(b)
	if err != nil {
		return common.NilStamp, err
	}
	if err := b.SetKeyNode(parent.Stamp(), key, stamp); err != nil {
		return common.NilStamp, err
	}
	return stamp, nil
}

// forceSetValue materializes intermediate containers along path, then assigns
// a literal scalar to the final segment.
func forceSetValue(b *crdtpatch.Builder, path Path, value interface{}) error {
	parent, key, err := forceParent(b, path)
	if err != nil {
		return err
	}
	return b.SetKey(parent.Stamp(), key, value)
}

// ensureShape returns the node at path if it already has the wanted kind,
// repairing absent or wrongly-shaped nodes by force-creating an empty node
// of that kind. This is how primitives satisfy their shape invariant lazily.
func ensureShape(b *crdtpatch.Builder, path Path, kind common.NodeKind) (crdt.Node, error) {
	if node := resolveNode(b.Doc(), path); node != nil && node.Kind() == kind {
		return node, nil
	}

	mk := func(b *crdtpatch.Builder) (common.Stamp, error) {
		switch kind {
		case common.NodeKindObj:
			return b.NewObject()
		case common.NodeKindArr:
			return b.NewList()
		case common.NodeKindStr:
			return b.NewText()
		case common.NodeKindVal:
			return b.NewValue()
		default:
			return common.NilStamp, common.ErrInvalidNodeKind{Kind: string(kind)}
		}
	}

	stamp, err := forceSetNode(b, path, mk)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to repair shape at %s", path)
	}
	return b.Doc().Node(stamp)
}
