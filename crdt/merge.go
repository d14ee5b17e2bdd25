package crdt

import (
	"collabdoc/common"
)

// MergeKey writes a value under key with last-write-wins resolution. When
// the current and incoming values are both object containers, the two were
// materialized independently at the same path by different replicas; instead
// of one replacing the other and orphaning its subtree, the containers join
// to their union. The losing container's stamp aliases to the survivor, so
// operations addressed to either stamp land in the same node on every
// replica.
func MergeKey(doc *Doc, obj *ObjectNode, key string, stamp common.Stamp, value Node) bool {
	field, ok := obj.fields[key]
	if ok {
		curObj, curIsObj := field.value.(*ObjectNode)
		newObj, newIsObj := value.(*ObjectNode)
		if curIsObj && newIsObj && curObj != newObj {
			if stamp.Compare(field.wroteAt) > 0 {
				obj.fields[key] = &objectField{wroteAt: stamp, value: newObj}
				joinObjects(doc, newObj, curObj)
			} else {
				joinObjects(doc, curObj, newObj)
			}
			return true
		}
	}
	return obj.Set(key, stamp, value)
}

// MergeRoot points the document root at a value with the same object-join
// behavior as MergeKey, so replicas that each replaced the root with their
// own container still converge on one joined tree.
func MergeRoot(doc *Doc, root *RootNode, stamp common.Stamp, value Node) bool {
	curObj, curIsObj := root.NodeValue.(*ObjectNode)
	newObj, newIsObj := value.(*ObjectNode)
	if curIsObj && newIsObj && curObj != newObj {
		if stamp.Compare(root.wroteAt) > 0 {
			root.wroteAt = stamp
			root.NodeValue = newObj
			joinObjects(doc, newObj, curObj)
		} else {
			joinObjects(doc, curObj, newObj)
		}
		return true
	}
	return root.Set(stamp, value)
}

// joinObjects folds every field of the loser into the winner, field by field
// under the same merge rule, then redirects the loser's stamp to the winner.
// Both replicas pick the same winner because the field write stamps order
// identically everywhere, so the join commutes.
func joinObjects(doc *Doc, winner, loser *ObjectNode) {
	for key, field := range loser.fields {
		MergeKey(doc, winner, key, field.wroteAt, field.value)
	}
	doc.Alias(loser.Stamp(), winner)
}
