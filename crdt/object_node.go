package crdt

import (
	"sort"

	"collabdoc/common"
)

// ObjectNode is a last-write-wins map from string keys to child nodes.
type ObjectNode struct {
	stamp  common.Stamp
	fields map[string]*objectField
}

// objectField records a value together with the stamp that wrote it.
type objectField struct {
	wroteAt common.Stamp
	value   Node
}

// NewObjectNode creates a new LWW object node.
func NewObjectNode(stamp common.Stamp) *ObjectNode {
	return &ObjectNode{
		stamp:  stamp,
		fields: make(map[string]*objectField),
	}
}

// Stamp returns the unique identifier of the node.
func (n *ObjectNode) Stamp() common.Stamp {
	return n.stamp
}

// Kind returns the kind of the node.
func (n *ObjectNode) Kind() common.NodeKind {
	return common.NodeKindObj
}

// Value returns the plain JSON view of the node.
func (n *ObjectNode) Value() interface{} {
	result := make(map[string]interface{}, len(n.fields))
	for key, field := range n.fields {
		result[key] = field.value.Value()
	}
	return result
}

// Get returns the child node at key, or nil if the key is absent.
func (n *ObjectNode) Get(key string) Node {
	if field, ok := n.fields[key]; ok {
		return field.value
	}
	return nil
}

// Has reports whether the object has the given key.
func (n *ObjectNode) Has(key string) bool {
	_, ok := n.fields[key]
	return ok
}

// Set writes a field if stamp is newer than the field's last write.
func (n *ObjectNode) Set(key string, stamp common.Stamp, value Node) bool {
	field, ok := n.fields[key]
	if !ok || stamp.Compare(field.wroteAt) > 0 {
		n.fields[key] = &objectField{wroteAt: stamp, value: value}
		return true
	}
	return false
}

// Delete removes a field if stamp is newer than the field's last write.
func (n *ObjectNode) Delete(key string, stamp common.Stamp) bool {
	field, ok := n.fields[key]
	if ok && stamp.Compare(field.wroteAt) > 0 {
		delete(n.fields, key)
		return true
	}
	return false
}

// Keys returns the keys of the object in sorted order.
func (n *ObjectNode) Keys() []string {
	keys := make([]string, 0, len(n.fields))
	for key := range n.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of fields in the object.
func (n *ObjectNode) Len() int {
	return len(n.fields)
}
