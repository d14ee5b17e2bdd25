package crdtpatch

import (
	"encoding/json"

	"collabdoc/common"
	"collabdoc/crdt"
)

// Op is a single atomic document mutation. Ops are order-sensitive within a
// patch and must be applied in the order they were produced.
type Op interface {
	// Kind returns the kind of the operation.
	Kind() common.OpKind

	// OpStamp returns the stamp assigned to the operation.
	OpStamp() common.Stamp

	// Apply applies the operation to the document.
	Apply(doc *crdt.Doc) error
}

// NewOp creates a new node of the given kind. Literal nodes carry their value.
type NewOp struct {
	ID       common.Stamp    `json:"id"`
	NodeKind common.NodeKind `json:"kind"`
	Value    interface{}     `json:"value,omitempty"`
}

// Kind returns the kind of the operation.
func (op *NewOp) Kind() common.OpKind { return common.OpKindNew }

// OpStamp returns the stamp assigned to the operation.
func (op *NewOp) OpStamp() common.Stamp { return op.ID }

// Apply applies the operation to the document.
func (op *NewOp) Apply(doc *crdt.Doc) error {
	var node crdt.Node
	if op.NodeKind == common.NodeKindCon {
		node = crdt.NewLiteralNode(op.ID, op.Value)
	} else {
		created, err := crdt.NewNodeOfKind(op.NodeKind, op.ID)
		if err != nil {
			return err
		}
		node = created
	}
	doc.Register(node)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (op *NewOp) MarshalJSON() ([]byte, error) {
	type alias NewOp
	return json.Marshal(struct {
		Op string `json:"op"`
		*alias
	}{Op: string(common.OpKindNew), alias: (*alias)(op)})
}

// InsOp writes into an existing node. Exactly one of Value and Node is set:
// Value carries a literal scalar, Node references a node created earlier in
// the same patch. Key addresses object fields; Ref is the insert-after stamp
// for text and list targets.
type InsOp struct {
	ID     common.Stamp  `json:"id"`
	Target common.Stamp  `json:"target"`
	Key    string        `json:"key,omitempty"`
	Ref    *common.Stamp `json:"ref,omitempty"`
	Node   *common.Stamp `json:"node,omitempty"`
	Value  interface{}   `json:"value,omitempty"`

	// applied records whether the last Apply changed the document. A remote
	// write losing last-write-wins is a normal merge outcome; a local write
	// losing is a fault the builder surfaces.
	applied bool
}

// Applied reports whether the last Apply changed the document.
func (op *InsOp) Applied() bool { return op.applied }

// Kind returns the kind of the operation.
func (op *InsOp) Kind() common.OpKind { return common.OpKindIns }

// OpStamp returns the stamp assigned to the operation.
func (op *InsOp) OpStamp() common.Stamp { return op.ID }

// payload resolves the written value to a node, materializing a literal when
// the op carries a scalar.
func (op *InsOp) payload(doc *crdt.Doc) (crdt.Node, error) {
	if op.Node != nil {
		return doc.Node(*op.Node)
	}
	node := crdt.NewLiteralNode(op.ID, op.Value)
	doc.Register(node)
	return node, nil
}

// Apply applies the operation to the document.
func (op *InsOp) Apply(doc *crdt.Doc) error {
	target, err := doc.Node(op.Target)
	if err != nil {
		return err
	}

	switch node := target.(type) {
	case *crdt.RootNode:
		value, err := op.payload(doc)
		if err != nil {
			return err
		}
		op.applied = crdt.MergeRoot(doc, node, op.ID, value)

	case *crdt.ValueNode:
		value, err := op.payload(doc)
		if err != nil {
			return err
		}
		op.applied = node.Set(op.ID, value)

	case *crdt.ObjectNode:
		if op.Key == "" {
			return common.ErrInvalidArgument{Message: "object insert requires a key"}
		}
		value, err := op.payload(doc)
		if err != nil {
			return err
		}
		op.applied = crdt.MergeKey(doc, node, op.Key, op.ID, value)

	case *crdt.TextNode:
		text, ok := op.Value.(string)
		if !ok {
			return common.ErrInvalidArgument{Message: "text insert requires a string value"}
		}
		after := common.RootStamp
		if op.Ref != nil {
			after = *op.Ref
		}
		op.applied = node.Insert(after, op.ID, text)
		doc.WitnessSpan(op.ID, uint64(len([]rune(text))))

	case *crdt.ListNode:
		value, err := op.payload(doc)
		if err != nil {
			return err
		}
		after := common.RootStamp
		if op.Ref != nil {
			after = *op.Ref
		}
		op.applied = node.Insert(after, op.ID, value)

	default:
		return common.ErrInvalidArgument{Message: "unsupported target for ins operation"}
	}

	doc.Witness(op.ID)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (op *InsOp) MarshalJSON() ([]byte, error) {
	type alias InsOp
	return json.Marshal(struct {
		Op string `json:"op"`
		*alias
	}{Op: string(common.OpKindIns), alias: (*alias)(op)})
}

// DelOp deletes contents from an existing node. Key deletes an object field;
// Elem deletes a single list element; Start/End delete a text or list range.
type DelOp struct {
	ID     common.Stamp  `json:"id"`
	Target common.Stamp  `json:"target"`
	Key    string        `json:"key,omitempty"`
	Elem   *common.Stamp `json:"elem,omitempty"`
	Start  *common.Stamp `json:"start,omitempty"`
	End    *common.Stamp `json:"end,omitempty"`
}

// Kind returns the kind of the operation.
func (op *DelOp) Kind() common.OpKind { return common.OpKindDel }

// OpStamp returns the stamp assigned to the operation.
func (op *DelOp) OpStamp() common.Stamp { return op.ID }

// Apply applies the operation to the document.
func (op *DelOp) Apply(doc *crdt.Doc) error {
	target, err := doc.Node(op.Target)
	if err != nil {
		return err
	}

	switch node := target.(type) {
	case *crdt.ObjectNode:
		if op.Key == "" {
			return common.ErrInvalidArgument{Message: "object delete requires a key"}
		}
		node.Delete(op.Key, op.ID)

	case *crdt.TextNode:
		if op.Start == nil || op.End == nil {
			return common.ErrInvalidArgument{Message: "text delete requires a range"}
		}
		node.Delete(*op.Start, *op.End)

	case *crdt.ListNode:
		switch {
		case op.Elem != nil:
			node.Delete(*op.Elem)
		case op.Start != nil && op.End != nil:
			node.DeleteRange(*op.Start, *op.End)
		default:
			return common.ErrInvalidArgument{Message: "list delete requires an element or range"}
		}

	default:
		return common.ErrInvalidArgument{Message: "unsupported target for del operation"}
	}

	doc.Witness(op.ID)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (op *DelOp) MarshalJSON() ([]byte, error) {
	type alias DelOp
	return json.Marshal(struct {
		Op string `json:"op"`
		*alias
	}{Op: string(common.OpKindDel), alias: (*alias)(op)})
}

// NopOp consumes a span of sequence numbers without touching the document.
type NopOp struct {
	ID   common.Stamp `json:"id"`
	Span uint64       `json:"span,omitempty"`
}

// Kind returns the kind of the operation.
func (op *NopOp) Kind() common.OpKind { return common.OpKindNop }

// OpStamp returns the stamp assigned to the operation.
func (op *NopOp) OpStamp() common.Stamp { return op.ID }

// Apply applies the operation to the document.
func (op *NopOp) Apply(doc *crdt.Doc) error {
	doc.WitnessSpan(op.ID, op.Span)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (op *NopOp) MarshalJSON() ([]byte, error) {
	type alias NopOp
	return json.Marshal(struct {
		Op string `json:"op"`
		*alias
	}{Op: string(common.OpKindNop), alias: (*alias)(op)})
}

// MakeOp creates an empty operation of the given kind for decoding.
func MakeOp(kind common.OpKind) Op {
	switch kind {
	case common.OpKindNew:
		return &NewOp{}
	case common.OpKindIns:
		return &InsOp{}
	case common.OpKindDel:
		return &DelOp{}
	case common.OpKindNop:
		return &NopOp{}
	default:
		return nil
	}
}
