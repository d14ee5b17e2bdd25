package crdtpatch

import (
	"github.com/pkg/errors"

	"collabdoc/common"
	"collabdoc/crdt"
)

// Builder assembles the operations of one local mutation. Each helper applies
// its operation to the document immediately, so later steps of the same
// mutation observe earlier ones, and records it for the outgoing patch.
type Builder struct {
	doc     *crdt.Doc
	pending []Op
}

// NewBuilder creates a builder for the given document.
func NewBuilder(doc *crdt.Doc) *Builder {
	return &Builder{doc: doc}
}

// Doc returns the document the builder mutates.
func (b *Builder) Doc() *crdt.Doc {
	return b.doc
}

// Add applies an operation to the document and records it. The operation is
// not recorded if it fails to apply, and a write the document rejected is an
// error here: local stamps exceed every witnessed stamp, so a rejected local
// write must not be shipped or announced.
func (b *Builder) Add(op Op) error {
	if err := op.Apply(b.doc); err != nil {
		return errors.Wrapf(err, "failed to apply %s operation", op.Kind())
	}
	if ins, ok := op.(*InsOp); ok && !ins.Applied() {
		return errors.Wrapf(common.ErrStaleWrite, "ins operation %v", ins.ID)
	}
	b.pending = append(b.pending, op)
	return nil
}

// NewObject creates an empty object node and returns its stamp.
func (b *Builder) NewObject() (common.Stamp, error) {
	return b.newNode(common.NodeKindObj, nil)
}

// NewList creates an empty list node and returns its stamp.
func (b *Builder) NewList() (common.Stamp, error) {
	return b.newNode(common.NodeKindArr, nil)
}

// NewText creates an empty text node and returns its stamp.
func (b *Builder) NewText() (common.Stamp, error) {
	return b.newNode(common.NodeKindStr, nil)
}

// NewValue creates an empty LWW register node and returns its stamp.
func (b *Builder) NewValue() (common.Stamp, error) {
	return b.newNode(common.NodeKindVal, nil)
}

// NewLiteral creates a literal node carrying value and returns its stamp.
func (b *Builder) NewLiteral(value interface{}) (common.Stamp, error) {
	return b.newNode(common.NodeKindCon, value)
}

func (b *Builder) newNode(kind common.NodeKind, value interface{}) (common.Stamp, error) {
	op := &NewOp{ID: b.doc.NextStamp(), NodeKind: kind, Value: value}
	if err := b.Add(op); err != nil {
		return common.NilStamp, err
	}
	return op.ID, nil
}

// SetRootNode points the document root at a previously created node.
func (b *Builder) SetRootNode(node common.Stamp) error {
	return b.Add(&InsOp{ID: b.doc.NextStamp(), Target: common.RootStamp, Node: &node})
}

// SetRegister writes a scalar into a LWW register.
func (b *Builder) SetRegister(target common.Stamp, value interface{}) error {
	return b.Add(&InsOp{ID: b.doc.NextStamp(), Target: target, Value: value})
}

// SetRegisterNode writes a previously created node into a LWW register.
func (b *Builder) SetRegisterNode(target, node common.Stamp) error {
	return b.Add(&InsOp{ID: b.doc.NextStamp(), Target: target, Node: &node})
}

// SetKey writes a scalar into an object field.
func (b *Builder) SetKey(target common.Stamp, key string, value interface{}) error {
	return b.Add(&InsOp{ID: b.doc.NextStamp(), Target: target, Key: key, Value: value})
}

// SetKeyNode writes a previously created node into an object field.
func (b *Builder) SetKeyNode(target common.Stamp, key string, node common.Stamp) error {
	return b.Add(&InsOp{ID: b.doc.NextStamp(), Target: target, Key: key, Node: &node})
}

// DeleteKey removes an object field.
func (b *Builder) DeleteKey(target common.Stamp, key string) error {
	return b.Add(&DelOp{ID: b.doc.NextStamp(), Target: target, Key: key})
}

// InsertText inserts text after the rune identified by after.
// The operation consumes one sequence number per rune.
func (b *Builder) InsertText(target, after common.Stamp, text string) error {
	stamp := b.doc.NextStamp()
	span := uint64(len([]rune(text)))
	if span > 1 {
		b.doc.WitnessSpan(stamp, span)
	}
	ref := after
	return b.Add(&InsOp{ID: stamp, Target: target, Ref: &ref, Value: text})
}

// DeleteText removes the runes between start and end inclusive.
func (b *Builder) DeleteText(target, start, end common.Stamp) error {
	return b.Add(&DelOp{ID: b.doc.NextStamp(), Target: target, Start: &start, End: &end})
}

// InsertElem inserts a previously created node after the element identified
// by after.
func (b *Builder) InsertElem(target, after, node common.Stamp) error {
	ref := after
	return b.Add(&InsOp{ID: b.doc.NextStamp(), Target: target, Ref: &ref, Node: &node})
}

// DeleteElem removes a single list element.
func (b *Builder) DeleteElem(target, elem common.Stamp) error {
	e := elem
	return b.Add(&DelOp{ID: b.doc.NextStamp(), Target: target, Elem: &e})
}

// DeleteElemRange removes the list elements between start and end inclusive.
func (b *Builder) DeleteElemRange(target, start, end common.Stamp) error {
	s, e := start, end
	return b.Add(&DelOp{ID: b.doc.NextStamp(), Target: target, Start: &s, End: &e})
}

// Pending reports whether the builder holds unflushed operations.
func (b *Builder) Pending() bool {
	return len(b.pending) > 0
}

// Flush returns the pending operations as a patch and resets the builder.
// It returns nil when no operations are pending.
func (b *Builder) Flush() *Patch {
	if len(b.pending) == 0 {
		return nil
	}

	patch := NewPatch(b.pending[0].OpStamp())
	for _, op := range b.pending {
		patch.Add(op)
	}
	b.pending = nil
	return patch
}
