package crdtpatch

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"collabdoc/common"
	"collabdoc/crdt"
)

// Patch is an order-sensitive sequence of operations produced by one local
// mutation. Encoded patches are the unit a remote replica consumes verbatim.
type Patch struct {
	id   common.Stamp
	meta map[string]interface{}
	ops  []Op
}

// NewPatch creates an empty patch with the given id.
func NewPatch(id common.Stamp) *Patch {
	return &Patch{id: id}
}

// ID returns the id of the patch.
func (p *Patch) ID() common.Stamp {
	return p.id
}

// Meta returns the optional metadata of the patch, creating it on first use.
func (p *Patch) Meta() map[string]interface{} {
	if p.meta == nil {
		p.meta = make(map[string]interface{})
	}
	return p.meta
}

// Ops returns the operations in the patch.
func (p *Patch) Ops() []Op {
	return p.ops
}

// Add appends an operation to the patch.
func (p *Patch) Add(op Op) {
	p.ops = append(p.ops, op)
}

// Apply applies every operation in order to the document.
func (p *Patch) Apply(doc *crdt.Doc) error {
	for _, op := range p.ops {
		if err := op.Apply(doc); err != nil {
			return errors.Wrap(err, "failed to apply operation")
		}
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (p *Patch) MarshalJSON() ([]byte, error) {
	type wirePatch struct {
		ID   common.Stamp           `json:"id"`
		Meta map[string]interface{} `json:"meta,omitempty"`
		Ops  []json.RawMessage      `json:"ops"`
	}

	ops := make([]json.RawMessage, len(p.ops))
	for i, op := range p.ops {
		opJSON, err := json.Marshal(op)
		if err != nil {
			return nil, err
		}
		ops[i] = opJSON
	}

	return json.Marshal(wirePatch{ID: p.id, Meta: p.meta, Ops: ops})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID   common.Stamp           `json:"id"`
		Meta map[string]interface{} `json:"meta,omitempty"`
		Ops  []json.RawMessage      `json:"ops"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	p.id = wire.ID
	p.meta = wire.Meta
	p.ops = make([]Op, len(wire.Ops))

	for i, opJSON := range wire.Ops {
		var head struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(opJSON, &head); err != nil {
			return err
		}

		op := MakeOp(common.OpKind(head.Op))
		if op == nil {
			return common.ErrInvalidOpKind{Kind: head.Op}
		}
		if err := json.Unmarshal(opJSON, op); err != nil {
			return err
		}
		p.ops[i] = op
	}

	return nil
}

// Encode returns the wire form of the patch.
func (p *Patch) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode patch")
	}
	return data, nil
}

// DecodePatch parses a single encoded patch.
func DecodePatch(data []byte) (*Patch, error) {
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, common.ErrCorruptBatch{Reason: "undecodable patch", Cause: err}
	}
	return &p, nil
}

// frameSep joins patches inside a combined frame. Patches are JSON objects,
// so a bare newline can never appear inside one.
const frameSep = '\n'

// EncodeFrame combines patches into a single wire frame, preserving order.
func EncodeFrame(patches []*Patch) ([]byte, error) {
	parts := make([][]byte, len(patches))
	for i, p := range patches {
		data, err := p.Encode()
		if err != nil {
			return nil, err
		}
		parts[i] = data
	}
	return bytes.Join(parts, []byte{frameSep}), nil
}

// DecodeFrame splits a wire frame back into patches in production order.
// An empty frame decodes to no patches; it is the relay's bootstrap signal.
func DecodeFrame(frame []byte) ([]*Patch, error) {
	if len(bytes.TrimSpace(frame)) == 0 {
		return nil, nil
	}

	var patches []*Patch
	for _, part := range bytes.Split(frame, []byte{frameSep}) {
		if len(bytes.TrimSpace(part)) == 0 {
			continue
		}
		p, err := DecodePatch(part)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, nil
}
