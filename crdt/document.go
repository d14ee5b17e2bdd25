package crdt

import (
	"collabdoc/common"
)

// Doc is a JSON CRDT document: a root node plus an index of every node by
// stamp and a per-actor logical clock. A Doc is owned by exactly one
// document handle; all mutation flows through patch application.
type Doc struct {
	root  *RootNode
	index map[common.Stamp]Node
	clock map[common.ActorID]uint64
	actor common.ActorID

	// counter is the Lamport time: the highest sequence number witnessed
	// from any actor. Local stamps are drawn past it, so a write issued
	// after observing another always carries the greater stamp.
	counter uint64
}

// NewDoc creates an empty document owned by the given actor. The root object
// container exists from creation under a fixed stamp, so replicas that
// bootstrap independently address the same top-level container.
func NewDoc(actor common.ActorID) *Doc {
	doc := &Doc{
		index: make(map[common.Stamp]Node),
		clock: make(map[common.ActorID]uint64),
		actor: actor,
	}

	root := NewRootNode(common.RootStamp)
	doc.root = root
	doc.index[common.RootStamp] = root

	rootObj := NewObjectNode(common.RootObjectStamp)
	doc.Register(rootObj)
	root.Set(common.RootStamp, rootObj)
	return doc
}

// Actor returns the local actor identity of the document.
func (d *Doc) Actor() common.ActorID {
	return d.actor
}

// Root returns the root node of the document.
func (d *Doc) Root() *RootNode {
	return d.root
}

// Node returns the node with the given stamp.
func (d *Doc) Node(stamp common.Stamp) (Node, error) {
	if stamp.Compare(common.RootStamp) == 0 {
		return d.root, nil
	}
	node, ok := d.index[stamp]
	if !ok {
		return nil, common.ErrNodeNotFound{Stamp: stamp}
	}
	return node, nil
}

// Register adds a node to the index and advances the clock for its actor.
func (d *Doc) Register(node Node) {
	stamp := node.Stamp()
	d.index[stamp] = node
	d.Witness(stamp)
}

// Witness advances the clock for the stamp's actor and the Lamport counter
// if the stamp is ahead. Multi-rune text inserts consume a span of sequence
// numbers, so callers that know the span use WitnessSpan instead.
func (d *Doc) Witness(stamp common.Stamp) {
	if current, ok := d.clock[stamp.Actor]; !ok || stamp.Seq > current {
		d.clock[stamp.Actor] = stamp.Seq
	}
	if stamp.Seq > d.counter {
		d.counter = stamp.Seq
	}
}

// WitnessSpan advances the clock past a stamp that covers span sequence steps.
func (d *Doc) WitnessSpan(stamp common.Stamp, span uint64) {
	if span == 0 {
		span = 1
	}
	last := stamp.Seq + span - 1
	if current, ok := d.clock[stamp.Actor]; !ok || last > current {
		d.clock[stamp.Actor] = last
	}
	if last > d.counter {
		d.counter = last
	}
}

// NextStamp returns the next stamp for the local actor and advances the
// clock. The stamp exceeds every witnessed stamp, so causally-later local
// writes always win the stamp comparison.
func (d *Doc) NextStamp() common.Stamp {
	d.counter++
	d.clock[d.actor] = d.counter
	return common.Stamp{Actor: d.actor, Seq: d.counter}
}

// Seq returns the highest sequence number witnessed for the given actor.
func (d *Doc) Seq(actor common.ActorID) uint64 {
	return d.clock[actor]
}

// Alias redirects a stamp to another node. Used when two containers
// materialized independently at the same path join: operations addressed to
// the losing container's stamp land in the survivor.
func (d *Doc) Alias(from common.Stamp, to Node) {
	d.index[from] = to
}

// View returns the plain JSON view of the document.
func (d *Doc) View() interface{} {
	if d.root == nil {
		return nil
	}
	return d.root.Value()
}
