package modeldb

import (
	"reflect"
	"sync"

	"collabdoc/common"
	"collabdoc/crdt"
)

// valueKey is the register slot inside a Value's backing object.
const valueKey = "value"

// Value is a single observable register holding one JSON value. It is
// backed by an object node with one reserved key, so concurrent writers
// resolve by last-writer-wins at the key.
type Value struct {
	primitive
	cbMu      sync.Mutex
	callbacks []func(ValueChange)
}

func newValue(db *ModelDB, path Path) *Value {
	v := &Value{}
	v.handle = db.handle
	v.db = db
	v.path = path.Clone()
	return v
}

// init lazily materializes the backing object. Re-running it against an
// already well-shaped region produces no operations.
func (v *Value) init() {
	_ = v.handle.ApplyLocal("init value "+v.path.String(), func(m *Mutation) error {
		_, err := ensureShape(m.Builder(), v.Path(), common.NodeKindObj)
		return err
	})
}

// Get returns the current value, or nil when unset.
func (v *Value) Get() interface{} {
	if v.Disposed() {
		return nil
	}
	var out interface{}
	v.handle.read(func(doc *crdt.Doc) {
		out = readValueAt(doc, v.Path())
	})
	return out
}

// Set assigns a new value. Setting an equal value is a no-op: no batch is
// produced and no event fires.
func (v *Value) Set(value interface{}) error {
	if v.Disposed() {
		return nil
	}
	return v.handle.ApplyLocal("set value "+v.path.String(), func(m *Mutation) error {
		path := v.Path()
		node, err := ensureShape(m.Builder(), path, common.NodeKindObj)
		if err != nil {
			return err
		}
		obj := node.(*crdt.ObjectNode)

		var old interface{}
		if cur := obj.Get(valueKey); cur != nil {
			old = cur.Value()
		}
		if obj.Has(valueKey) && reflect.DeepEqual(old, value) {
			return nil
		}
		if err := m.Builder().SetKey(obj.Stamp(), valueKey, value); err != nil {
			return err
		}

		ev := ValueChange{Origin: OriginLocal, Old: old, New: value}
		m.emit(func() { v.notify(ev) })
		return nil
	})
}

// OnChange registers a callback invoked for every change to this value,
// local and remote.
func (v *Value) OnChange(cb func(ValueChange)) {
	v.cbMu.Lock()
	v.callbacks = append(v.callbacks, cb)
	v.cbMu.Unlock()
}

// Dispose detaches the value and best-effort clears its region.
func (v *Value) Dispose() {
	path := v.Path()
	if !v.dispose(v) {
		return
	}
	v.cbMu.Lock()
	v.callbacks = nil
	v.cbMu.Unlock()
	v.clearRegion(path)
}

func (v *Value) notify(ev ValueChange) {
	v.cbMu.Lock()
	cbs := make([]func(ValueChange), len(v.callbacks))
	copy(cbs, v.callbacks)
	v.cbMu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

// capture runs under the document lock held by the handle.
func (v *Value) capture() (interface{}, bool) {
	if v.Disposed() {
		return nil, false
	}
	doc := v.handle.doc
	if _, ok := resolveNode(doc, v.Path()).(*crdt.ObjectNode); !ok {
		// The region does not exist yet; report a nil register so a remote
		// initialization still diffs cleanly.
		return nil, true
	}
	return readValueAt(doc, v.Path()), true
}

func (v *Value) applyRemote(before, after interface{}) {
	if reflect.DeepEqual(before, after) {
		return
	}
	v.notify(ValueChange{Origin: OriginRemote, Old: before, New: after})
}

func readValueAt(doc *crdt.Doc, path Path) interface{} {
	obj, ok := resolveNode(doc, path).(*crdt.ObjectNode)
	if !ok {
		return nil
	}
	cur := obj.Get(valueKey)
	if cur == nil {
		return nil
	}
	return cur.Value()
}
