package modeldb

import (
	"reflect"
	"sort"
	"sync"

	"collabdoc/common"
	"collabdoc/crdt"
)

// Map is an observable collaborative map from string keys to JSON values.
// Concurrent writes to the same key resolve by last-writer-wins. Nil values
// are rejected; use Delete to remove a key.
type Map struct {
	primitive
	cbMu      sync.Mutex
	callbacks []func(MapChange)
}

func newMap(db *ModelDB, path Path) *Map {
	mp := &Map{}
	mp.handle = db.handle
	mp.db = db
	mp.path = path.Clone()
	return mp
}

func (mp *Map) init() {
	_ = mp.handle.ApplyLocal("init map "+mp.path.String(), func(m *Mutation) error {
		_, err := ensureShape(m.Builder(), mp.Path(), common.NodeKindObj)
		return err
	})
}

// Get returns the value for key, or nil when absent.
func (mp *Map) Get(key string) interface{} {
	if mp.Disposed() {
		return nil
	}
	var out interface{}
	mp.handle.read(func(doc *crdt.Doc) {
		if obj, ok := resolveNode(doc, mp.Path()).(*crdt.ObjectNode); ok {
			if node := obj.Get(key); node != nil {
				out = node.Value()
			}
		}
	})
	return out
}

// Has reports whether key is present.
func (mp *Map) Has(key string) bool {
	if mp.Disposed() {
		return false
	}
	var out bool
	mp.handle.read(func(doc *crdt.Doc) {
		if obj, ok := resolveNode(doc, mp.Path()).(*crdt.ObjectNode); ok {
			out = obj.Has(key)
		}
	})
	return out
}

// Keys returns the present keys in sorted order.
func (mp *Map) Keys() []string {
	if mp.Disposed() {
		return nil
	}
	var out []string
	mp.handle.read(func(doc *crdt.Doc) {
		if obj, ok := resolveNode(doc, mp.Path()).(*crdt.ObjectNode); ok {
			out = obj.Keys()
		}
	})
	return out
}

// Len returns the number of present keys.
func (mp *Map) Len() int {
	if mp.Disposed() {
		return 0
	}
	var out int
	mp.handle.read(func(doc *crdt.Doc) {
		if obj, ok := resolveNode(doc, mp.Path()).(*crdt.ObjectNode); ok {
			out = obj.Len()
		}
	})
	return out
}

// ToMap returns a plain copy of the current entries.
func (mp *Map) ToMap() map[string]interface{} {
	if mp.Disposed() {
		return nil
	}
	var out map[string]interface{}
	mp.handle.read(func(doc *crdt.Doc) {
		if obj, ok := resolveNode(doc, mp.Path()).(*crdt.ObjectNode); ok {
			out = mapValues(obj)
		}
	})
	return out
}

// Set assigns value to key. A nil value is rejected; assigning an equal
// value to an existing key is a no-op.
func (mp *Map) Set(key string, value interface{}) error {
	if value == nil {
		return common.ErrInvalidArgument{Message: "map value cannot be nil"}
	}
	if mp.Disposed() {
		return nil
	}
	return mp.handle.ApplyLocal("set key "+mp.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), mp.Path(), common.NodeKindObj)
		if err != nil {
			return err
		}
		obj := node.(*crdt.ObjectNode)

		existed := obj.Has(key)
		var old interface{}
		if cur := obj.Get(key); cur != nil {
			old = cur.Value()
		}
		if existed && reflect.DeepEqual(old, value) {
			return nil
		}
		if err := m.Builder().SetKey(obj.Stamp(), key, value); err != nil {
			return err
		}

		kind := MapAdd
		if existed {
			kind = MapUpdate
		}
		ev := MapChange{Origin: OriginLocal, Kind: kind, Key: key, Old: old, New: value}
		m.emit(func() { mp.notify(ev) })
		return nil
	})
}

// Delete removes key. Deleting an absent key is a no-op.
func (mp *Map) Delete(key string) error {
	if mp.Disposed() {
		return nil
	}
	return mp.handle.ApplyLocal("delete key "+mp.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), mp.Path(), common.NodeKindObj)
		if err != nil {
			return err
		}
		obj := node.(*crdt.ObjectNode)
		if !obj.Has(key) {
			return nil
		}
		old := obj.Get(key).Value()
		if err := m.Builder().DeleteKey(obj.Stamp(), key); err != nil {
			return err
		}

		ev := MapChange{Origin: OriginLocal, Kind: MapRemove, Key: key, Old: old}
		m.emit(func() { mp.notify(ev) })
		return nil
	})
}

// Clear removes every key, emitting one remove event per key.
func (mp *Map) Clear() error {
	if mp.Disposed() {
		return nil
	}
	return mp.handle.ApplyLocal("clear map "+mp.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), mp.Path(), common.NodeKindObj)
		if err != nil {
			return err
		}
		obj := node.(*crdt.ObjectNode)
		for _, key := range obj.Keys() {
			old := obj.Get(key).Value()
			if err := m.Builder().DeleteKey(obj.Stamp(), key); err != nil {
				return err
			}
			ev := MapChange{Origin: OriginLocal, Kind: MapRemove, Key: key, Old: old}
			m.emit(func() { mp.notify(ev) })
		}
		return nil
	})
}

// OnChange registers a callback invoked for every change, local and remote.
func (mp *Map) OnChange(cb func(MapChange)) {
	mp.cbMu.Lock()
	mp.callbacks = append(mp.callbacks, cb)
	mp.cbMu.Unlock()
}

// Dispose detaches the map and best-effort clears its region.
func (mp *Map) Dispose() {
	path := mp.Path()
	if !mp.dispose(mp) {
		return
	}
	mp.cbMu.Lock()
	mp.callbacks = nil
	mp.cbMu.Unlock()
	mp.clearRegion(path)
}

func (mp *Map) notify(ev MapChange) {
	mp.cbMu.Lock()
	cbs := make([]func(MapChange), len(mp.callbacks))
	copy(cbs, mp.callbacks)
	mp.cbMu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

// capture runs under the document lock held by the handle.
func (mp *Map) capture() (interface{}, bool) {
	if mp.Disposed() {
		return nil, false
	}
	doc := mp.handle.doc
	if obj, ok := resolveNode(doc, mp.Path()).(*crdt.ObjectNode); ok {
		return mapValues(obj), true
	}
	return map[string]interface{}{}, true
}

// applyRemote diffs the before and after snapshots per key, in sorted key
// order for deterministic delivery.
func (mp *Map) applyRemote(before, after interface{}) {
	old, _ := before.(map[string]interface{})
	cur, _ := after.(map[string]interface{})

	keys := make(map[string]struct{}, len(old)+len(cur))
	for k := range old {
		keys[k] = struct{}{}
	}
	for k := range cur {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		oldVal, hadOld := old[k]
		newVal, hasNew := cur[k]
		switch {
		case !hadOld && hasNew:
			mp.notify(MapChange{Origin: OriginRemote, Kind: MapAdd, Key: k, New: newVal})
		case hadOld && !hasNew:
			mp.notify(MapChange{Origin: OriginRemote, Kind: MapRemove, Key: k, Old: oldVal})
		case hadOld && hasNew && !reflect.DeepEqual(oldVal, newVal):
			mp.notify(MapChange{Origin: OriginRemote, Kind: MapUpdate, Key: k, Old: oldVal, New: newVal})
		}
	}
}

func mapValues(obj *crdt.ObjectNode) map[string]interface{} {
	out := make(map[string]interface{}, obj.Len())
	for _, key := range obj.Keys() {
		if node := obj.Get(key); node != nil {
			out[key] = node.Value()
		}
	}
	return out
}
