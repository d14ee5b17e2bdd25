package modeldb

import (
	"reflect"
	"sync"

	"collabdoc/common"
	"collabdoc/crdt"
)

// List is an observable collaborative sequence of JSON values. Elements are
// opaque literals; moving an element re-creates it at the destination, so a
// concurrent edit inside a moved element can be lost. Single-element
// inserts only; bulk insertion is not supported.
type List struct {
	primitive
	cbMu      sync.Mutex
	callbacks []func(ListChange)
}

func newList(db *ModelDB, path Path) *List {
	l := &List{}
	l.handle = db.handle
	l.db = db
	l.path = path.Clone()
	return l
}

func (l *List) init() {
	_ = l.handle.ApplyLocal("init list "+l.path.String(), func(m *Mutation) error {
		_, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
		return err
	})
}

// Len returns the number of visible elements.
func (l *List) Len() int {
	if l.Disposed() {
		return 0
	}
	var out int
	l.handle.read(func(doc *crdt.Doc) {
		if ln, ok := resolveNode(doc, l.Path()).(*crdt.ListNode); ok {
			out = ln.Len()
		}
	})
	return out
}

// Get returns the element at index.
func (l *List) Get(index int) (interface{}, error) {
	if l.Disposed() {
		return nil, common.ErrInvalidArgument{Message: "list is disposed"}
	}
	var out interface{}
	var err error
	l.handle.read(func(doc *crdt.Doc) {
		ln, ok := resolveNode(doc, l.Path()).(*crdt.ListNode)
		if !ok {
			err = common.ErrInvalidArgument{Message: "list index out of range"}
			return
		}
		var node crdt.Node
		node, err = ln.NodeAt(index)
		if err == nil {
			out = node.Value()
		}
	})
	return out, err
}

// Values returns a copy of the visible elements.
func (l *List) Values() []interface{} {
	if l.Disposed() {
		return nil
	}
	var out []interface{}
	l.handle.read(func(doc *crdt.Doc) {
		if ln, ok := resolveNode(doc, l.Path()).(*crdt.ListNode); ok {
			out = listValues(ln)
		}
	})
	return out
}

// Insert places value before the element at index. index may equal Len to
// append.
func (l *List) Insert(index int, value interface{}) error {
	if l.Disposed() {
		return nil
	}
	return l.handle.ApplyLocal("insert elem "+l.path.String(), func(m *Mutation) error {
		return l.insertLocked(m, index, value)
	})
}

// Push appends a single value.
func (l *List) Push(value interface{}) error {
	if l.Disposed() {
		return nil
	}
	return l.handle.ApplyLocal("push elem "+l.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
		if err != nil {
			return err
		}
		return l.insertLocked(m, node.(*crdt.ListNode).Len(), value)
	})
}

// PushAll is unsupported; callers append one element at a time.
func (l *List) PushAll(values []interface{}) error {
	return common.ErrBulkInsertUnsupported
}

// InsertAll is unsupported; callers insert one element at a time.
func (l *List) InsertAll(index int, values []interface{}) error {
	return common.ErrBulkInsertUnsupported
}

func (l *List) insertLocked(m *Mutation, index int, value interface{}) error {
	node, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
	if err != nil {
		return err
	}
	ln := node.(*crdt.ListNode)
	if index < 0 || index > ln.Len() {
		return common.ErrInvalidArgument{Message: "list insert index out of range"}
	}
	after, err := ln.StampBefore(index)
	if err != nil {
		return err
	}
	elem, err := m.Builder().NewLiteral(value)
	if err != nil {
		return err
	}
	if err := m.Builder().InsertElem(ln.Stamp(), after, elem); err != nil {
		return err
	}

	ev := ListChange{
		Origin:    OriginLocal,
		Kind:      ListAdd,
		OldIndex:  -1,
		NewIndex:  index,
		NewValues: []interface{}{value},
	}
	m.emit(func() { l.notify(ev) })
	return nil
}

// Set replaces the element at index in place.
func (l *List) Set(index int, value interface{}) error {
	if l.Disposed() {
		return nil
	}
	return l.handle.ApplyLocal("set elem "+l.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
		if err != nil {
			return err
		}
		ln := node.(*crdt.ListNode)
		if index < 0 || index >= ln.Len() {
			return common.ErrInvalidArgument{Message: "list set index out of range"}
		}
		cur, err := ln.NodeAt(index)
		if err != nil {
			return err
		}
		old := cur.Value()
		if reflect.DeepEqual(old, value) {
			return nil
		}

		stamp, err := ln.StampAt(index)
		if err != nil {
			return err
		}
		after, err := ln.StampBefore(index)
		if err != nil {
			return err
		}
		if err := m.Builder().DeleteElem(ln.Stamp(), stamp); err != nil {
			return err
		}
		elem, err := m.Builder().NewLiteral(value)
		if err != nil {
			return err
		}
		if err := m.Builder().InsertElem(ln.Stamp(), after, elem); err != nil {
			return err
		}

		ev := ListChange{
			Origin:    OriginLocal,
			Kind:      ListSet,
			OldIndex:  index,
			NewIndex:  index,
			OldValues: []interface{}{old},
			NewValues: []interface{}{value},
		}
		m.emit(func() { l.notify(ev) })
		return nil
	})
}

// Remove deletes the element at index.
func (l *List) Remove(index int) error {
	if l.Disposed() {
		return nil
	}
	return l.handle.ApplyLocal("remove elem "+l.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
		if err != nil {
			return err
		}
		ln := node.(*crdt.ListNode)
		if index < 0 || index >= ln.Len() {
			return common.ErrInvalidArgument{Message: "list remove index out of range"}
		}
		cur, err := ln.NodeAt(index)
		if err != nil {
			return err
		}
		old := cur.Value()
		stamp, err := ln.StampAt(index)
		if err != nil {
			return err
		}
		if err := m.Builder().DeleteElem(ln.Stamp(), stamp); err != nil {
			return err
		}

		ev := ListChange{
			Origin:    OriginLocal,
			Kind:      ListRemove,
			OldIndex:  index,
			NewIndex:  -1,
			OldValues: []interface{}{old},
		}
		m.emit(func() { l.notify(ev) })
		return nil
	})
}

// RemoveValue deletes the first element equal to value. Removing an absent
// value is a no-op.
func (l *List) RemoveValue(value interface{}) error {
	if l.Disposed() {
		return nil
	}
	return l.handle.ApplyLocal("remove value "+l.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
		if err != nil {
			return err
		}
		ln := node.(*crdt.ListNode)
		for i := 0; i < ln.Len(); i++ {
			cur, err := ln.NodeAt(i)
			if err != nil {
				return err
			}
			if !reflect.DeepEqual(cur.Value(), value) {
				continue
			}
			stamp, err := ln.StampAt(i)
			if err != nil {
				return err
			}
			if err := m.Builder().DeleteElem(ln.Stamp(), stamp); err != nil {
				return err
			}
			ev := ListChange{
				Origin:    OriginLocal,
				Kind:      ListRemove,
				OldIndex:  i,
				NewIndex:  -1,
				OldValues: []interface{}{cur.Value()},
			}
			m.emit(func() { l.notify(ev) })
			return nil
		}
		return nil
	})
}

// RemoveRange deletes the elements in [from, to).
func (l *List) RemoveRange(from, to int) error {
	if l.Disposed() {
		return nil
	}
	return l.handle.ApplyLocal("remove range "+l.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
		if err != nil {
			return err
		}
		ln := node.(*crdt.ListNode)
		if from < 0 || to > ln.Len() || from > to {
			return common.ErrInvalidArgument{Message: "list remove range out of range"}
		}
		if from == to {
			return nil
		}

		removed := make([]interface{}, 0, to-from)
		for i := from; i < to; i++ {
			cur, err := ln.NodeAt(i)
			if err != nil {
				return err
			}
			removed = append(removed, cur.Value())
		}
		first, err := ln.StampAt(from)
		if err != nil {
			return err
		}
		last, err := ln.StampAt(to - 1)
		if err != nil {
			return err
		}
		if err := m.Builder().DeleteElemRange(ln.Stamp(), first, last); err != nil {
			return err
		}

		ev := ListChange{
			Origin:    OriginLocal,
			Kind:      ListRemove,
			OldIndex:  from,
			NewIndex:  -1,
			OldValues: removed,
		}
		m.emit(func() { l.notify(ev) })
		return nil
	})
}

// Clear deletes every element.
func (l *List) Clear() error {
	if l.Disposed() {
		return nil
	}
	return l.handle.ApplyLocal("clear list "+l.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
		if err != nil {
			return err
		}
		ln := node.(*crdt.ListNode)
		if ln.Len() == 0 {
			return nil
		}

		removed := listValues(ln)
		first, err := ln.StampAt(0)
		if err != nil {
			return err
		}
		last, err := ln.StampAt(ln.Len() - 1)
		if err != nil {
			return err
		}
		if err := m.Builder().DeleteElemRange(ln.Stamp(), first, last); err != nil {
			return err
		}

		ev := ListChange{
			Origin:    OriginLocal,
			Kind:      ListRemove,
			OldIndex:  0,
			NewIndex:  -1,
			OldValues: removed,
		}
		m.emit(func() { l.notify(ev) })
		return nil
	})
}

// Move relocates the element at from so it lands at index to. Moving within
// a list of fewer than two elements, or onto the same index, is a no-op.
// The element's value makes a plain-data round trip: the original element
// is deleted and a fresh one inserted at the destination.
func (l *List) Move(from, to int) error {
	if l.Disposed() {
		return nil
	}
	return l.handle.ApplyLocal("move elem "+l.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), l.Path(), common.NodeKindArr)
		if err != nil {
			return err
		}
		ln := node.(*crdt.ListNode)
		if ln.Len() <= 1 || from == to {
			return nil
		}
		if from < 0 || from >= ln.Len() || to < 0 || to >= ln.Len() {
			return common.ErrInvalidArgument{Message: "list move index out of range"}
		}

		cur, err := ln.NodeAt(from)
		if err != nil {
			return err
		}
		value := cur.Value()
		stamp, err := ln.StampAt(from)
		if err != nil {
			return err
		}
		if err := m.Builder().DeleteElem(ln.Stamp(), stamp); err != nil {
			return err
		}
		after, err := ln.StampBefore(to)
		if err != nil {
			return err
		}
		elem, err := m.Builder().NewLiteral(value)
		if err != nil {
			return err
		}
		if err := m.Builder().InsertElem(ln.Stamp(), after, elem); err != nil {
			return err
		}

		ev := ListChange{
			Origin:    OriginLocal,
			Kind:      ListMove,
			OldIndex:  from,
			NewIndex:  to,
			OldValues: []interface{}{value},
			NewValues: []interface{}{value},
		}
		m.emit(func() { l.notify(ev) })
		return nil
	})
}

// OnChange registers a callback invoked for every change, local and remote.
func (l *List) OnChange(cb func(ListChange)) {
	l.cbMu.Lock()
	l.callbacks = append(l.callbacks, cb)
	l.cbMu.Unlock()
}

// Dispose detaches the list and best-effort clears its region.
func (l *List) Dispose() {
	path := l.Path()
	if !l.dispose(l) {
		return
	}
	l.cbMu.Lock()
	l.callbacks = nil
	l.cbMu.Unlock()
	l.clearRegion(path)
}

func (l *List) notify(ev ListChange) {
	l.cbMu.Lock()
	cbs := make([]func(ListChange), len(l.callbacks))
	copy(cbs, l.callbacks)
	l.cbMu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

// capture runs under the document lock held by the handle.
func (l *List) capture() (interface{}, bool) {
	if l.Disposed() {
		return nil, false
	}
	doc := l.handle.doc
	if ln, ok := resolveNode(doc, l.Path()).(*crdt.ListNode); ok {
		return listValues(ln), true
	}
	return []interface{}{}, true
}

// applyRemote diffs the before and after snapshots into the most specific
// single event it can: add, remove, set or move. Anything wider is reported
// as one set event spanning the differing region.
func (l *List) applyRemote(before, after interface{}) {
	old, _ := before.([]interface{})
	cur, _ := after.([]interface{})
	if listEqual(old, cur) {
		return
	}

	i := 0
	for i < len(old) && i < len(cur) && reflect.DeepEqual(old[i], cur[i]) {
		i++
	}
	jo, jc := len(old), len(cur)
	for jo > i && jc > i && reflect.DeepEqual(old[jo-1], cur[jc-1]) {
		jo--
		jc--
	}

	switch {
	case jo == i:
		l.notify(ListChange{
			Origin:    OriginRemote,
			Kind:      ListAdd,
			OldIndex:  -1,
			NewIndex:  i,
			NewValues: append([]interface{}{}, cur[i:jc]...),
		})
	case jc == i:
		l.notify(ListChange{
			Origin:    OriginRemote,
			Kind:      ListRemove,
			OldIndex:  i,
			NewIndex:  -1,
			OldValues: append([]interface{}{}, old[i:jo]...),
		})
	case jo-i == jc-i && jo-i == 1:
		l.notify(ListChange{
			Origin:    OriginRemote,
			Kind:      ListSet,
			OldIndex:  i,
			NewIndex:  i,
			OldValues: []interface{}{old[i]},
			NewValues: []interface{}{cur[i]},
		})
	case len(old) == len(cur) && reflect.DeepEqual(old[i], cur[jc-1]) &&
		listEqual(old[i+1:jo], cur[i:jc-1]):
		l.notify(ListChange{
			Origin:    OriginRemote,
			Kind:      ListMove,
			OldIndex:  i,
			NewIndex:  jc - 1,
			OldValues: []interface{}{old[i]},
			NewValues: []interface{}{old[i]},
		})
	case len(old) == len(cur) && reflect.DeepEqual(old[jo-1], cur[i]) &&
		listEqual(old[i:jo-1], cur[i+1:jc]):
		l.notify(ListChange{
			Origin:    OriginRemote,
			Kind:      ListMove,
			OldIndex:  jo - 1,
			NewIndex:  i,
			OldValues: []interface{}{old[jo-1]},
			NewValues: []interface{}{old[jo-1]},
		})
	default:
		l.notify(ListChange{
			Origin:    OriginRemote,
			Kind:      ListSet,
			OldIndex:  i,
			NewIndex:  i,
			OldValues: append([]interface{}{}, old[i:jo]...),
			NewValues: append([]interface{}{}, cur[i:jc]...),
		})
	}
}

func listValues(ln *crdt.ListNode) []interface{} {
	out := make([]interface{}, 0, ln.Len())
	for i := 0; i < ln.Len(); i++ {
		node, err := ln.NodeAt(i)
		if err != nil {
			continue
		}
		out = append(out, node.Value())
	}
	return out
}

func listEqual(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
