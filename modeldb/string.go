package modeldb

import (
	"sync"

	"collabdoc/common"
	"collabdoc/crdt"
)

// Text is an observable collaborative string backed by a replicated
// sequence of runes. Concurrent inserts at the same position commute;
// indexes in events refer to the visible string at delivery time.
type Text struct {
	primitive
	cbMu      sync.Mutex
	callbacks []func(TextChange)
}

func newText(db *ModelDB, path Path) *Text {
	t := &Text{}
	t.handle = db.handle
	t.db = db
	t.path = path.Clone()
	return t
}

func (t *Text) init() {
	_ = t.handle.ApplyLocal("init text "+t.path.String(), func(m *Mutation) error {
		_, err := ensureShape(m.Builder(), t.Path(), common.NodeKindStr)
		return err
	})
}

// Text returns the current visible string.
func (t *Text) Text() string {
	if t.Disposed() {
		return ""
	}
	var out string
	t.handle.read(func(doc *crdt.Doc) {
		if tn, ok := resolveNode(doc, t.Path()).(*crdt.TextNode); ok {
			out = tn.String()
		}
	})
	return out
}

// Len returns the number of visible runes.
func (t *Text) Len() int {
	if t.Disposed() {
		return 0
	}
	var out int
	t.handle.read(func(doc *crdt.Doc) {
		if tn, ok := resolveNode(doc, t.Path()).(*crdt.TextNode); ok {
			out = tn.Len()
		}
	})
	return out
}

// Insert places text before the rune at index. index may equal Len to
// append.
func (t *Text) Insert(index int, text string) error {
	if t.Disposed() || text == "" {
		return nil
	}
	return t.handle.ApplyLocal("insert text "+t.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), t.Path(), common.NodeKindStr)
		if err != nil {
			return err
		}
		tn := node.(*crdt.TextNode)
		if index < 0 || index > tn.Len() {
			return common.ErrInvalidArgument{Message: "text insert index out of range"}
		}
		after, err := tn.StampBefore(index)
		if err != nil {
			return err
		}
		if err := m.Builder().InsertText(tn.Stamp(), after, text); err != nil {
			return err
		}

		runes := []rune(text)
		ev := TextChange{
			Origin: OriginLocal,
			Kind:   TextInsert,
			Start:  index,
			End:    index + len(runes),
			Value:  text,
		}
		m.emit(func() { t.notify(ev) })
		return nil
	})
}

// Remove deletes the runes in [start, end).
func (t *Text) Remove(start, end int) error {
	if t.Disposed() {
		return nil
	}
	return t.handle.ApplyLocal("remove text "+t.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), t.Path(), common.NodeKindStr)
		if err != nil {
			return err
		}
		tn := node.(*crdt.TextNode)
		if start < 0 || end > tn.Len() || start > end {
			return common.ErrInvalidArgument{Message: "text remove range out of range"}
		}
		if start == end {
			return nil
		}

		removed := []rune(tn.String())[start:end]
		first, err := tn.StampAt(start)
		if err != nil {
			return err
		}
		last, err := tn.StampAt(end - 1)
		if err != nil {
			return err
		}
		if err := m.Builder().DeleteText(tn.Stamp(), first, last); err != nil {
			return err
		}

		ev := TextChange{
			Origin: OriginLocal,
			Kind:   TextRemove,
			Start:  start,
			End:    end,
			Value:  string(removed),
		}
		m.emit(func() { t.notify(ev) })
		return nil
	})
}

// SetText replaces the whole string. Setting the current string is a
// no-op; otherwise a single set event covers the replacement.
func (t *Text) SetText(text string) error {
	if t.Disposed() {
		return nil
	}
	return t.handle.ApplyLocal("set text "+t.path.String(), func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), t.Path(), common.NodeKindStr)
		if err != nil {
			return err
		}
		tn := node.(*crdt.TextNode)
		old := tn.String()
		if old == text {
			return nil
		}

		if tn.Len() > 0 {
			first, err := tn.StampAt(0)
			if err != nil {
				return err
			}
			last, err := tn.StampAt(tn.Len() - 1)
			if err != nil {
				return err
			}
			if err := m.Builder().DeleteText(tn.Stamp(), first, last); err != nil {
				return err
			}
		}
		if text != "" {
			if err := m.Builder().InsertText(tn.Stamp(), common.RootStamp, text); err != nil {
				return err
			}
		}

		ev := TextChange{
			Origin: OriginLocal,
			Kind:   TextSet,
			Start:  0,
			End:    len([]rune(text)),
			Value:  text,
		}
		m.emit(func() { t.notify(ev) })
		return nil
	})
}

// Clear removes all text.
func (t *Text) Clear() error {
	return t.SetText("")
}

// OnChange registers a callback invoked for every change, local and remote.
func (t *Text) OnChange(cb func(TextChange)) {
	t.cbMu.Lock()
	t.callbacks = append(t.callbacks, cb)
	t.cbMu.Unlock()
}

// Dispose detaches the text and best-effort clears its region.
func (t *Text) Dispose() {
	path := t.Path()
	if !t.dispose(t) {
		return
	}
	t.cbMu.Lock()
	t.callbacks = nil
	t.cbMu.Unlock()
	t.clearRegion(path)
}

func (t *Text) notify(ev TextChange) {
	t.cbMu.Lock()
	cbs := make([]func(TextChange), len(t.callbacks))
	copy(cbs, t.callbacks)
	t.cbMu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

// capture runs under the document lock held by the handle.
func (t *Text) capture() (interface{}, bool) {
	if t.Disposed() {
		return nil, false
	}
	doc := t.handle.doc
	if tn, ok := resolveNode(doc, t.Path()).(*crdt.TextNode); ok {
		return tn.String(), true
	}
	return "", true
}

// applyRemote splices the before and after strings into minimal insert and
// remove events. A change that is neither a pure insert nor a pure remove
// is reported as remove-then-insert over the differing span.
func (t *Text) applyRemote(before, after interface{}) {
	old, _ := before.(string)
	cur, _ := after.(string)
	if old == cur {
		return
	}

	a, b := []rune(old), []rune(cur)
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	removed := a[prefix : len(a)-suffix]
	inserted := b[prefix : len(b)-suffix]

	if len(removed) > 0 {
		t.notify(TextChange{
			Origin: OriginRemote,
			Kind:   TextRemove,
			Start:  prefix,
			End:    prefix + len(removed),
			Value:  string(removed),
		})
	}
	if len(inserted) > 0 {
		t.notify(TextChange{
			Origin: OriginRemote,
			Kind:   TextInsert,
			Start:  prefix,
			End:    prefix + len(inserted),
			Value:  string(inserted),
		})
	}
}
