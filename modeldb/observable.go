package modeldb

import (
	"sync"

	"collabdoc/crdt"
)

// Observable is the common surface of every shared primitive registered in
// a ModelDB. A primitive stays bound to one path until it is re-pathed or
// disposed.
type Observable interface {
	Path() Path
	Disposed() bool
	Dispose()
}

// primitive is the shared base of the concrete observables. Its mutex
// guards only the primitive's own bookkeeping (path, callbacks, disposal);
// document access always goes through the handle.
type primitive struct {
	handle *DocHandle
	db     *ModelDB

	mu       sync.Mutex
	path     Path
	disposed bool
}

// Path returns the path this primitive is bound to.
func (p *primitive) Path() Path {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path.Clone()
}

// Disposed reports whether the primitive has been disposed.
func (p *primitive) Disposed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disposed
}

func (p *primitive) observerPath() Path {
	return p.Path()
}

// setPath rebinds the primitive to a new path. Callers are responsible for
// making the rebind atomic with respect to document sections.
func (p *primitive) setPath(path Path) {
	p.mu.Lock()
	p.path = path.Clone()
	p.mu.Unlock()
}

// dispose marks the primitive disposed and detaches it from the handle and
// the registry. It reports false when already disposed.
func (p *primitive) dispose(self remoteObserver) bool {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return false
	}
	p.disposed = true
	path := p.path.Clone()
	p.mu.Unlock()

	p.handle.removeObserver(self)
	if p.db != nil {
		p.db.unregister(path)
	}
	return true
}

// clearRegion best-effort deletes the primitive's key from its parent
// container so a disposed region does not linger in the document. Absent
// parents are fine; disposal must not fail during teardown.
func (p *primitive) clearRegion(path Path) {
	if len(path) == 0 {
		return
	}
	_ = p.handle.ApplyLocal("dispose "+path.String(), func(m *Mutation) error {
		parentNode := resolveNode(m.Doc(), path[:len(path)-1])
		parent, ok := parentNode.(*crdt.ObjectNode)
		if !ok {
			return nil
		}
		key := path[len(path)-1]
		if !parent.Has(key) {
			return nil
		}
		return m.Builder().DeleteKey(parent.Stamp(), key)
	})
}
