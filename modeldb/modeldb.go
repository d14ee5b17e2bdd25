package modeldb

import (
	"sync"

	"go.uber.org/zap"

	"collabdoc/common"
)

// ModelDB is the primitive registry for one shared document: it creates
// observables, records them by path, and scopes views onto sub-regions.
// All views of a document share one handle, one registry and one
// collaborator registry.
type ModelDB struct {
	handle        *DocHandle
	collaborators *CollaboratorRegistry
	logger        *zap.Logger
	basePath      Path

	// registry state is shared across views through the root pointer.
	root     *ModelDB
	mu       sync.Mutex
	registry map[string]Observable
}

// Option configures a ModelDB at construction.
type Option func(*options)

type options struct {
	displayName string
	logger      *zap.Logger
	actor       common.ActorID
}

// WithDisplayName sets the local collaborator's display name.
func WithDisplayName(name string) Option {
	return func(o *options) { o.displayName = name }
}

// WithActor pins the local actor identity instead of generating one.
func WithActor(actor common.ActorID) Option {
	return func(o *options) { o.actor = actor }
}

// WithLogger sets the logger used by the database and its handle.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewModelDB creates a database with a fresh document handle.
func NewModelDB(opts ...Option) *ModelDB {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.actor == common.NilActorID {
		o.actor = common.NewActorID()
	}

	handle := NewDocHandleForActor(o.actor, o.logger)
	db := &ModelDB{
		handle:   handle,
		logger:   o.logger,
		registry: make(map[string]Observable),
	}
	db.root = db
	db.collaborators = newCollaboratorRegistry(handle, o.displayName)
	handle.onRemoteApplied = db.collaborators.refresh
	return db
}

// Handle returns the document handle shared by all views.
func (db *ModelDB) Handle() *DocHandle {
	return db.handle
}

// Collaborators returns the shared collaborator registry.
func (db *ModelDB) Collaborators() *CollaboratorRegistry {
	return db.root.collaborators
}

// BasePath returns the path prefix this view is scoped to; empty for the
// root database.
func (db *ModelDB) BasePath() Path {
	return db.basePath.Clone()
}

// View returns a database scoped under basePath. Views share the document,
// the registry and the collaborator registry with their root; only path
// resolution differs.
func (db *ModelDB) View(basePath Path) *ModelDB {
	return &ModelDB{
		handle:   db.handle,
		logger:   db.logger,
		basePath: db.resolve(basePath),
		root:     db.root,
	}
}

func (db *ModelDB) resolve(path Path) Path {
	return db.basePath.Concat(path...)
}

// CreateValue creates and registers a Value at path.
func (db *ModelDB) CreateValue(path Path) *Value {
	full := db.resolve(path)
	v := newValue(db.root, full)
	db.adopt(full, v, v, v.init)
	return v
}

// CreateString creates and registers a Text at path.
func (db *ModelDB) CreateString(path Path) *Text {
	full := db.resolve(path)
	t := newText(db.root, full)
	db.adopt(full, t, t, t.init)
	return t
}

// CreateList creates and registers a List at path.
func (db *ModelDB) CreateList(path Path) *List {
	full := db.resolve(path)
	l := newList(db.root, full)
	db.adopt(full, l, l, l.init)
	return l
}

// CreateMap creates and registers a Map at path.
func (db *ModelDB) CreateMap(path Path) *Map {
	full := db.resolve(path)
	m := newMap(db.root, full)
	db.adopt(full, m, m, m.init)
	return m
}

// CreateJSON creates a Map at path; JSON regions and maps share one
// representation.
func (db *ModelDB) CreateJSON(path Path) *Map {
	return db.CreateMap(path)
}

// CreateCell creates a notebook cell composite rooted at path.
func (db *ModelDB) CreateCell(path Path) *Cell {
	return newCell(db.viewForComposite(), db.resolve(path))
}

// CreateCodeEditor creates a code editor composite rooted at path.
func (db *ModelDB) CreateCodeEditor(path Path) *CodeEditor {
	return newCodeEditor(db.viewForComposite(), db.resolve(path))
}

// CreateNotebook creates a notebook composite rooted at path.
func (db *ModelDB) CreateNotebook(path Path) *Notebook {
	return newNotebook(db.viewForComposite(), db.resolve(path))
}

// viewForComposite returns a database whose resolve is the identity, so a
// composite built from already-resolved paths does not double-prefix.
func (db *ModelDB) viewForComposite() *ModelDB {
	if len(db.basePath) == 0 {
		return db
	}
	return &ModelDB{
		handle:   db.handle,
		logger:   db.logger,
		root:     db.root,
		basePath: nil,
	}
}

// Get returns the observable registered at path, or nil.
func (db *ModelDB) Get(path Path) Observable {
	root := db.root
	root.mu.Lock()
	defer root.mu.Unlock()
	return root.registry[db.resolve(path).String()]
}

// Has reports whether an observable is registered at path.
func (db *ModelDB) Has(path Path) bool {
	return db.Get(path) != nil
}

// Set registers an already-created observable at path, replacing any
// previous registration.
func (db *ModelDB) Set(path Path, obs Observable) {
	root := db.root
	root.mu.Lock()
	root.registry[db.resolve(path).String()] = obs
	root.mu.Unlock()
}

// adopt records a new primitive, subscribes it to remote translation and
// schedules its lazy shape initialization for when the document is ready.
func (db *ModelDB) adopt(full Path, obs Observable, watcher remoteObserver, init func()) {
	root := db.root
	root.mu.Lock()
	root.registry[full.String()] = obs
	root.mu.Unlock()

	db.handle.addObserver(watcher)
	db.handle.whenReady(init)
}

// rebind moves a registered primitive to a new path. Called inside a
// Rebind section by composites.
func (db *ModelDB) rebind(obs Observable, newPath Path) {
	root := db.root
	oldKey := obs.Path().String()

	switch p := obs.(type) {
	case *Value:
		p.setPath(newPath)
	case *Text:
		p.setPath(newPath)
	case *List:
		p.setPath(newPath)
	case *Map:
		p.setPath(newPath)
	}

	root.mu.Lock()
	if root.registry[oldKey] == obs {
		delete(root.registry, oldKey)
	}
	root.registry[newPath.String()] = obs
	root.mu.Unlock()
}

// unregister drops a disposed primitive from the registry.
func (db *ModelDB) unregister(path Path) {
	root := db.root
	root.mu.Lock()
	delete(root.registry, path.String())
	root.mu.Unlock()
}

// Dispose disposes every registered observable. Best effort; disposal
// continues past individual failures.
func (db *ModelDB) Dispose() {
	root := db.root
	root.mu.Lock()
	all := make([]Observable, 0, len(root.registry))
	for _, obs := range root.registry {
		all = append(all, obs)
	}
	root.mu.Unlock()

	for _, obs := range all {
		obs.Dispose()
	}
}
