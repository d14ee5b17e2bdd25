package modeldb

import (
	"sync"
)

// Segment names for composite children.
const (
	cellValueSegment     = "value"
	cellMetadataSegment  = "metadata"
	cellTypeSegment      = "cellType"
	editorMimeSegment    = "mimeType"
	editorCursorsSegment = "selections"
	notebookCellsSegment = "cells"
	notebookMetaSegment  = "metadata"
)

// Cell is a composite primitive modeling one notebook cell: its source
// text, its metadata map and its cell type register.
type Cell struct {
	db *ModelDB

	mu       sync.Mutex
	path     Path
	disposed bool

	source   *Text
	metadata *Map
	cellType *Value
}

func newCell(db *ModelDB, path Path) *Cell {
	c := &Cell{db: db, path: path.Clone()}
	c.source = db.CreateString(path.Concat(cellValueSegment))
	c.metadata = db.CreateMap(path.Concat(cellMetadataSegment))
	c.cellType = db.CreateValue(path.Concat(cellTypeSegment))
	return c
}

// Source returns the cell's source text.
func (c *Cell) Source() *Text { return c.source }

// Metadata returns the cell's metadata map.
func (c *Cell) Metadata() *Map { return c.metadata }

// CellType returns the cell's type register.
func (c *Cell) CellType() *Value { return c.cellType }

// Path returns the cell's base path.
func (c *Cell) Path() Path {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path.Clone()
}

// Disposed reports whether the cell has been disposed.
func (c *Cell) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// SetPath rebinds the cell and all its children to a new base path in one
// atomic step; readers never observe a half-re-pathed cell.
func (c *Cell) SetPath(path Path) {
	c.db.handle.Rebind(func() {
		c.mu.Lock()
		c.path = path.Clone()
		c.mu.Unlock()
		c.db.rebind(c.source, path.Concat(cellValueSegment))
		c.db.rebind(c.metadata, path.Concat(cellMetadataSegment))
		c.db.rebind(c.cellType, path.Concat(cellTypeSegment))
	})
}

// Dispose disposes the cell and its children.
func (c *Cell) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()

	c.source.Dispose()
	c.metadata.Dispose()
	c.cellType.Dispose()
}

// CodeEditor is a composite primitive modeling a collaborative editor
// buffer: its text, its MIME type register and a per-collaborator
// selections map.
type CodeEditor struct {
	db *ModelDB

	mu       sync.Mutex
	path     Path
	disposed bool

	source     *Text
	mimeType   *Value
	selections *Map
}

func newCodeEditor(db *ModelDB, path Path) *CodeEditor {
	e := &CodeEditor{db: db, path: path.Clone()}
	e.source = db.CreateString(path.Concat(cellValueSegment))
	e.mimeType = db.CreateValue(path.Concat(editorMimeSegment))
	e.selections = db.CreateMap(path.Concat(editorCursorsSegment))
	return e
}

// Source returns the editor's text buffer.
func (e *CodeEditor) Source() *Text { return e.source }

// MimeType returns the editor's MIME type register.
func (e *CodeEditor) MimeType() *Value { return e.mimeType }

// Selections returns the per-collaborator selections map, keyed by actor.
func (e *CodeEditor) Selections() *Map { return e.selections }

// Path returns the editor's base path.
func (e *CodeEditor) Path() Path {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path.Clone()
}

// Disposed reports whether the editor has been disposed.
func (e *CodeEditor) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// SetPath rebinds the editor and its children atomically.
func (e *CodeEditor) SetPath(path Path) {
	e.db.handle.Rebind(func() {
		e.mu.Lock()
		e.path = path.Clone()
		e.mu.Unlock()
		e.db.rebind(e.source, path.Concat(cellValueSegment))
		e.db.rebind(e.mimeType, path.Concat(editorMimeSegment))
		e.db.rebind(e.selections, path.Concat(editorCursorsSegment))
	})
}

// Dispose disposes the editor and its children.
func (e *CodeEditor) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	e.mu.Unlock()

	e.source.Dispose()
	e.mimeType.Dispose()
	e.selections.Dispose()
}

// Notebook is a composite primitive modeling a notebook document: an
// ordered cell list plus document-level metadata.
type Notebook struct {
	db *ModelDB

	mu       sync.Mutex
	path     Path
	disposed bool

	cells    *List
	metadata *Map
}

func newNotebook(db *ModelDB, path Path) *Notebook {
	n := &Notebook{db: db, path: path.Clone()}
	n.cells = db.CreateList(path.Concat(notebookCellsSegment))
	n.metadata = db.CreateMap(path.Concat(notebookMetaSegment))
	return n
}

// Cells returns the ordered cell list.
func (n *Notebook) Cells() *List { return n.cells }

// Metadata returns the notebook metadata map.
func (n *Notebook) Metadata() *Map { return n.metadata }

// Path returns the notebook's base path.
func (n *Notebook) Path() Path {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path.Clone()
}

// Disposed reports whether the notebook has been disposed.
func (n *Notebook) Disposed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disposed
}

// SetPath rebinds the notebook and its children atomically.
func (n *Notebook) SetPath(path Path) {
	n.db.handle.Rebind(func() {
		n.mu.Lock()
		n.path = path.Clone()
		n.mu.Unlock()
		n.db.rebind(n.cells, path.Concat(notebookCellsSegment))
		n.db.rebind(n.metadata, path.Concat(notebookMetaSegment))
	})
}

// Dispose disposes the notebook and its children.
func (n *Notebook) Dispose() {
	n.mu.Lock()
	if n.disposed {
		n.mu.Unlock()
		return
	}
	n.disposed = true
	n.mu.Unlock()

	n.cells.Dispose()
	n.metadata.Dispose()
}
