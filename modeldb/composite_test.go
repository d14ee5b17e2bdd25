package modeldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellChildrenLayout(t *testing.T) {
	db, _ := newReadyDB(t)
	cell := db.CreateCell(NewPath("cells", "0"))

	assert.Equal(t, "cells.0.value", cell.Source().Path().String())
	assert.Equal(t, "cells.0.metadata", cell.Metadata().Path().String())
	assert.Equal(t, "cells.0.cellType", cell.CellType().Path().String())

	require.NoError(t, cell.Source().SetText("print('hi')"))
	require.NoError(t, cell.CellType().Set("code"))
	require.NoError(t, cell.Metadata().Set("trusted", true))

	assert.Equal(t, "print('hi')", cell.Source().Text())
	assert.Equal(t, "code", cell.CellType().Get())
}

func TestCellSetPathRebindsChildren(t *testing.T) {
	db, _ := newReadyDB(t)
	cell := db.CreateCell(NewPath("cells", "0"))
	require.NoError(t, cell.Source().SetText("body"))

	cell.SetPath(NewPath("cells", "3"))

	assert.Equal(t, "cells.3", cell.Path().String())
	assert.Equal(t, "cells.3.value", cell.Source().Path().String())
	assert.Equal(t, "cells.3.metadata", cell.Metadata().Path().String())

	// The registry follows the rebind.
	assert.True(t, db.Has(NewPath("cells", "3", "value")))
	assert.False(t, db.Has(NewPath("cells", "0", "value")))
}

func TestCellDisposeDisposesChildren(t *testing.T) {
	db, _ := newReadyDB(t)
	cell := db.CreateCell(NewPath("cells", "0"))

	cell.Dispose()
	assert.True(t, cell.Disposed())
	assert.True(t, cell.Source().Disposed())
	assert.True(t, cell.Metadata().Disposed())
	assert.True(t, cell.CellType().Disposed())
}

func TestCodeEditorLayout(t *testing.T) {
	db, _ := newReadyDB(t)
	editor := db.CreateCodeEditor(NewPath("editor"))

	require.NoError(t, editor.MimeType().Set("text/x-go"))
	require.NoError(t, editor.Source().SetText("package main"))
	require.NoError(t, editor.Selections().Set(db.Handle().Actor().String(),
		map[string]interface{}{"start": "0", "end": "7"}))

	assert.Equal(t, "text/x-go", editor.MimeType().Get())
	assert.Equal(t, "editor.selections", editor.Selections().Path().String())
}

func TestNotebookLayoutAndReplication(t *testing.T) {
	dbA, dbB, pump := syncPair(t)
	na := dbA.CreateNotebook(NewPath("nb"))
	pump()
	nb := dbB.CreateNotebook(NewPath("nb"))

	require.NoError(t, na.Metadata().Set("kernel", "gopls"))
	require.NoError(t, na.Cells().Push("cell-id-1"))
	pump()

	assert.Equal(t, "gopls", nb.Metadata().Get("kernel"))
	assert.Equal(t, []interface{}{"cell-id-1"}, nb.Cells().Values())
}

func TestViewScopesPaths(t *testing.T) {
	db, _ := newReadyDB(t)
	view := db.View(NewPath("nested", "region"))

	v := view.CreateValue(NewPath("leaf"))
	require.NoError(t, v.Set("scoped"))

	assert.Equal(t, "nested.region.leaf", v.Path().String())

	// The root database sees the same registration under the full path.
	assert.True(t, db.Has(NewPath("nested", "region", "leaf")))
	got, ok := db.Get(NewPath("nested", "region", "leaf")).(*Value)
	require.True(t, ok)
	assert.Equal(t, "scoped", got.Get())
}
