package modeldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdoc/common"
	"collabdoc/crdt"
	"collabdoc/crdtpatch"
)

func newTestBuilder() *crdtpatch.Builder {
	return crdtpatch.NewBuilder(crdt.NewDoc(common.NewActorID()))
}

func TestForceSetValueCreatesIntermediates(t *testing.T) {
	b := newTestBuilder()

	require.NoError(t, forceSetValue(b, NewPath("a", "b", "c"), "deep"))

	assert.Equal(t,
		map[string]interface{}{"a": map[string]interface{}{"b": map[string]interface{}{"c": "deep"}}},
		b.Doc().View())
}

func TestForceSetValueOverwritesWrongShape(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, forceSetValue(b, NewPath("spot"), "scalar"))

	// Descending through the scalar replaces it with an object.
	require.NoError(t, forceSetValue(b, NewPath("spot", "inner"), "x"))
	assert.Equal(t,
		map[string]interface{}{"spot": map[string]interface{}{"inner": "x"}},
		b.Doc().View())
}

func TestEnsureShapeCreatesThenReuses(t *testing.T) {
	b := newTestBuilder()

	node, err := ensureShape(b, NewPath("body"), common.NodeKindStr)
	require.NoError(t, err)
	assert.Equal(t, common.NodeKindStr, node.Kind())
	b.Flush()

	// The second ensure resolves the existing node and emits nothing.
	again, err := ensureShape(b, NewPath("body"), common.NodeKindStr)
	require.NoError(t, err)
	assert.Same(t, node, again)
	assert.False(t, b.Pending())
}

func TestEnsureShapeRepairsWrongKind(t *testing.T) {
	b := newTestBuilder()

	_, err := ensureShape(b, NewPath("slot"), common.NodeKindStr)
	require.NoError(t, err)

	repaired, err := ensureShape(b, NewPath("slot"), common.NodeKindArr)
	require.NoError(t, err)
	assert.Equal(t, common.NodeKindArr, repaired.Kind())
}

func TestReservedListSegmentDescendsWithoutError(t *testing.T) {
	b := newTestBuilder()

	// An absent reserved segment first materializes as an array; descending
	// through it then repairs it to an object like any wrong shape.
	require.NoError(t, forceSetValue(b, NewPath("list", "child"), "x"))
	assert.Equal(t,
		map[string]interface{}{"list": map[string]interface{}{"child": "x"}},
		b.Doc().View())
}

func TestReservedListSegmentAllowedAsLeaf(t *testing.T) {
	b := newTestBuilder()

	node, err := ensureShape(b, NewPath("list"), common.NodeKindArr)
	require.NoError(t, err)
	assert.Equal(t, common.NodeKindArr, node.Kind())
}

func TestResolveNodeMissingReturnsNil(t *testing.T) {
	b := newTestBuilder()
	assert.Nil(t, resolveNode(b.Doc(), NewPath("nothing")))

	require.NoError(t, forceSetValue(b, NewPath("a"), "x"))
	assert.Nil(t, resolveNode(b.Doc(), NewPath("a", "deeper")))
	assert.NotNil(t, resolveNode(b.Doc(), NewPath("a")))
}

func TestForceParentRejectsEmptyPath(t *testing.T) {
	b := newTestBuilder()
	_, _, err := forceParent(b, nil)
	require.Error(t, err)
}
