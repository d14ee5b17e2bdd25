package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdoc/common"
)

func stampFor(actor common.ActorID, seq uint64) common.Stamp {
	return common.Stamp{Actor: actor, Seq: seq}
}

func literal(stamp common.Stamp, value interface{}) Node {
	return NewLiteralNode(stamp, value)
}

func TestListInsertAndIndexing(t *testing.T) {
	actor := common.NewActorID()
	list := NewListNode(stampFor(actor, 1))

	require.True(t, list.Insert(common.RootStamp, stampFor(actor, 2), literal(stampFor(actor, 2), "a")))
	require.True(t, list.Insert(stampFor(actor, 2), stampFor(actor, 3), literal(stampFor(actor, 3), "b")))
	require.True(t, list.Insert(stampFor(actor, 3), stampFor(actor, 4), literal(stampFor(actor, 4), "c")))

	assert.Equal(t, 3, list.Len())
	assert.Equal(t, []interface{}{"a", "b", "c"}, list.Value())

	node, err := list.NodeAt(1)
	require.NoError(t, err)
	assert.Equal(t, "b", node.Value())
}

func TestListInsertUnknownReferenceFails(t *testing.T) {
	actor := common.NewActorID()
	list := NewListNode(stampFor(actor, 1))

	ok := list.Insert(stampFor(actor, 99), stampFor(actor, 2), literal(stampFor(actor, 2), "a"))
	assert.False(t, ok)
	assert.Equal(t, 0, list.Len())
}

func TestListDeleteLeavesTombstone(t *testing.T) {
	actor := common.NewActorID()
	list := NewListNode(stampFor(actor, 1))
	require.True(t, list.Insert(common.RootStamp, stampFor(actor, 2), literal(stampFor(actor, 2), "a")))
	require.True(t, list.Insert(stampFor(actor, 2), stampFor(actor, 3), literal(stampFor(actor, 3), "b")))

	require.True(t, list.Delete(stampFor(actor, 2)))
	assert.Equal(t, 1, list.Len())
	assert.Equal(t, []interface{}{"b"}, list.Value())

	// Deleting a tombstone again is a no-op.
	assert.False(t, list.Delete(stampFor(actor, 2)))

	// The tombstone still anchors inserts after it.
	require.True(t, list.Insert(stampFor(actor, 2), stampFor(actor, 4), literal(stampFor(actor, 4), "x")))
	assert.Equal(t, []interface{}{"x", "b"}, list.Value())
}

func TestListDeleteRange(t *testing.T) {
	actor := common.NewActorID()
	list := NewListNode(stampFor(actor, 1))
	for i := uint64(0); i < 4; i++ {
		ref := common.RootStamp
		if i > 0 {
			ref = stampFor(actor, i+1)
		}
		require.True(t, list.Insert(ref, stampFor(actor, i+2), literal(stampFor(actor, i+2), int(i))))
	}

	require.True(t, list.DeleteRange(stampFor(actor, 3), stampFor(actor, 4)))
	assert.Equal(t, []interface{}{0, 3}, list.Value())
}

func TestListConcurrentInsertsCommute(t *testing.T) {
	actorA := common.NewActorID()
	actorB := common.NewActorID()
	base := common.NewActorID()

	head := stampFor(base, 2)
	insA := stampFor(actorA, 5)
	insB := stampFor(actorB, 5)

	build := func(first, second common.Stamp, firstVal, secondVal string) *ListNode {
		list := NewListNode(stampFor(base, 1))
		require.True(t, list.Insert(common.RootStamp, head, literal(head, "head")))
		require.True(t, list.Insert(head, first, literal(first, firstVal)))
		require.True(t, list.Insert(head, second, literal(second, secondVal)))
		return list
	}

	one := build(insA, insB, "a", "b")
	two := build(insB, insA, "b", "a")

	assert.Equal(t, one.Value(), two.Value())
}

func TestListStampBefore(t *testing.T) {
	actor := common.NewActorID()
	list := NewListNode(stampFor(actor, 1))
	require.True(t, list.Insert(common.RootStamp, stampFor(actor, 2), literal(stampFor(actor, 2), "a")))

	head, err := list.StampBefore(0)
	require.NoError(t, err)
	assert.Equal(t, 0, head.Compare(common.RootStamp))

	after, err := list.StampBefore(1)
	require.NoError(t, err)
	assert.Equal(t, stampFor(actor, 2), after)

	_, err = list.StampBefore(5)
	assert.Error(t, err)
}
