package modeldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdoc/common"
)

func TestListPushInsertGet(t *testing.T) {
	db, _ := newReadyDB(t)
	list := db.CreateList(NewPath("items"))

	require.NoError(t, list.Push("b"))
	require.NoError(t, list.Push("c"))
	require.NoError(t, list.Insert(0, "a"))

	assert.Equal(t, 3, list.Len())
	assert.Equal(t, []interface{}{"a", "b", "c"}, list.Values())

	got, err := list.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	_, err = list.Get(9)
	assert.Error(t, err)
}

func TestListBulkInsertUnsupported(t *testing.T) {
	db, _ := newReadyDB(t)
	list := db.CreateList(NewPath("items"))

	err := list.PushAll([]interface{}{"a", "b"})
	assert.ErrorIs(t, err, common.ErrBulkInsertUnsupported)

	err = list.InsertAll(0, []interface{}{"a"})
	assert.ErrorIs(t, err, common.ErrBulkInsertUnsupported)
}

func TestListRemoveAndRemoveValue(t *testing.T) {
	db, sender := newReadyDB(t)
	list := db.CreateList(NewPath("items"))
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, list.Push(v))
	}

	require.NoError(t, list.Remove(1))
	assert.Equal(t, []interface{}{"a", "c"}, list.Values())

	require.NoError(t, list.RemoveValue("c"))
	assert.Equal(t, []interface{}{"a"}, list.Values())

	// Removing an absent value is quiet: no batch, no event.
	sender.take()
	require.NoError(t, list.RemoveValue("zz"))
	assert.Empty(t, sender.take())
}

func TestListRemoveRangeAndClear(t *testing.T) {
	db, _ := newReadyDB(t)
	list := db.CreateList(NewPath("items"))
	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, list.Push(v))
	}

	var events []ListChange
	list.OnChange(func(ev ListChange) { events = append(events, ev) })

	require.NoError(t, list.RemoveRange(1, 3))
	assert.Equal(t, []interface{}{"a", "d"}, list.Values())
	require.Len(t, events, 1)
	assert.Equal(t, ListRemove, events[0].Kind)
	assert.Equal(t, []interface{}{"b", "c"}, events[0].OldValues)

	require.NoError(t, list.Clear())
	assert.Equal(t, 0, list.Len())
}

func TestListSetReplacesInPlace(t *testing.T) {
	db, _ := newReadyDB(t)
	list := db.CreateList(NewPath("items"))
	require.NoError(t, list.Push("old"))

	var events []ListChange
	list.OnChange(func(ev ListChange) { events = append(events, ev) })

	require.NoError(t, list.Set(0, "new"))
	assert.Equal(t, []interface{}{"new"}, list.Values())
	require.Len(t, events, 1)
	assert.Equal(t, ListSet, events[0].Kind)
	assert.Equal(t, []interface{}{"old"}, events[0].OldValues)
	assert.Equal(t, []interface{}{"new"}, events[0].NewValues)
}

func TestListMoveSemantics(t *testing.T) {
	db, _ := newReadyDB(t)
	list := db.CreateList(NewPath("items"))
	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, list.Push(v))
	}

	var events []ListChange
	list.OnChange(func(ev ListChange) { events = append(events, ev) })

	require.NoError(t, list.Move(0, 2))
	assert.Equal(t, []interface{}{"b", "c", "a", "d"}, list.Values())

	require.Len(t, events, 1)
	assert.Equal(t, ListMove, events[0].Kind)
	assert.Equal(t, 0, events[0].OldIndex)
	assert.Equal(t, 2, events[0].NewIndex)
	assert.Equal(t, []interface{}{"a"}, events[0].NewValues)
}

func TestListMoveNoops(t *testing.T) {
	db, sender := newReadyDB(t)
	list := db.CreateList(NewPath("items"))
	require.NoError(t, list.Push("only"))
	sender.take()

	var events []ListChange
	list.OnChange(func(ev ListChange) { events = append(events, ev) })

	// Single element and same-index moves produce nothing.
	require.NoError(t, list.Move(0, 0))
	assert.Empty(t, sender.take())
	assert.Empty(t, events)
}

func TestListReplicates(t *testing.T) {
	dbA, dbB, pump := syncPair(t)
	la := dbA.CreateList(NewPath("items"))
	pump()
	lb := dbB.CreateList(NewPath("items"))

	require.NoError(t, la.Push("x"))
	require.NoError(t, la.Push("y"))
	pump()
	assert.Equal(t, []interface{}{"x", "y"}, lb.Values())

	var events []ListChange
	lb.OnChange(func(ev ListChange) { events = append(events, ev) })

	require.NoError(t, la.Insert(1, "mid"))
	pump()

	assert.Equal(t, []interface{}{"x", "mid", "y"}, lb.Values())
	require.Len(t, events, 1)
	assert.Equal(t, OriginRemote, events[0].Origin)
	assert.Equal(t, ListAdd, events[0].Kind)
	assert.Equal(t, 1, events[0].NewIndex)
}

func TestListRemoteMoveDetected(t *testing.T) {
	dbA, dbB, pump := syncPair(t)
	la := dbA.CreateList(NewPath("items"))
	pump()
	lb := dbB.CreateList(NewPath("items"))

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, la.Push(v))
	}
	pump()

	var events []ListChange
	lb.OnChange(func(ev ListChange) { events = append(events, ev) })

	require.NoError(t, la.Move(0, 2))
	pump()

	assert.Equal(t, []interface{}{"b", "c", "a", "d"}, lb.Values())
	require.Len(t, events, 1)
	assert.Equal(t, ListMove, events[0].Kind)
	assert.Equal(t, OriginRemote, events[0].Origin)
	assert.Equal(t, 0, events[0].OldIndex)
	assert.Equal(t, 2, events[0].NewIndex)
}

func TestListInsertAtHeadAfterRemotePush(t *testing.T) {
	lower, higher := testActors(t)
	dbA, dbB, pump := syncPairWith(t,
		[]Option{WithActor(higher)}, []Option{WithActor(lower)})
	la := dbA.CreateList(NewPath("items"))
	pump()
	lb := dbB.CreateList(NewPath("items"))

	require.NoError(t, la.Push("x"))
	pump()
	require.Equal(t, []interface{}{"x"}, lb.Values())

	// The head insert happened after "x" arrived, so it lands before "x" on
	// both replicas regardless of how the actors sort.
	require.NoError(t, lb.Insert(0, "y"))
	pump()

	assert.Equal(t, []interface{}{"y", "x"}, la.Values())
	assert.Equal(t, []interface{}{"y", "x"}, lb.Values())
}

func TestListConcurrentPushesConverge(t *testing.T) {
	dbA, dbB, pump := syncPair(t)
	la := dbA.CreateList(NewPath("items"))
	pump()
	lb := dbB.CreateList(NewPath("items"))

	require.NoError(t, la.Push("from-a"))
	require.NoError(t, lb.Push("from-b"))
	pump()

	assert.Equal(t, la.Values(), lb.Values())
	assert.Len(t, la.Values(), 2)
}
