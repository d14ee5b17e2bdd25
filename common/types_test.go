package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorIDRoundTrip(t *testing.T) {
	id := NewActorID()

	parsed, err := ParseActorID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseActorID("not-a-uuid")
	assert.Error(t, err)
}

func TestActorIDCompare(t *testing.T) {
	a := NewActorID()
	assert.Equal(t, 0, a.Compare(a))

	b := NewActorID()
	assert.Equal(t, -a.Compare(b), b.Compare(a))
}

func TestStampCompare(t *testing.T) {
	actor := NewActorID()
	low := Stamp{Actor: actor, Seq: 1}
	high := Stamp{Actor: actor, Seq: 2}

	assert.Equal(t, -1, low.Compare(high))
	assert.Equal(t, 1, high.Compare(low))
	assert.Equal(t, 0, low.Compare(low))
}

func TestStampCompareOrdersBySeqAcrossActors(t *testing.T) {
	a, err := ParseActorID("ffffffff-ffff-ffff-ffff-ffffffffffff")
	require.NoError(t, err)
	b, err := ParseActorID("00000000-0000-0000-0000-000000000001")
	require.NoError(t, err)

	// A higher sequence wins even when its actor sorts lower: the sequence
	// is a Lamport time, so the later write carries the greater stamp.
	earlier := Stamp{Actor: a, Seq: 3}
	later := Stamp{Actor: b, Seq: 4}

	assert.Equal(t, 1, later.Compare(earlier))
	assert.Equal(t, -1, earlier.Compare(later))
}

func TestStampCompareBreaksTiesByActor(t *testing.T) {
	a := NewActorID()
	b := NewActorID()
	sa := Stamp{Actor: a, Seq: 5}
	sb := Stamp{Actor: b, Seq: 5}

	assert.NotEqual(t, 0, sa.Compare(sb))
	assert.Equal(t, -sa.Compare(sb), sb.Compare(sa))
}

func TestStampNextAndAdvance(t *testing.T) {
	actor := NewActorID()
	s := Stamp{Actor: actor, Seq: 3}

	assert.Equal(t, uint64(4), s.Next().Seq)
	assert.Equal(t, uint64(8), s.Advance(5).Seq)
	assert.Equal(t, actor, s.Advance(5).Actor)
}

func TestStampNilness(t *testing.T) {
	assert.True(t, NilStamp.IsNil())
	assert.False(t, Stamp{Actor: NewActorID(), Seq: 1}.IsNil())
}

func TestStampJSONRoundTrip(t *testing.T) {
	s := Stamp{Actor: NewActorID(), Seq: 42}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Stamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s, decoded)
}
