package common

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ActorID identifies a single replica for the lifetime of its process.
// It is implemented as a UUID v7 which provides time-ordered values.
type ActorID uuid.UUID

// NilActorID is the zero value for ActorID.
var NilActorID ActorID

// RootStamp is the fixed Stamp used for the root node of every document.
var RootStamp = Stamp{Actor: NilActorID, Seq: 0}

// RootObjectStamp is the fixed Stamp of the root object container. Every
// document materializes it at creation, so replicas that bootstrap
// independently still address one shared top-level container.
var RootObjectStamp = Stamp{Actor: NilActorID, Seq: 1}

// NilStamp is the zero value for Stamp.
var NilStamp = Stamp{Actor: NilActorID, Seq: 0}

// NewActorID creates a new ActorID using UUID v7.
// It panics if the UUID cannot be created.
func NewActorID() ActorID {
	const retry = 3

	var lastErr error
	var id uuid.UUID
	for i := 0; i < retry; i++ {
		id, lastErr = uuid.NewV7()
		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		panic(lastErr)
	}

	return ActorID(id)
}

// ParseActorID parses an ActorID from its string form.
func ParseActorID(s string) (ActorID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilActorID, fmt.Errorf("invalid actor id: %w", err)
	}
	return ActorID(u), nil
}

// String returns the string representation of the ActorID.
func (a ActorID) String() string {
	return uuid.UUID(a).String()
}

// Compare compares two ActorIDs lexicographically.
// Returns:
//
//	-1 if a < other
//	 0 if a == other
//	 1 if a > other
func (a ActorID) Compare(other ActorID) int {
	for i := 0; i < len(uuid.UUID(a)); i++ {
		if uuid.UUID(a)[i] < uuid.UUID(other)[i] {
			return -1
		}
		if uuid.UUID(a)[i] > uuid.UUID(other)[i] {
			return 1
		}
	}
	return 0
}

// MarshalText implements the encoding.TextMarshaler interface.
func (a ActorID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(a).String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (a *ActorID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return fmt.Errorf("invalid actor id format: %w", err)
	}
	*a = ActorID(u)
	return nil
}

// Stamp is a globally unique, partially ordered identifier. Every CRDT node
// and every operation carries one, giving nodes stable identity across merges.
type Stamp struct {
	Actor ActorID `json:"actor"`
	Seq   uint64  `json:"seq"`
}

// Compare compares two stamps: first by sequence number, breaking ties by
// actor. Sequence numbers are Lamport times, so a stamp produced after
// observing another always compares greater and causally-later writes win.
// Returns:
//
//	-1 if s < other
//	 0 if s == other
//	 1 if s > other
func (s Stamp) Compare(other Stamp) int {
	if s.Seq < other.Seq {
		return -1
	}
	if s.Seq > other.Seq {
		return 1
	}
	return s.Actor.Compare(other.Actor)
}

// IsNil reports whether the stamp is the zero stamp.
func (s Stamp) IsNil() bool {
	return s.Compare(NilStamp) == 0
}

// Next returns the stamp that follows s in the local sequence.
func (s Stamp) Next() Stamp {
	return Stamp{Actor: s.Actor, Seq: s.Seq + 1}
}

// Advance returns s advanced by n sequence steps.
func (s Stamp) Advance(n uint64) Stamp {
	return Stamp{Actor: s.Actor, Seq: s.Seq + n}
}

// String returns a string representation of the stamp.
func (s Stamp) String() string {
	data, _ := json.Marshal(s)
	return string(data)
}

// NodeKind represents the kind of a CRDT node.
type NodeKind string

const (
	// NodeKindCon represents a constant scalar value.
	NodeKindCon NodeKind = "con"
	// NodeKindVal represents a LWW register.
	NodeKindVal NodeKind = "val"
	// NodeKindObj represents a LWW object.
	NodeKindObj NodeKind = "obj"
	// NodeKindArr represents an RGA array.
	NodeKindArr NodeKind = "arr"
	// NodeKindStr represents an RGA string.
	NodeKindStr NodeKind = "str"
	// NodeKindRoot represents the root node of a document.
	NodeKindRoot NodeKind = "root"
)

// OpKind represents the kind of a patch operation.
type OpKind string

const (
	// OpKindNew creates a new CRDT node.
	OpKindNew OpKind = "new"
	// OpKindIns writes into an existing CRDT node.
	OpKindIns OpKind = "ins"
	// OpKindDel deletes contents from an existing CRDT node.
	OpKindDel OpKind = "del"
	// OpKindNop is a no-op operation.
	OpKindNop OpKind = "nop"
)
