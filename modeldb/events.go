package modeldb

// Origin classifies who authored a change. It is threaded explicitly through
// the mutation and apply call chains rather than inferred from reentrancy
// state, so batched mutations cannot be misclassified.
type Origin int

const (
	// OriginLocal marks a change authored by this replica.
	OriginLocal Origin = iota
	// OriginRemote marks a change received from another replica.
	OriginRemote
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// ValueChange describes a change to a Value primitive.
type ValueChange struct {
	Origin Origin
	Old    interface{}
	New    interface{}
}

// TextChangeKind is the kind of a TextChange.
type TextChangeKind string

const (
	// TextInsert marks text inserted at Start.
	TextInsert TextChangeKind = "insert"
	// TextRemove marks text removed between Start and End.
	TextRemove TextChangeKind = "remove"
	// TextSet marks a whole-string replacement.
	TextSet TextChangeKind = "set"
)

// TextChange describes a change to a Text primitive.
type TextChange struct {
	Origin Origin
	Kind   TextChangeKind
	Start  int
	End    int
	Value  string
}

// ListChangeKind is the kind of a ListChange.
type ListChangeKind string

const (
	// ListAdd marks elements inserted at NewIndex.
	ListAdd ListChangeKind = "add"
	// ListRemove marks elements removed from OldIndex.
	ListRemove ListChangeKind = "remove"
	// ListSet marks elements replaced in place.
	ListSet ListChangeKind = "set"
	// ListMove marks a single element relocated from OldIndex to NewIndex.
	ListMove ListChangeKind = "move"
)

// ListChange describes a change to a List primitive.
type ListChange struct {
	Origin    Origin
	Kind      ListChangeKind
	OldIndex  int
	NewIndex  int
	OldValues []interface{}
	NewValues []interface{}
}

// MapChangeKind is the kind of a MapChange.
type MapChangeKind string

const (
	// MapAdd marks a key that did not exist before.
	MapAdd MapChangeKind = "add"
	// MapUpdate marks a key whose value changed.
	MapUpdate MapChangeKind = "change"
	// MapRemove marks a deleted key.
	MapRemove MapChangeKind = "remove"
)

// MapChange describes a change to a Map primitive.
type MapChange struct {
	Origin Origin
	Kind   MapChangeKind
	Key    string
	Old    interface{}
	New    interface{}
}
