package common

import (
	"errors"
	"fmt"
)

// ErrBulkInsertUnsupported is returned by bulk list mutations until the merge
// engine grows an atomic multi-value insert.
var ErrBulkInsertUnsupported = errors.New("bulk insert is not supported; insert elements one at a time")

// ErrNotConnected is returned when a readiness or socket-open wait is abandoned.
var ErrNotConnected = errors.New("replica is not connected")

// ErrStaleWrite is returned when a locally authored write loses to a newer
// write already recorded at the same slot. Local stamps exceed every
// witnessed stamp, so this signals a clock fault rather than a normal merge.
var ErrStaleWrite = errors.New("write superseded by a newer write")

// ErrNodeNotFound is returned when a node with the specified stamp is not found.
type ErrNodeNotFound struct {
	Stamp Stamp
}

func (e ErrNodeNotFound) Error() string {
	return fmt.Sprintf("node not found: %v", e.Stamp)
}

// ErrWrongShape is returned when a path resolves to a node of a kind the
// caller cannot operate on.
type ErrWrongShape struct {
	Path string
	Want NodeKind
	Got  NodeKind
}

func (e ErrWrongShape) Error() string {
	return fmt.Sprintf("node at %q has kind %s, want %s", e.Path, e.Got, e.Want)
}

// ErrInvalidArgument is returned for mutation arguments the engine rejects.
type ErrInvalidArgument struct {
	Message string
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

// ErrInvalidOpKind is returned when an unknown operation kind is decoded.
type ErrInvalidOpKind struct {
	Kind string
}

func (e ErrInvalidOpKind) Error() string {
	return fmt.Sprintf("invalid operation kind: %s", e.Kind)
}

// ErrInvalidNodeKind is returned when an unknown node kind is decoded.
type ErrInvalidNodeKind struct {
	Kind string
}

func (e ErrInvalidNodeKind) Error() string {
	return fmt.Sprintf("invalid node kind: %s", e.Kind)
}

// ErrCorruptBatch is returned when an inbound operation batch cannot be
// decoded or applied. The replica cannot reconstruct the missing causal
// dependency, so the channel that produced the batch must stop and resync.
type ErrCorruptBatch struct {
	Reason string
	Cause  error
}

func (e ErrCorruptBatch) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupt operation batch: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("corrupt operation batch: %s", e.Reason)
}

func (e ErrCorruptBatch) Unwrap() error {
	return e.Cause
}
