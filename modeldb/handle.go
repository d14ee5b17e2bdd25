package modeldb

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"collabdoc/common"
	"collabdoc/crdt"
	"collabdoc/crdtpatch"
)

// State is the lifecycle state of a DocHandle.
type State int32

const (
	// StateUninitialized means no channel has been attached yet.
	StateUninitialized State = iota
	// StateAwaitingFirstSync means a channel is attached but the first
	// inbound batch has not arrived.
	StateAwaitingFirstSync
	// StateReady means the replica has a causally consistent base to
	// mutate from.
	StateReady
)

// Sender carries outgoing operation frames toward the relay.
type Sender interface {
	Send(frame []byte) error
}

// remoteObserver is a primitive registered for remote change translation.
// capture runs with the document lock held and must not re-lock.
type remoteObserver interface {
	observerPath() Path
	capture() (interface{}, bool)
	applyRemote(before, after interface{})
}

type pendingMutation struct {
	desc string
	fn   func(*Mutation) error
}

// DocHandle owns the shared document: the current snapshot, the local actor
// identity, and the classification of every mutation as local or remote.
// All writes funnel through its gated mutation entry points; no other
// component holds a mutable reference to the document.
type DocHandle struct {
	actor  common.ActorID
	logger *zap.Logger

	// docMu guards doc, builder, state and the pending queues. It is never
	// held while change callbacks run.
	docMu   sync.RWMutex
	doc     *crdt.Doc
	builder *crdtpatch.Builder
	state   State

	// sectionMu serializes mutation sections across goroutines; the gate
	// diverts reentrant sections started from inside change callbacks.
	sectionMu sync.Mutex
	gate      reentrancyGate

	readyCh      chan struct{}
	pendingLocal []pendingMutation
	deferredInit []func()

	deferredMu sync.Mutex
	deferred   []func()

	sender Sender
	outbox [][]byte

	observers []remoteObserver

	// onRemoteApplied runs after every successfully applied remote frame;
	// the collaborator registry hangs off this hook.
	onRemoteApplied func()
}

// NewDocHandle creates a handle with a fresh actor identity.
func NewDocHandle(logger *zap.Logger) *DocHandle {
	return NewDocHandleForActor(common.NewActorID(), logger)
}

// NewDocHandleForActor creates a handle bound to a given actor identity.
// Useful when the identity is issued elsewhere, such as by a session broker.
func NewDocHandleForActor(actor common.ActorID, logger *zap.Logger) *DocHandle {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc := crdt.NewDoc(actor)
	return &DocHandle{
		actor:   actor,
		logger:  logger,
		doc:     doc,
		builder: crdtpatch.NewBuilder(doc),
		state:   StateUninitialized,
		readyCh: make(chan struct{}),
	}
}

// Actor returns the local actor identity.
func (h *DocHandle) Actor() common.ActorID {
	return h.actor
}

// State returns the current lifecycle state.
func (h *DocHandle) State() State {
	h.docMu.RLock()
	defer h.docMu.RUnlock()
	return h.state
}

// Ready reports whether the first synchronization handshake has completed.
func (h *DocHandle) Ready() bool {
	return h.State() == StateReady
}

// ReadyChan returns a channel closed when the handle becomes ready.
func (h *DocHandle) ReadyChan() <-chan struct{} {
	return h.readyCh
}

// WaitUntilReady blocks until the handle is ready or the context ends,
// in which case it reports the replica as not connected.
func (h *DocHandle) WaitUntilReady(ctx context.Context) error {
	select {
	case <-h.readyCh:
		return nil
	case <-ctx.Done():
		return errors.Wrap(common.ErrNotConnected, ctx.Err().Error())
	}
}

// Connect attaches the outgoing side of a replication channel and flushes
// any batches authored before a sender existed.
func (h *DocHandle) Connect(sender Sender) {
	h.docMu.Lock()
	h.sender = sender
	if h.state == StateUninitialized {
		h.state = StateAwaitingFirstSync
	}
	outbox := h.outbox
	h.outbox = nil
	h.docMu.Unlock()

	for _, frame := range outbox {
		h.send(frame)
	}
}

// read runs fn with shared read access to the document.
func (h *DocHandle) read(fn func(doc *crdt.Doc)) {
	h.docMu.RLock()
	defer h.docMu.RUnlock()
	fn(h.doc)
}

// addObserver registers a primitive for remote change translation.
func (h *DocHandle) addObserver(obs remoteObserver) {
	h.docMu.Lock()
	defer h.docMu.Unlock()
	h.observers = append(h.observers, obs)
}

// removeObserver detaches a primitive from remote change translation.
func (h *DocHandle) removeObserver(obs remoteObserver) {
	h.docMu.Lock()
	defer h.docMu.Unlock()
	for i, o := range h.observers {
		if o == obs {
			h.observers = append(h.observers[:i], h.observers[i+1:]...)
			return
		}
	}
}

// whenReady runs fn now if the handle is ready, or defers it until the
// ready transition. Deferred functions run before queued mutations.
func (h *DocHandle) whenReady(fn func()) {
	h.docMu.Lock()
	if h.state != StateReady {
		h.deferredInit = append(h.deferredInit, fn)
		h.docMu.Unlock()
		return
	}
	h.docMu.Unlock()
	fn()
}

// ApplyLocal runs one local mutation section. Mutations issued before the
// first sync are queued and replayed in order on the ready transition,
// never dropped (and never applied early). A mutation issued while another
// section is in flight is deferred until that section completes.
func (h *DocHandle) ApplyLocal(desc string, fn func(*Mutation) error) error {
	h.docMu.Lock()
	if h.state != StateReady {
		h.pendingLocal = append(h.pendingLocal, pendingMutation{desc: desc, fn: fn})
		h.docMu.Unlock()
		h.logger.Debug("queued mutation before first sync", zap.String("mutation", desc))
		return nil
	}
	h.docMu.Unlock()

	if h.gate.Busy() {
		h.deferMutation(desc, fn)
		return nil
	}

	h.sectionMu.Lock()
	err := h.gate.Run(
		func() error { return h.localSection(desc, fn) },
		func() { h.deferMutation(desc, fn) },
	)
	h.sectionMu.Unlock()

	h.drainDeferred()
	return err
}

// localSection mutates the document, flushes the resulting operation batch
// toward the relay, and delivers the mutation's change events. Events are
// delivered on the caller's stack but outside the document lock, so change
// callbacks may read freely and further mutations they issue are diverted
// by the gate.
func (h *DocHandle) localSection(desc string, fn func(*Mutation) error) error {
	m := &Mutation{handle: h}

	h.docMu.Lock()
	m.builder = h.builder
	mutErr := fn(m)
	patch := h.builder.Flush()
	h.docMu.Unlock()

	if patch != nil {
		frame, err := crdtpatch.EncodeFrame([]*crdtpatch.Patch{patch})
		if err != nil {
			h.logger.Error("failed to encode outgoing batch",
				zap.String("mutation", desc), zap.Error(err))
		} else {
			h.send(frame)
		}
	}

	for _, deliver := range m.events {
		deliver()
	}

	if mutErr != nil {
		return errors.Wrapf(mutErr, "mutation %q failed", desc)
	}
	return nil
}

// ApplyRemote merges one inbound frame. Patches inside a frame are applied
// in production order; a frame that cannot be decoded or merged is fatal to
// this channel and the error must stop further batches from it. The first
// frame, even an empty bootstrap, flips the handle to ready.
func (h *DocHandle) ApplyRemote(frame []byte) error {
	patches, err := crdtpatch.DecodeFrame(frame)
	if err != nil {
		h.logger.Error("rejecting corrupt inbound batch", zap.Error(err))
		return err
	}

	if h.gate.Busy() {
		// Arrived from inside a change callback; run after the in-flight
		// section so snapshots never interleave.
		h.enqueueDeferred(func() { _ = h.ApplyRemote(frame) })
		return nil
	}

	h.sectionMu.Lock()
	err = h.gate.Run(func() error { return h.remoteSection(patches) }, nil)
	h.sectionMu.Unlock()

	h.drainDeferred()
	h.flushPendingReady()

	if err == nil && h.onRemoteApplied != nil {
		h.onRemoteApplied()
	}
	return err
}

// remoteSection merges patches into the snapshot and translates the diff
// into per-primitive events tagged OriginRemote.
func (h *DocHandle) remoteSection(patches []*crdtpatch.Patch) error {
	type observation struct {
		obs    remoteObserver
		before interface{}
		live   bool
	}

	h.docMu.Lock()

	states := make([]observation, len(h.observers))
	for i, obs := range h.observers {
		before, live := obs.capture()
		states[i] = observation{obs: obs, before: before, live: live}
	}

	for _, p := range patches {
		if err := p.Apply(h.doc); err != nil {
			h.docMu.Unlock()
			return common.ErrCorruptBatch{Reason: "failed to merge patch", Cause: err}
		}
	}

	afters := make([]interface{}, len(states))
	for i, st := range states {
		if !st.live {
			continue
		}
		after, live := st.obs.capture()
		if live {
			afters[i] = after
		} else {
			states[i].live = false
		}
	}

	if h.state != StateReady {
		h.state = StateReady
		close(h.readyCh)
	}
	h.docMu.Unlock()

	for i, st := range states {
		if st.live {
			st.obs.applyRemote(st.before, afters[i])
		}
	}
	return nil
}

// flushPendingReady replays deferred primitive inits and queued mutations
// after the ready transition, in the order they were issued.
func (h *DocHandle) flushPendingReady() {
	h.docMu.Lock()
	if h.state != StateReady {
		h.docMu.Unlock()
		return
	}
	inits := h.deferredInit
	h.deferredInit = nil
	muts := h.pendingLocal
	h.pendingLocal = nil
	h.docMu.Unlock()

	for _, fn := range inits {
		fn()
	}
	for _, pm := range muts {
		if err := h.ApplyLocal(pm.desc, pm.fn); err != nil {
			h.logger.Error("deferred mutation failed",
				zap.String("mutation", pm.desc), zap.Error(err))
		}
	}
}

// Rebind runs fn as a section that only updates in-memory bindings, never
// the document, so it runs regardless of readiness. Composites use it to
// re-path themselves and their children atomically with respect to readers
// and other sections.
func (h *DocHandle) Rebind(fn func()) {
	enqueue := func() { h.enqueueDeferred(fn) }
	if h.gate.Busy() {
		enqueue()
		return
	}
	h.sectionMu.Lock()
	_ = h.gate.Run(func() error { fn(); return nil }, enqueue)
	h.sectionMu.Unlock()
	h.drainDeferred()
}

// deferMutation queues a mutation diverted by the gate.
func (h *DocHandle) deferMutation(desc string, fn func(*Mutation) error) {
	h.enqueueDeferred(func() {
		if err := h.ApplyLocal(desc, fn); err != nil {
			h.logger.Error("deferred mutation failed",
				zap.String("mutation", desc), zap.Error(err))
		}
	})
}

// enqueueDeferred queues work for after the in-flight section. If the
// section finished while we were queueing, drain immediately so the work is
// never stranded waiting for a section that already ended.
func (h *DocHandle) enqueueDeferred(fn func()) {
	h.deferredMu.Lock()
	h.deferred = append(h.deferred, fn)
	h.deferredMu.Unlock()

	if !h.gate.Busy() {
		h.drainDeferred()
	}
}

// drainDeferred runs sections that were diverted while the gate was busy.
func (h *DocHandle) drainDeferred() {
	for {
		h.deferredMu.Lock()
		if len(h.deferred) == 0 {
			h.deferredMu.Unlock()
			return
		}
		next := h.deferred[0]
		h.deferred = h.deferred[1:]
		h.deferredMu.Unlock()
		next()
	}
}

// send hands a frame to the attached sender, holding it in the outbox when
// no sender is attached or the send fails. A locally authored batch is
// never dropped.
func (h *DocHandle) send(frame []byte) {
	h.docMu.Lock()
	sender := h.sender
	if sender == nil {
		h.outbox = append(h.outbox, frame)
		h.docMu.Unlock()
		return
	}
	h.docMu.Unlock()

	if err := sender.Send(frame); err != nil {
		h.logger.Warn("holding batch after send failure", zap.Error(err))
		h.docMu.Lock()
		h.outbox = append(h.outbox, frame)
		h.docMu.Unlock()
	}
}

// Mutation is the view of the document given to a local mutation function.
// Change events queued on it are delivered once the document lock is
// released, still on the mutating call stack.
type Mutation struct {
	handle  *DocHandle
	builder *crdtpatch.Builder
	events  []func()
}

// Builder returns the operation builder for this mutation.
func (m *Mutation) Builder() *crdtpatch.Builder {
	return m.builder
}

// Doc returns the document being mutated.
func (m *Mutation) Doc() *crdt.Doc {
	return m.builder.Doc()
}

// emit queues a change event for delivery at the end of the section.
func (m *Mutation) emit(deliver func()) {
	m.events = append(m.events, deliver)
}
