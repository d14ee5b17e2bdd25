package modeldb

import (
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"collabdoc/common"
	"collabdoc/crdt"
)

// usersSegment is the reserved document region holding collaborator
// presence entries, keyed by actor.
const usersSegment = "users"

// anonymousName is shown for collaborators that published no display name.
const anonymousName = "Anonymous"

// collaboratorPalette assigns each collaborator a stable color derived from
// their actor identity.
var collaboratorPalette = []string{
	"#F44336", "#E91E63", "#9C27B0", "#673AB7", "#3F51B5",
	"#2196F3", "#00BCD4", "#009688", "#4CAF50", "#FF9800",
}

// Collaborator describes one replica participating in the document.
type Collaborator struct {
	UserID      string `json:"userId"`
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	ShortName   string `json:"shortName"`
	Color       string `json:"color"`
}

// CollaboratorRegistry tracks the replicas seen on this document. The
// registry is add-only: a collaborator that disconnects stays listed for
// the session's lifetime.
type CollaboratorRegistry struct {
	handle *DocHandle
	local  Collaborator

	mu        sync.Mutex
	entries   map[string]Collaborator
	callbacks []func(Collaborator)
}

func newCollaboratorRegistry(handle *DocHandle, displayName string) *CollaboratorRegistry {
	id := handle.Actor().String()
	if displayName == "" {
		displayName = anonymousName
	}
	local := Collaborator{
		UserID:      id,
		SessionID:   common.NewActorID().String(),
		DisplayName: displayName,
		ShortName:   shortNameFor(displayName),
		Color:       colorFor(id),
	}
	r := &CollaboratorRegistry{
		handle:  handle,
		local:   local,
		entries: map[string]Collaborator{id: local},
	}
	handle.whenReady(r.publishLocal)
	return r
}

// Local returns this replica's collaborator entry.
func (r *CollaboratorRegistry) Local() Collaborator {
	return r.local
}

// Collaborators returns a copy of all known collaborators keyed by user id.
func (r *CollaboratorRegistry) Collaborators() map[string]Collaborator {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Collaborator, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// OnJoin registers a callback invoked once per newly seen collaborator.
func (r *CollaboratorRegistry) OnJoin(cb func(Collaborator)) {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, cb)
	r.mu.Unlock()
}

// publishLocal writes this replica's presence entry into the reserved
// users region.
func (r *CollaboratorRegistry) publishLocal() {
	_ = r.handle.ApplyLocal("publish collaborator", func(m *Mutation) error {
		node, err := ensureShape(m.Builder(), NewPath(usersSegment), common.NodeKindObj)
		if err != nil {
			return err
		}
		obj := node.(*crdt.ObjectNode)
		if obj.Has(r.local.UserID) {
			return nil
		}
		entry := map[string]interface{}{
			"sessionId":   r.local.SessionID,
			"displayName": r.local.DisplayName,
		}
		return m.Builder().SetKey(obj.Stamp(), r.local.UserID, entry)
	})
}

// refresh scans the users region after a remote apply and synthesizes
// entries for newly seen actors.
func (r *CollaboratorRegistry) refresh() {
	type seen struct {
		id          string
		displayName string
		sessionID   string
	}
	var found []seen

	r.handle.read(func(doc *crdt.Doc) {
		obj, ok := resolveNode(doc, NewPath(usersSegment)).(*crdt.ObjectNode)
		if !ok {
			return
		}
		for _, id := range obj.Keys() {
			s := seen{id: id, displayName: anonymousName}
			if entry, ok := obj.Get(id).Value().(map[string]interface{}); ok {
				if name, ok := entry["displayName"].(string); ok && name != "" {
					s.displayName = name
				}
				if sid, ok := entry["sessionId"].(string); ok {
					s.sessionID = sid
				}
			}
			found = append(found, s)
		}
	})

	var joined []Collaborator
	r.mu.Lock()
	for _, s := range found {
		if _, ok := r.entries[s.id]; ok {
			continue
		}
		c := Collaborator{
			UserID:      s.id,
			SessionID:   s.sessionID,
			DisplayName: s.displayName,
			ShortName:   shortNameFor(s.displayName),
			Color:       colorFor(s.id),
		}
		r.entries[s.id] = c
		joined = append(joined, c)
	}
	cbs := make([]func(Collaborator), len(r.callbacks))
	copy(cbs, r.callbacks)
	r.mu.Unlock()

	for _, c := range joined {
		for _, cb := range cbs {
			cb(c)
		}
	}
}

// colorFor derives a stable palette color from an actor identity.
func colorFor(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return collaboratorPalette[int(h.Sum32())%len(collaboratorPalette)]
}

// shortNameFor derives initials from a display name.
func shortNameFor(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "?"
	}
	var b strings.Builder
	for i, p := range parts {
		if i >= 2 {
			break
		}
		r, _ := utf8.DecodeRuneInString(p)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
