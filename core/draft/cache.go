package draft

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/record"
)

var (
	// errors
	ErrScopeNotActive = errors.New("scope is not the active selection")
	ErrNoScope        = errors.New("scope has never been selected")
)

type (
	// ScopeKey partitions transient draft state by selection context.
	ScopeKey struct {
		ClassID int
		Gender  string
	}

	// Cache holds, per scope, the unsaved draft buffer and the last-known
	// overlay snapshots. Edits targeting one scope never become visible under
	// another, and a background poll touching an inactive scope updates that
	// scope's snapshot without disturbing the active one's draft.
	//
	// All mutations are single-lock atomic steps: the user-input path and the
	// poll path interleave but never observe a half-applied update.
	Cache struct {
		mu        sync.Mutex
		scopes    map[ScopeKey]*scopeState
		active    ScopeKey
		hasActive bool
	}

	scopeState struct {
		drafts    map[string]*draftEntry        // entity id -> unsaved edits
		snapshots map[string]record.OverlayView // entity id -> last merged view
	}

	draftEntry struct {
		fields map[string]interface{}
		dirty  map[string]bool
	}
)

func (k ScopeKey) String() string {
	return fmt.Sprintf("%d-%s", k.ClassID, k.Gender)
}

func NewCache() *Cache {
	return &Cache{scopes: make(map[ScopeKey]*scopeState)}
}

// Select marks key as the active selection. The first activation of a scope
// seeds its draft buffer from the supplied overlay views; reselecting an
// existing scope restores its buffer untouched, unsaved edits included.
func (c *Cache) Select(key ScopeKey, seed ...record.OverlayView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.scopes[key]
	if !ok {
		state = &scopeState{
			drafts:    make(map[string]*draftEntry),
			snapshots: make(map[string]record.OverlayView),
		}
		c.scopes[key] = state
	}
	for _, view := range seed {
		if _, seen := state.snapshots[view.ObjectID]; !seen {
			state.snapshots[view.ObjectID] = view
		}
	}
	c.active = key
	c.hasActive = true
}

// Active returns the currently selected scope, if any.
func (c *Cache) Active() (ScopeKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.hasActive
}

// SetDraft records an unsaved edit. Only the active scope is mutable; edits
// under any other key are rejected rather than silently leaked across scopes.
func (c *Cache) SetDraft(key ScopeKey, entityID, field string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasActive || key != c.active {
		return ErrScopeNotActive
	}
	state := c.scopes[key]
	entry, ok := state.drafts[entityID]
	if !ok {
		entry = &draftEntry{
			fields: make(map[string]interface{}),
			dirty:  make(map[string]bool),
		}
		state.drafts[entityID] = entry
	}
	entry.fields[field] = value
	entry.dirty[field] = true
	return nil
}

// Draft returns the unsaved value of a field, if one exists under this scope.
func (c *Cache) Draft(key ScopeKey, entityID, field string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.scopes[key]
	if !ok {
		return nil, false
	}
	entry, ok := state.drafts[entityID]
	if !ok {
		return nil, false
	}
	val, ok := entry.fields[field]
	return val, ok
}

// DraftFields returns a copy of all unsaved edits for an entity under a scope.
func (c *Cache) DraftFields(key ScopeKey, entityID string) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.scopes[key]
	if !ok {
		return nil
	}
	entry, ok := state.drafts[entityID]
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(entry.fields))
	for k, v := range entry.fields {
		out[k] = v
	}
	return out
}

// MarkSaved clears the dirty flags of an entity's draft after its edits were
// successfully submitted; the values stay visible until a remote update
// replaces them.
func (c *Cache) MarkSaved(key ScopeKey, entityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.scopes[key]
	if !ok {
		return ErrNoScope
	}
	if entry, ok := state.drafts[entityID]; ok {
		entry.dirty = make(map[string]bool)
	}
	return nil
}

// Snapshot returns the last-known overlay view of an entity under a scope.
func (c *Cache) Snapshot(key ScopeKey, entityID string) (record.OverlayView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.scopes[key]
	if !ok {
		return record.OverlayView{}, false
	}
	view, ok := state.snapshots[entityID]
	return view, ok
}

// ApplyRemoteUpdate installs a freshly merged overlay view, called from the
// poll path. A field the scope's draft still marks dirty-and-unsaved keeps the
// draft value authoritative: the snapshot is stored, but the dirty fields'
// committed values are not allowed to clobber the in-progress edit.
func (c *Cache) ApplyRemoteUpdate(key ScopeKey, entityID string, view record.OverlayView) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.scopes[key]
	if !ok {
		return ErrNoScope
	}
	if entry, ok := state.drafts[entityID]; ok {
		for field := range entry.dirty {
			if !entry.dirty[field] {
				continue
			}
			// keep the unsaved edit; drop the remote value for this field
			if f, ok := view.Fields[field]; ok {
				f.Committed = entry.fields[field]
				view.Fields[field] = f
			}
		}
		// saved drafts are superseded by the remote state
		for field := range entry.fields {
			if !entry.dirty[field] {
				delete(entry.fields, field)
			}
		}
	}
	state.snapshots[entityID] = view
	return nil
}

// Drop forgets an entity under a scope, for records deleted upstream.
func (c *Cache) Drop(key ScopeKey, entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.scopes[key]; ok {
		delete(state.drafts, entityID)
		delete(state.snapshots, entityID)
	}
}
