// Package events defines the typed change notifications fired while maps are
// created, edited, locked and closed, and the bus that fans them out to
// observers.
package events

import (
	"time"

	"github.com/npratt/mapedit/internal/mapmodel"
)

// EventType identifies the category and nature of an event.
type EventType string

const (
	// Map lifecycle and document state
	EventMapCreated      EventType = "map.created"
	EventMapClosed       EventType = "map.closed"
	EventRootReplaced    EventType = "map.root_replaced"
	EventSavedChanged    EventType = "map.saved_changed"
	EventReadOnlyChanged EventType = "map.read_only_changed"
	EventFileChanged     EventType = "map.file_changed"

	// Tree structure
	EventNodeInserted  EventType = "node.inserted"
	EventNodePreDelete EventType = "node.pre_delete"
	EventNodeDeleted   EventType = "node.deleted"
	EventNodeMoved     EventType = "node.moved"
	EventNodeChanged   EventType = "node.changed"
	EventNodeFolded    EventType = "node.folded"

	// Undo history
	EventUndoStateChanged EventType = "undo.state_changed"

	// Locking
	EventLockAcquired   EventType = "lock.acquired"
	EventLockDenied     EventType = "lock.denied"
	EventLockFailed     EventType = "lock.failed"
	EventOldLockRemoved EventType = "lock.old_lock_removed"
)

// Source constants identify the origin of events.
const (
	SourceController = "controller"
	SourceLoader     = "loader"
	SourceLock       = "lock"
)

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	Time      time.Time `json:"timestamp"`
	Src       string    `json:"source"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// NewEvent creates a BaseEvent with the given type and source.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// MapRef points an event at the map it concerns. Only the title is journaled.
type MapRef struct {
	Map   *mapmodel.Map `json:"-"`
	Title string        `json:"map"`
}

// RefOf builds a MapRef for m.
func RefOf(m *mapmodel.Map) MapRef {
	if m == nil {
		return MapRef{}
	}
	return MapRef{Map: m, Title: m.Title()}
}

// NodeRef points an event at a node. Only the ID is journaled.
type NodeRef struct {
	Node *mapmodel.Node `json:"-"`
	ID   string         `json:"id"`
}

// RefNode builds a NodeRef for n.
func RefNode(n *mapmodel.Node) NodeRef {
	if n == nil {
		return NodeRef{}
	}
	return NodeRef{Node: n, ID: n.ID()}
}

// MapCreatedEvent is emitted when a new map model exists.
type MapCreatedEvent struct {
	BaseEvent
	MapRef
}

// MapClosedEvent is emitted after a map was closed.
type MapClosedEvent struct {
	BaseEvent
	MapRef
}

// RootReplacedEvent is emitted when a load swaps the whole tree.
type RootReplacedEvent struct {
	BaseEvent
	MapRef
	OldRoot NodeRef `json:"old_root"`
	NewRoot NodeRef `json:"new_root"`
}

// SavedChangedEvent is emitted when the saved flag flips.
type SavedChangedEvent struct {
	BaseEvent
	MapRef
	Old bool `json:"old"`
	New bool `json:"new"`
}

// ReadOnlyChangedEvent is emitted when the read-only flag flips.
type ReadOnlyChangedEvent struct {
	BaseEvent
	MapRef
	Old bool `json:"old"`
	New bool `json:"new"`
}

// FileChangedEvent is emitted when the map gets a new file path.
type FileChangedEvent struct {
	BaseEvent
	MapRef
	Old string `json:"old"`
	New string `json:"new"`
}

// NodeInsertedEvent is emitted after a node was attached to parent at Index.
type NodeInsertedEvent struct {
	BaseEvent
	MapRef
	Parent NodeRef `json:"parent"`
	Child  NodeRef `json:"child"`
	Index  int     `json:"index"`
}

// NodePreDeleteEvent is emitted while the node is still attached at Index.
type NodePreDeleteEvent struct {
	BaseEvent
	MapRef
	Parent NodeRef `json:"parent"`
	Child  NodeRef `json:"child"`
	Index  int     `json:"index"`
}

// NodeDeletedEvent is emitted after the node was detached from Index.
type NodeDeletedEvent struct {
	BaseEvent
	MapRef
	Parent NodeRef `json:"parent"`
	Child  NodeRef `json:"child"`
	Index  int     `json:"index"`
}

// NodeMovedEvent carries both the old and the new location of a node.
type NodeMovedEvent struct {
	BaseEvent
	MapRef
	OldParent NodeRef `json:"old_parent"`
	OldIndex  int     `json:"old_index"`
	NewParent NodeRef `json:"new_parent"`
	NewIndex  int     `json:"new_index"`
	Child     NodeRef `json:"child"`
	WasLeft   bool    `json:"was_left"`
	IsLeft    bool    `json:"is_left"`
}

// NodeProperty names the node attribute a NodeChangedEvent refers to.
type NodeProperty string

const (
	PropertyText   NodeProperty = "text"
	PropertyFolded NodeProperty = "folded"
)

// NodeChangedEvent is emitted when node content that is persisted changed.
type NodeChangedEvent struct {
	BaseEvent
	MapRef
	Node     NodeRef      `json:"node"`
	Property NodeProperty `json:"property"`
	Old      string       `json:"old,omitempty"`
	New      string       `json:"new,omitempty"`
}

// NodeFoldedEvent is emitted for every fold state change.
type NodeFoldedEvent struct {
	BaseEvent
	MapRef
	Node   NodeRef `json:"node"`
	Folded bool    `json:"folded"`
}

// UndoStateChangedEvent is emitted whenever the undo history moved.
type UndoStateChangedEvent struct {
	BaseEvent
	MapRef
	CanUndo bool   `json:"can_undo"`
	CanRedo bool   `json:"can_redo"`
	Undo    string `json:"undo,omitempty"`
	Redo    string `json:"redo,omitempty"`
}

// LockAcquiredEvent is emitted when the map's file was locked by this editor.
type LockAcquiredEvent struct {
	BaseEvent
	MapRef
	Path string `json:"path"`
}

// LockDeniedEvent is emitted when another editor holds the file.
type LockDeniedEvent struct {
	BaseEvent
	MapRef
	Path   string `json:"path"`
	Holder string `json:"holder"`
}

// LockFailedEvent is emitted when locking failed for reasons other than contention.
type LockFailedEvent struct {
	BaseEvent
	MapRef
	Path  string `json:"path"`
	Error string `json:"error"`
}

// OldLockRemovedEvent is emitted once per stale lock cleared on open.
type OldLockRemovedEvent struct {
	BaseEvent
	MapRef
	Path   string `json:"path"`
	Holder string `json:"holder"`
}
