package mapmodel

import (
	"path/filepath"

	"github.com/npratt/mapedit/internal/lock"
	"github.com/npratt/mapedit/internal/undo"
)

// UntitledTitle is the title of a map that has never been saved.
const UntitledTitle = "Untitled"

// Map owns exactly one root node together with the document state around it.
type Map struct {
	root     *Node
	saved    bool
	file     string
	readOnly bool
	locks    *lock.Manager
	log      *undo.Log
}

// NewMap creates a map around root. A nil root gets an empty node.
// A fresh map counts as saved until its first modification.
func NewMap(root *Node, locks *lock.Manager, undoLevels int) *Map {
	m := &Map{
		saved: true,
		locks: locks,
		log:   undo.NewLog(undoLevels),
	}
	if root == nil {
		root = NewNode("")
	}
	m.SetRoot(root)
	return m
}

// Root returns the root node.
func (m *Map) Root() *Node { return m.root }

// SetRoot replaces the whole tree. The undo history refers to the old tree
// and is dropped.
func (m *Map) SetRoot(root *Node) {
	root.parent = nil
	root.setOwner(m)
	m.root = root
	m.log.Clear()
}

// FindNode returns the node with the given ID, or nil.
func (m *Map) FindNode(id string) *Node {
	return m.root.Find(id)
}

// NodeCount returns the number of nodes in the tree.
func (m *Map) NodeCount() int {
	count := 0
	m.root.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}

func (m *Map) IsSaved() bool             { return m.saved }
func (m *Map) SetSaved(saved bool)       { m.saved = saved }
func (m *Map) File() string              { return m.file }
func (m *Map) SetFile(path string)       { m.file = path }
func (m *Map) IsReadOnly() bool          { return m.readOnly }
func (m *Map) SetReadOnly(readOnly bool) { m.readOnly = readOnly }
func (m *Map) LockManager() *lock.Manager {
	return m.locks
}

// UndoLog returns the map's undo/redo history.
func (m *Map) UndoLog() *undo.Log { return m.log }

// Title returns the file's base name, or UntitledTitle.
func (m *Map) Title() string {
	if m.file == "" {
		return UntitledTitle
	}
	return filepath.Base(m.file)
}
