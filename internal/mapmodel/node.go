// Package mapmodel defines the mind-map tree: nodes with ordered children and
// a left/right side flag, and the map that owns the root node.
package mapmodel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Structural errors returned by Insert and Remove.
var (
	ErrInvalidIndex = errors.New("index out of range")
	ErrAttached     = errors.New("node already has a parent")
	ErrNotChild     = errors.New("node is not a child of this parent")
)

// NewID generates a fresh node identifier.
func NewID() string {
	return "ID_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Node is one entry of a mind map.
// The parent pointer is a back reference; children are owned by the node.
type Node struct {
	id       string
	text     string
	parent   *Node
	children []*Node
	folded   bool
	left     bool
	owner    *Map
}

// NewNode creates a detached node with a generated ID.
func NewNode(text string) *Node {
	return &Node{id: NewID(), text: text}
}

// NewNodeWithID creates a detached node with the given ID.
// An empty id gets a generated one.
func NewNodeWithID(id, text string) *Node {
	if id == "" {
		id = NewID()
	}
	return &Node{id: id, text: text}
}

func (n *Node) ID() string      { return n.id }
func (n *Node) Text() string    { return n.text }
func (n *Node) Parent() *Node   { return n.parent }
func (n *Node) IsFolded() bool  { return n.folded }
func (n *Node) IsRoot() bool    { return n.parent == nil }
func (n *Node) Map() *Map       { return n.owner }
func (n *Node) ChildCount() int { return len(n.children) }

// SetText replaces the node content.
func (n *Node) SetText(text string) { n.text = text }

// SetFolded sets the folded flag without any notification.
func (n *Node) SetFolded(folded bool) { n.folded = folded }

// SetLeft sets the side of the node relative to the root.
// Only the flag of a first-level node decides its subtree's side.
func (n *Node) SetLeft(left bool) { n.left = left }

// OwnLeft returns the node's own side flag, ignoring its ancestors.
func (n *Node) OwnLeft() bool { return n.left }

// IsLeft reports whether the node is placed left of the root. Nodes below
// the first level share the side of their first-level ancestor; detached
// nodes report their own flag.
func (n *Node) IsLeft() bool {
	cur := n
	for cur.parent != nil && cur.parent.parent != nil {
		cur = cur.parent
	}
	return cur.left
}

// HasChildren reports whether the node has at least one child.
func (n *Node) HasChildren() bool { return len(n.children) > 0 }

// Children returns a copy of the ordered child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildAt returns the child at index i, or nil when out of range.
func (n *Node) ChildAt(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// ChildPosition returns the index of child among n's children, or -1.
func (n *Node) ChildPosition(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Index returns the position of n among its siblings, or -1 for the root.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	return n.parent.ChildPosition(n)
}

// IsDescendantOf reports whether n is ancestor or lies below it.
func (n *Node) IsDescendantOf(ancestor *Node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Insert attaches child at index. The child must be detached and
// index must lie in [0, ChildCount()].
func (n *Node) Insert(child *Node, index int) error {
	if child.parent != nil {
		return fmt.Errorf("insert %s: %w", child.id, ErrAttached)
	}
	if index < 0 || index > len(n.children) {
		return fmt.Errorf("insert %s at %d of %d: %w", child.id, index, len(n.children), ErrInvalidIndex)
	}
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	child.parent = n
	child.setOwner(n.owner)
	return nil
}

// Remove detaches child and returns the index it occupied.
func (n *Node) Remove(child *Node) (int, error) {
	i := n.ChildPosition(child)
	if i < 0 {
		return -1, fmt.Errorf("remove %s from %s: %w", child.id, n.id, ErrNotChild)
	}
	n.children = append(n.children[:i], n.children[i+1:]...)
	child.parent = nil
	return i, nil
}

// Walk visits n and its descendants depth first, parents before children.
// Returning false from fn skips the subtree below the visited node.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		c.walk(fn, depth+1)
	}
}

// Find returns the node with the given ID in n's subtree, or nil.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(node *Node, _ int) bool {
		if found != nil {
			return false
		}
		if node.id == id {
			found = node
			return false
		}
		return true
	})
	return found
}

func (n *Node) setOwner(m *Map) {
	n.Walk(func(node *Node, _ int) bool {
		node.owner = m
		return true
	})
}
