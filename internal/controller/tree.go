package controller

import (
	"fmt"

	"github.com/npratt/mapedit/internal/config"
	"github.com/npratt/mapedit/internal/events"
	"github.com/npratt/mapedit/internal/mapmodel"
	"github.com/npratt/mapedit/internal/undo"
)

// Undo log descriptions.
const (
	descInsert = "insertNode"
	descDelete = "deleteNode"
	descMove   = "moveNode"
	descFold   = "toggleFolded"
	descText   = "setNodeText"
)

// attachedMap returns the map n belongs to, requiring n to be in its tree.
func attachedMap(n *mapmodel.Node) (*mapmodel.Map, error) {
	m := n.Map()
	if m == nil || (n.Parent() == nil && m.Root() != n) {
		return nil, fmt.Errorf("%s: %w", n.ID(), ErrNotAttached)
	}
	return m, nil
}

// AddNewNode creates a node with text and inserts it below parent at index.
// The side only applies to children of the root; deeper nodes take their
// parent's side.
func (c *MapController) AddNewNode(parent *mapmodel.Node, index int, isLeft bool, text string) (*mapmodel.Node, error) {
	node := mapmodel.NewNode(text)
	if !parent.IsRoot() {
		isLeft = parent.IsLeft()
	}
	node.SetLeft(isLeft)
	if err := c.InsertNode(node, parent, index); err != nil {
		return nil, err
	}
	return node, nil
}

// AppendNode inserts node as the last child of parent.
func (c *MapController) AppendNode(node, parent *mapmodel.Node) error {
	return c.InsertNode(node, parent, parent.ChildCount())
}

// InsertNode attaches a detached node below parent at index as one undoable step.
func (c *MapController) InsertNode(node, parent *mapmodel.Node, index int) error {
	m, err := c.checkInsert(node, parent, index)
	if err != nil {
		return err
	}

	return m.UndoLog().Execute(undo.Func{
		Desc:   descInsert,
		ActFn:  func() error { return c.InsertNodeWithoutUndo(node, parent, index) },
		UndoFn: func() error { return c.DeleteWithoutUndo(node) },
	})
}

// InsertNodeRelative inserts node as the last child of target, or as the
// sibling directly before target when asSibling is set. With changeSide the
// node is placed on the isLeft side first.
func (c *MapController) InsertNodeRelative(node, target *mapmodel.Node, asSibling, isLeft, changeSide bool) error {
	parent := target
	index := target.ChildCount()
	if asSibling {
		if target.Parent() == nil {
			return fmt.Errorf("insert beside %s: %w", target.ID(), ErrRoot)
		}
		parent = target.Parent()
		index = target.Index()
	}

	m, err := c.checkInsert(node, parent, index)
	if err != nil {
		return err
	}

	wasLeft := node.OwnLeft()
	return m.UndoLog().Execute(undo.Func{
		Desc: descInsert,
		ActFn: func() error {
			if changeSide {
				node.SetLeft(isLeft)
			}
			return c.InsertNodeWithoutUndo(node, parent, index)
		},
		UndoFn: func() error {
			if err := c.DeleteWithoutUndo(node); err != nil {
				return err
			}
			node.SetLeft(wasLeft)
			return nil
		},
	})
}

func (c *MapController) checkInsert(node, parent *mapmodel.Node, index int) (*mapmodel.Map, error) {
	m, err := attachedMap(parent)
	if err != nil {
		return nil, err
	}
	if err := c.checkEditable(m); err != nil {
		return nil, err
	}
	if node.Parent() != nil || node == m.Root() {
		return nil, fmt.Errorf("insert %s: %w", node.ID(), mapmodel.ErrAttached)
	}
	if parent.IsDescendantOf(node) {
		return nil, fmt.Errorf("insert %s below %s: %w", node.ID(), parent.ID(), ErrCycle)
	}
	if index < 0 || index > parent.ChildCount() {
		return nil, fmt.Errorf("insert %s at %d of %d: %w", node.ID(), index, parent.ChildCount(), ErrInvalidIndex)
	}
	return m, nil
}

// InsertNodeWithoutUndo attaches node, marks the map unsaved and emits
// NodeInserted. Nothing is recorded in the undo log.
func (c *MapController) InsertNodeWithoutUndo(node, parent *mapmodel.Node, index int) error {
	if err := parent.Insert(node, index); err != nil {
		return err
	}
	m := parent.Map()
	c.SetSaved(m, false)
	c.emit(&events.NodeInsertedEvent{
		BaseEvent: events.NewEvent(events.EventNodeInserted, events.SourceController),
		MapRef:    events.RefOf(m),
		Parent:    events.RefNode(parent),
		Child:     events.RefNode(node),
		Index:     index,
	})
	return nil
}

// DeleteNode detaches node with its subtree as one undoable step.
// Undo reinserts it at its former position.
func (c *MapController) DeleteNode(node *mapmodel.Node) error {
	m, err := attachedMap(node)
	if err != nil {
		return err
	}
	if err := c.checkEditable(m); err != nil {
		return err
	}
	parent := node.Parent()
	if parent == nil {
		return fmt.Errorf("delete %s: %w", node.ID(), ErrRoot)
	}
	index := node.Index()

	return m.UndoLog().Execute(undo.Func{
		Desc:   descDelete,
		ActFn:  func() error { return c.DeleteWithoutUndo(node) },
		UndoFn: func() error { return c.InsertNodeWithoutUndo(node, parent, index) },
	})
}

// DeleteWithoutUndo emits NodePreDelete while node is still attached,
// detaches it, marks the map unsaved and emits NodeDeleted.
func (c *MapController) DeleteWithoutUndo(node *mapmodel.Node) error {
	parent := node.Parent()
	if parent == nil {
		return fmt.Errorf("delete %s: %w", node.ID(), ErrRoot)
	}
	m := parent.Map()
	index := node.Index()

	c.emit(&events.NodePreDeleteEvent{
		BaseEvent: events.NewEvent(events.EventNodePreDelete, events.SourceController),
		MapRef:    events.RefOf(m),
		Parent:    events.RefNode(parent),
		Child:     events.RefNode(node),
		Index:     index,
	})
	c.SetSaved(m, false)
	if _, err := parent.Remove(node); err != nil {
		return err
	}
	c.emit(&events.NodeDeletedEvent{
		BaseEvent: events.NewEvent(events.EventNodeDeleted, events.SourceController),
		MapRef:    events.RefOf(m),
		Parent:    events.RefNode(parent),
		Child:     events.RefNode(node),
		Index:     index,
	})
	return nil
}

// MoveNode moves child below newParent at newIndex, counted after child was
// detached. With changeSide the child is also placed on the isLeft side.
// Moving a node to where it already is without changing sides records
// nothing and emits nothing.
func (c *MapController) MoveNode(child, newParent *mapmodel.Node, newIndex int, isLeft, changeSide bool) error {
	m, err := attachedMap(child)
	if err != nil {
		return err
	}
	if err := c.checkEditable(m); err != nil {
		return err
	}
	oldParent := child.Parent()
	if oldParent == nil {
		return fmt.Errorf("move %s: %w", child.ID(), ErrRoot)
	}
	if target, err := attachedMap(newParent); err != nil || target != m {
		return fmt.Errorf("move %s to %s: %w", child.ID(), newParent.ID(), ErrNotAttached)
	}
	if newParent.IsDescendantOf(child) {
		return fmt.Errorf("move %s below %s: %w", child.ID(), newParent.ID(), ErrCycle)
	}

	oldIndex := child.Index()
	wasLeft := child.OwnLeft()
	if oldParent == newParent && oldIndex == newIndex && !changeSide {
		return nil
	}

	limit := newParent.ChildCount()
	if newParent == oldParent {
		limit--
	}
	if newIndex < 0 || newIndex > limit {
		return fmt.Errorf("move %s to %d of %d: %w", child.ID(), newIndex, limit, ErrInvalidIndex)
	}

	return m.UndoLog().Execute(undo.Func{
		Desc: descMove,
		ActFn: func() error {
			return c.moveNodeToWithoutUndo(child, newParent, newIndex, isLeft, changeSide)
		},
		UndoFn: func() error {
			return c.moveNodeToWithoutUndo(child, oldParent, oldIndex, wasLeft, changeSide)
		},
	})
}

// MoveNodeAsChild moves node to the end of parent's children.
func (c *MapController) MoveNodeAsChild(node, parent *mapmodel.Node, isLeft, changeSide bool) error {
	position := parent.ChildCount()
	if node.Parent() == parent {
		position--
	}
	return c.MoveNode(node, parent, position, isLeft, changeSide)
}

// MoveNodeBefore moves node to the position target occupies.
func (c *MapController) MoveNodeBefore(node, target *mapmodel.Node, isLeft, changeSide bool) error {
	parent := target.Parent()
	if parent == nil {
		return fmt.Errorf("move before %s: %w", target.ID(), ErrRoot)
	}
	return c.MoveNode(node, parent, target.Index(), isLeft, changeSide)
}

// MoveNodeRelative moves node before target when asSibling is set and below
// it otherwise.
func (c *MapController) MoveNodeRelative(node, target *mapmodel.Node, asSibling, isLeft, changeSide bool) error {
	if asSibling {
		return c.MoveNodeBefore(node, target, isLeft, changeSide)
	}
	return c.MoveNodeAsChild(node, target, isLeft, changeSide)
}

func (c *MapController) moveNodeToWithoutUndo(child, newParent *mapmodel.Node, newIndex int, isLeft, changeSide bool) error {
	oldParent := child.Parent()
	wasLeft := child.IsLeft()
	oldIndex, err := oldParent.Remove(child)
	if err != nil {
		return err
	}
	if changeSide {
		child.SetLeft(isLeft)
	}
	if err := newParent.Insert(child, newIndex); err != nil {
		// Put the child back so the tree stays whole.
		_ = oldParent.Insert(child, oldIndex)
		return err
	}

	m := newParent.Map()
	c.SetSaved(m, false)
	c.emit(&events.NodeMovedEvent{
		BaseEvent: events.NewEvent(events.EventNodeMoved, events.SourceController),
		MapRef:    events.RefOf(m),
		OldParent: events.RefNode(oldParent),
		OldIndex:  oldIndex,
		NewParent: events.RefNode(newParent),
		NewIndex:  newIndex,
		Child:     events.RefNode(child),
		WasLeft:   wasLeft,
		IsLeft:    child.IsLeft(),
	})
	return nil
}

// SetFolded folds or unfolds node. It does nothing when node is already in
// the requested state.
func (c *MapController) SetFolded(node *mapmodel.Node, folded bool) error {
	if node.IsFolded() == folded {
		return nil
	}
	return c.ToggleFolded(node)
}

// ToggleFolded flips the fold state of each node as one undoable step per
// node. Leaves are skipped unless leaf folding is enabled. Folding is
// available in every mode and on read-only maps.
func (c *MapController) ToggleFolded(nodes ...*mapmodel.Node) error {
	for _, node := range nodes {
		if err := c.toggleFolded(node); err != nil {
			return err
		}
	}
	return nil
}

func (c *MapController) toggleFolded(node *mapmodel.Node) error {
	if !node.HasChildren() && !c.app.Config.Editing.EnableLeavesFolding {
		return nil
	}
	m, err := attachedMap(node)
	if err != nil {
		return err
	}

	flip := func() error {
		c.setFoldedWithoutUndo(node, !node.IsFolded())
		return nil
	}
	return m.UndoLog().Execute(undo.Func{Desc: descFold, ActFn: flip, UndoFn: flip})
}

// setFoldedWithoutUndo changes the fold state. Only the always policy turns
// a fold change into a document change.
func (c *MapController) setFoldedWithoutUndo(node *mapmodel.Node, folded bool) {
	node.SetFolded(folded)
	m := node.Map()

	c.emit(&events.NodeFoldedEvent{
		BaseEvent: events.NewEvent(events.EventNodeFolded, events.SourceController),
		MapRef:    events.RefOf(m),
		Node:      events.RefNode(node),
		Folded:    folded,
	})
	if c.app.Config.Editing.SaveFolding == config.SaveFoldingAlways {
		c.nodeChanged(m, node, events.PropertyFolded, fmt.Sprint(!folded), fmt.Sprint(folded))
	}
}

// SetNodeText replaces the text of node as one undoable step.
func (c *MapController) SetNodeText(node *mapmodel.Node, text string) error {
	m, err := attachedMap(node)
	if err != nil {
		return err
	}
	if err := c.checkEditable(m); err != nil {
		return err
	}
	old := node.Text()
	if old == text {
		return nil
	}

	set := func(value string) func() error {
		return func() error {
			previous := node.Text()
			node.SetText(value)
			c.nodeChanged(m, node, events.PropertyText, previous, value)
			return nil
		}
	}
	return m.UndoLog().Execute(undo.Func{Desc: descText, ActFn: set(text), UndoFn: set(old)})
}

func (c *MapController) nodeChanged(m *mapmodel.Map, node *mapmodel.Node, property events.NodeProperty, oldValue, newValue string) {
	c.SetSaved(m, false)
	c.emit(&events.NodeChangedEvent{
		BaseEvent: events.NewEvent(events.EventNodeChanged, events.SourceController),
		MapRef:    events.RefOf(m),
		Node:      events.RefNode(node),
		Property:  property,
		Old:       oldValue,
		New:       newValue,
	})
}
