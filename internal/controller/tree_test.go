package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npratt/mapedit/internal/config"
	"github.com/npratt/mapedit/internal/events"
	"github.com/npratt/mapedit/internal/mapmodel"
)

func TestEditSequenceUndoRestoresStructure(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, b, a1, a2 := f.buildTree(t)
	root := m.Root()

	before := outline(root)
	applied := m.UndoLog().Len()

	extra := mapmodel.NewNodeWithID("ID_extra", "extra")
	require.NoError(t, f.c.InsertNode(extra, b, 0))
	require.NoError(t, f.c.MoveNode(a1, b, 1, false, false))
	require.NoError(t, f.c.MoveNode(a, root, 1, true, true))
	require.NoError(t, f.c.DeleteNode(a2))
	require.NoError(t, f.c.MoveNodeBefore(b, a, false, false))
	require.NoError(t, f.c.SetNodeText(extra, "renamed"))

	after := outline(root)
	steps := m.UndoLog().Len() - applied
	require.Equal(t, 6, steps)
	assert.NotEqual(t, before, after)

	for i := 0; i < steps; i++ {
		require.NoError(t, f.c.Undo(m))
	}
	assert.Equal(t, before, outline(root))

	for i := 0; i < steps; i++ {
		require.NoError(t, f.c.Redo(m))
	}
	assert.Equal(t, after, outline(root))
}

func TestInsertNode(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, _, _, _ := f.buildTree(t)
	f.c.SetSaved(m, true)
	f.rec.reset()

	n := mapmodel.NewNode("n")
	require.NoError(t, f.c.InsertNode(n, a, 1))

	assert.Same(t, a, n.Parent())
	assert.Equal(t, 1, n.Index())
	assert.Same(t, m, n.Map())
	assert.False(t, m.IsSaved())

	inserted := of[*events.NodeInsertedEvent](f.rec)
	require.Len(t, inserted, 1)
	assert.Same(t, a, inserted[0].Parent.Node)
	assert.Same(t, n, inserted[0].Child.Node)
	assert.Equal(t, 1, inserted[0].Index)

	require.NoError(t, f.c.Undo(m))
	assert.Nil(t, n.Parent())
	assert.Equal(t, 2, a.ChildCount())
}

func TestInsertNodeRejectsBadInput(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, b, _, _ := f.buildTree(t)
	applied := m.UndoLog().Len()

	assert.ErrorIs(t, f.c.InsertNode(mapmodel.NewNode("x"), a, 3), ErrInvalidIndex)
	assert.ErrorIs(t, f.c.InsertNode(mapmodel.NewNode("x"), a, -1), ErrInvalidIndex)
	assert.ErrorIs(t, f.c.InsertNode(b, a, 0), mapmodel.ErrAttached)
	assert.ErrorIs(t, f.c.InsertNode(m.Root(), a, 0), mapmodel.ErrAttached)
	assert.ErrorIs(t, f.c.InsertNode(mapmodel.NewNode("x"), mapmodel.NewNode("loose"), 0), ErrNotAttached)

	assert.Equal(t, applied, m.UndoLog().Len(), "rejected edits are not recorded")
}

func TestAppendAndAddNewNodeSides(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, b, _, _ := f.buildTree(t)

	n := mapmodel.NewNode("tail")
	require.NoError(t, f.c.AppendNode(n, a))
	assert.Equal(t, a.ChildCount()-1, n.Index())

	left, err := f.c.AddNewNode(b, 0, false, "under b")
	require.NoError(t, err)
	assert.True(t, left.IsLeft(), "children follow the side of their parent")

	top, err := f.c.AddNewNode(m.Root(), 0, true, "top")
	require.NoError(t, err)
	assert.True(t, top.IsLeft())
	assert.Equal(t, 0, top.Index())
}

func TestInsertNodeRelative(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, b, _, _ := f.buildTree(t)

	sib := mapmodel.NewNode("sib")
	require.NoError(t, f.c.InsertNodeRelative(sib, b, true, true, true))
	assert.Same(t, m.Root(), sib.Parent())
	assert.Equal(t, 1, sib.Index(), "siblings go before the target")
	assert.True(t, sib.IsLeft())

	child := mapmodel.NewNode("child")
	require.NoError(t, f.c.InsertNodeRelative(child, a, false, false, false))
	assert.Same(t, a, child.Parent())
	assert.Equal(t, a.ChildCount()-1, child.Index())

	require.NoError(t, f.c.Undo(m))
	require.NoError(t, f.c.Undo(m))
	assert.Nil(t, sib.Parent())
	assert.False(t, sib.IsLeft(), "undo restores the side")

	assert.ErrorIs(t, f.c.InsertNodeRelative(mapmodel.NewNode("x"), m.Root(), true, false, false), ErrRoot)
}

func TestDeleteNodeNotifications(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, _, a1, _ := f.buildTree(t)
	f.c.SetSaved(m, true)
	f.rec.reset()

	var attachedAtPre, attachedAtPost bool
	f.c.app.Bus.SubscribeFunc(func(e events.Event) {
		switch ev := e.(type) {
		case *events.NodePreDeleteEvent:
			attachedAtPre = ev.Child.Node.Parent() != nil
		case *events.NodeDeletedEvent:
			attachedAtPost = ev.Child.Node.Parent() != nil
		}
	})

	require.NoError(t, f.c.DeleteNode(a1))

	assert.Equal(t, []events.EventType{
		events.EventNodePreDelete,
		events.EventSavedChanged,
		events.EventNodeDeleted,
		events.EventUndoStateChanged,
	}, f.rec.types())
	assert.True(t, attachedAtPre)
	assert.False(t, attachedAtPost)

	pre := of[*events.NodePreDeleteEvent](f.rec)[0]
	post := of[*events.NodeDeletedEvent](f.rec)[0]
	assert.Same(t, a, pre.Parent.Node)
	assert.Equal(t, 0, pre.Index)
	assert.Same(t, a, post.Parent.Node)
	assert.Equal(t, 0, post.Index)

	require.NoError(t, f.c.Undo(m))
	assert.Same(t, a, a1.Parent())
	assert.Equal(t, 0, a1.Index())
}

func TestDeleteRootRefused(t *testing.T) {
	f := newFixture(t, testConfig())
	m := f.c.NewModel()

	assert.ErrorIs(t, f.c.DeleteNode(m.Root()), ErrRoot)
	assert.ErrorIs(t, f.c.DeleteNode(mapmodel.NewNode("loose")), ErrNotAttached)
	assert.False(t, m.UndoLog().CanUndo())
}

func TestNoOpMoveRecordsNothing(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, _, a1, _ := f.buildTree(t)
	applied := m.UndoLog().Len()
	f.rec.reset()

	require.NoError(t, f.c.MoveNode(a1, a, 0, true, false))
	require.NoError(t, f.c.MoveNodeAsChild(a.ChildAt(1), a, false, false))

	assert.Equal(t, applied, m.UndoLog().Len())
	assert.Empty(t, f.rec.events)

	// Changing the side is a real move even in place.
	require.NoError(t, f.c.MoveNode(a, m.Root(), 0, true, true))
	assert.Equal(t, applied+1, m.UndoLog().Len())
	assert.True(t, a.IsLeft())
}

func TestMoveNodeIndexAfterDetach(t *testing.T) {
	f := newFixture(t, testConfig())
	m := f.c.NewModel()
	root := m.Root()

	x, _ := f.c.AddNewNode(root, 0, false, "x")
	y, _ := f.c.AddNewNode(root, 1, false, "y")
	z, _ := f.c.AddNewNode(root, 2, false, "z")
	f.rec.reset()

	require.NoError(t, f.c.MoveNode(x, root, 2, false, false))
	assert.Equal(t, []*mapmodel.Node{y, z, x}, root.Children())

	moved := of[*events.NodeMovedEvent](f.rec)
	require.Len(t, moved, 1)
	assert.Same(t, root, moved[0].OldParent.Node)
	assert.Equal(t, 0, moved[0].OldIndex)
	assert.Same(t, root, moved[0].NewParent.Node)
	assert.Equal(t, 2, moved[0].NewIndex)
	assert.Same(t, x, moved[0].Child.Node)

	assert.ErrorIs(t, f.c.MoveNode(x, root, 3, false, false), ErrInvalidIndex)

	require.NoError(t, f.c.MoveNodeBefore(x, y, false, false))
	assert.Equal(t, []*mapmodel.Node{x, y, z}, root.Children())

	require.NoError(t, f.c.MoveNodeRelative(z, x, false, false, false))
	assert.Same(t, x, z.Parent())

	require.NoError(t, f.c.MoveNodeRelative(z, y, true, false, false))
	assert.Equal(t, []*mapmodel.Node{x, z, y}, root.Children())
}

func TestUndoMoveRestoresOwnSide(t *testing.T) {
	f := newFixture(t, testConfig())
	m, _, b, _, _ := f.buildTree(t)
	root := m.Root()

	deep := mapmodel.NewNode("deep")
	require.NoError(t, f.c.InsertNode(deep, b, 0))
	require.True(t, deep.IsLeft(), "a deep node follows its first-level ancestor")
	require.False(t, deep.OwnLeft())

	require.NoError(t, f.c.MoveNode(deep, root, 0, true, true))
	assert.True(t, deep.OwnLeft())

	require.NoError(t, f.c.Undo(m))
	assert.Same(t, b, deep.Parent())
	assert.False(t, deep.OwnLeft(), "undo should restore the node's own flag")

	require.NoError(t, f.c.MoveNodeAsChild(deep, root, false, false))
	assert.False(t, deep.IsLeft(), "the node keeps its own right side at the first level")
}

func TestMoveNodeRefusals(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, b, a1, _ := f.buildTree(t)
	applied := m.UndoLog().Len()

	assert.ErrorIs(t, f.c.MoveNode(a, a1, 0, false, false), ErrCycle)
	assert.ErrorIs(t, f.c.MoveNode(a, a, 0, false, false), ErrCycle)
	assert.ErrorIs(t, f.c.MoveNode(m.Root(), b, 0, false, false), ErrRoot)
	assert.ErrorIs(t, f.c.MoveNodeBefore(a, m.Root(), false, false), ErrRoot)

	other := f.c.NewModel()
	assert.ErrorIs(t, f.c.MoveNode(a, other.Root(), 0, false, false), ErrNotAttached)

	assert.Equal(t, applied, m.UndoLog().Len())
}

func TestMoveMarksUnsaved(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, b, _, _ := f.buildTree(t)
	f.c.SetSaved(m, true)

	require.NoError(t, f.c.MoveNodeAsChild(b, a, false, false))
	assert.False(t, m.IsSaved())
}

func TestToggleFoldedLeavesAndPolicies(t *testing.T) {
	t.Run("leaf is skipped", func(t *testing.T) {
		f := newFixture(t, testConfig())
		m, _, b, _, _ := f.buildTree(t)
		applied := m.UndoLog().Len()

		require.NoError(t, f.c.ToggleFolded(b))
		assert.False(t, b.IsFolded())
		assert.Equal(t, applied, m.UndoLog().Len())
	})

	t.Run("leaf folding enabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Editing.EnableLeavesFolding = true
		f := newFixture(t, cfg)
		_, _, b, _, _ := f.buildTree(t)

		require.NoError(t, f.c.ToggleFolded(b))
		assert.True(t, b.IsFolded())
	})

	t.Run("if_map_changed keeps saved", func(t *testing.T) {
		f := newFixture(t, testConfig())
		m, a, _, _, _ := f.buildTree(t)
		f.c.SetSaved(m, true)
		f.rec.reset()

		require.NoError(t, f.c.ToggleFolded(a))
		assert.True(t, a.IsFolded())
		assert.True(t, m.IsSaved())
		assert.Empty(t, of[*events.NodeChangedEvent](f.rec))
		folded := of[*events.NodeFoldedEvent](f.rec)
		require.Len(t, folded, 1)
		assert.True(t, folded[0].Folded)

		require.NoError(t, f.c.Undo(m))
		assert.False(t, a.IsFolded())
	})

	t.Run("always marks changed", func(t *testing.T) {
		cfg := testConfig()
		cfg.Editing.SaveFolding = config.SaveFoldingAlways
		f := newFixture(t, cfg)
		m, a, _, _, _ := f.buildTree(t)
		f.c.SetSaved(m, true)
		f.rec.reset()

		require.NoError(t, f.c.ToggleFolded(a))
		assert.False(t, m.IsSaved())
		changed := of[*events.NodeChangedEvent](f.rec)
		require.Len(t, changed, 1)
		assert.Equal(t, events.PropertyFolded, changed[0].Property)
	})

	t.Run("several nodes", func(t *testing.T) {
		f := newFixture(t, testConfig())
		m, a, b, a1, _ := f.buildTree(t)
		_, err := f.c.AddNewNode(a1, 0, false, "deep")
		require.NoError(t, err)
		applied := m.UndoLog().Len()

		require.NoError(t, f.c.ToggleFolded(a, b, a1))
		assert.True(t, a.IsFolded())
		assert.False(t, b.IsFolded())
		assert.True(t, a1.IsFolded())
		assert.Equal(t, applied+2, m.UndoLog().Len())
	})
}

func TestSetFolded(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, _, _, _ := f.buildTree(t)
	applied := m.UndoLog().Len()

	require.NoError(t, f.c.SetFolded(a, false))
	assert.Equal(t, applied, m.UndoLog().Len(), "already unfolded")

	require.NoError(t, f.c.SetFolded(a, true))
	require.NoError(t, f.c.SetFolded(a, true))
	assert.True(t, a.IsFolded())
	assert.Equal(t, applied+1, m.UndoLog().Len())
}

func TestSetNodeText(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, _, _, _ := f.buildTree(t)
	f.rec.reset()

	require.NoError(t, f.c.SetNodeText(a, "alpha"))
	assert.Equal(t, "alpha", a.Text())
	changed := of[*events.NodeChangedEvent](f.rec)
	require.Len(t, changed, 1)
	assert.Equal(t, events.PropertyText, changed[0].Property)
	assert.Equal(t, "a", changed[0].Old)
	assert.Equal(t, "alpha", changed[0].New)

	applied := m.UndoLog().Len()
	require.NoError(t, f.c.SetNodeText(a, "alpha"))
	assert.Equal(t, applied, m.UndoLog().Len())

	require.NoError(t, f.c.Undo(m))
	assert.Equal(t, "a", a.Text())
}

func TestBrowseModeRefusesEdits(t *testing.T) {
	f := newFixture(t, testConfig(), WithMode(BrowseMode))
	m := f.c.NewModel()

	_, err := f.c.AddNewNode(m.Root(), 0, false, "x")
	assert.ErrorIs(t, err, ErrNotEditable)
	assert.ErrorIs(t, f.c.SetNodeText(m.Root(), "x"), ErrNotEditable)
	assert.ErrorIs(t, f.c.Save(m), ErrNotEditable)
}

func TestReadOnlyMapRefusesEdits(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, b, _, _ := f.buildTree(t)
	f.c.SetReadOnly(m, true)

	assert.ErrorIs(t, f.c.DeleteNode(a), ErrReadOnly)
	assert.ErrorIs(t, f.c.MoveNode(b, a, 0, false, false), ErrReadOnly)
	assert.ErrorIs(t, f.c.InsertNode(mapmodel.NewNode("x"), a, 0), ErrReadOnly)
	assert.ErrorIs(t, f.c.SetNodeText(a, "x"), ErrReadOnly)

	require.NoError(t, f.c.ToggleFolded(a), "folding stays available")
	assert.True(t, a.IsFolded())
}

func TestWithoutUndoVariantsSkipLog(t *testing.T) {
	f := newFixture(t, testConfig())
	m, a, _, _, _ := f.buildTree(t)
	applied := m.UndoLog().Len()

	n := mapmodel.NewNode("raw")
	require.NoError(t, f.c.InsertNodeWithoutUndo(n, a, 0))
	require.NoError(t, f.c.DeleteWithoutUndo(n))
	assert.ErrorIs(t, f.c.DeleteWithoutUndo(m.Root()), ErrRoot)

	assert.Equal(t, applied, m.UndoLog().Len())
}

func TestUndoLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Editing.UndoLevels = 3
	f := newFixture(t, cfg)
	m := f.c.NewModel()

	for i := 0; i < 5; i++ {
		_, err := f.c.AddNewNode(m.Root(), 0, false, "n")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.UndoLog().Len())
	for i := 0; i < 3; i++ {
		require.NoError(t, f.c.Undo(m))
	}
	assert.Equal(t, 2, m.Root().ChildCount())
	assert.False(t, m.UndoLog().CanUndo())
}
