package undo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter returns an actor that adds delta to *v.
func counter(v *int, delta int, desc string) Actor {
	return Func{
		Desc:   desc,
		ActFn:  func() error { *v += delta; return nil },
		UndoFn: func() error { *v -= delta; return nil },
	}
}

func TestNewLog_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NewLog(0).limit)
	assert.Equal(t, DefaultLimit, NewLog(-3).limit)
	assert.Equal(t, 7, NewLog(7).limit)
}

func TestLog_ExecuteUndoRedo(t *testing.T) {
	v := 0
	l := NewLog(10)

	require.NoError(t, l.Execute(counter(&v, 1, "one")))
	require.NoError(t, l.Execute(counter(&v, 10, "ten")))
	assert.Equal(t, 11, v)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, "ten", l.UndoDescription())

	require.NoError(t, l.Undo())
	assert.Equal(t, 1, v)
	assert.True(t, l.CanRedo())
	assert.Equal(t, "ten", l.RedoDescription())

	require.NoError(t, l.Redo())
	assert.Equal(t, 11, v)
	assert.False(t, l.CanRedo())
}

func TestLog_ExecuteDiscardsUndoneTail(t *testing.T) {
	v := 0
	l := NewLog(10)

	require.NoError(t, l.Execute(counter(&v, 1, "one")))
	require.NoError(t, l.Execute(counter(&v, 2, "two")))
	require.NoError(t, l.Undo())
	require.NoError(t, l.Execute(counter(&v, 5, "five")))

	assert.False(t, l.CanRedo())
	assert.Equal(t, 6, v)

	require.NoError(t, l.Undo())
	require.NoError(t, l.Undo())
	assert.Equal(t, 0, v)
	assert.ErrorIs(t, l.Undo(), ErrNothingToUndo)
}

func TestLog_FailedActIsNotRecorded(t *testing.T) {
	l := NewLog(10)
	boom := errors.New("boom")

	err := l.Execute(Func{Desc: "bad", ActFn: func() error { return boom }})
	assert.ErrorIs(t, err, boom)
	assert.False(t, l.CanUndo())
	assert.Equal(t, 0, l.Len())
}

func TestLog_LimitDropsOldest(t *testing.T) {
	v := 0
	l := NewLog(2)

	require.NoError(t, l.Execute(counter(&v, 1, "a")))
	require.NoError(t, l.Execute(counter(&v, 1, "b")))
	require.NoError(t, l.Execute(counter(&v, 1, "c")))

	assert.Equal(t, 2, l.Len())
	require.NoError(t, l.Undo())
	require.NoError(t, l.Undo())
	assert.ErrorIs(t, l.Undo(), ErrNothingToUndo)
	assert.Equal(t, 1, v)
}

func TestLog_OnChange(t *testing.T) {
	v := 0
	calls := 0
	l := NewLog(5)
	l.OnChange(func() { calls++ })

	require.NoError(t, l.Execute(counter(&v, 1, "a")))
	require.NoError(t, l.Undo())
	require.NoError(t, l.Redo())
	l.Clear()
	assert.Equal(t, 4, calls)

	assert.ErrorIs(t, l.Redo(), ErrNothingToRedo)
	assert.Equal(t, 4, calls)
}

func TestLog_FailedUndoKeepsCursor(t *testing.T) {
	l := NewLog(5)
	require.NoError(t, l.Execute(Func{
		Desc:   "stuck",
		UndoFn: func() error { return errors.New("cannot") },
	}))

	assert.Error(t, l.Undo())
	assert.True(t, l.CanUndo())
}
