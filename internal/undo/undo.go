// Package undo provides reversible actors and the linear undo/redo log that
// records them.
package undo

import (
	"errors"
	"fmt"
)

// DefaultLimit is the number of actors kept when no limit is configured.
const DefaultLimit = 100

// ErrNothingToUndo is returned by Undo when the cursor is at the start of the log.
var ErrNothingToUndo = errors.New("nothing to undo")

// ErrNothingToRedo is returned by Redo when no undone actor remains.
var ErrNothingToRedo = errors.New("nothing to redo")

// Actor is a reversible unit of work.
// Act applies the change, Undo reverts exactly what Act did.
type Actor interface {
	Act() error
	Undo() error
	Description() string
}

// Func is an Actor built from closures that capture the state needed to
// invert the change.
type Func struct {
	Desc   string
	ActFn  func() error
	UndoFn func() error
}

// Act runs ActFn.
func (f Func) Act() error {
	if f.ActFn == nil {
		return nil
	}
	return f.ActFn()
}

// Undo runs UndoFn.
func (f Func) Undo() error {
	if f.UndoFn == nil {
		return nil
	}
	return f.UndoFn()
}

// Description returns the human-readable name of the change.
func (f Func) Description() string {
	return f.Desc
}

// Log is a linear undo/redo stack. Actors before the cursor are applied,
// actors at or after the cursor have been undone and can be redone.
type Log struct {
	actors   []Actor
	cursor   int
	limit    int
	onChange func()
}

// NewLog creates a Log keeping at most limit applied actors.
// If limit is 0 or negative, DefaultLimit is used.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{limit: limit}
}

// OnChange registers a callback invoked after every successful Execute,
// Undo, Redo or Clear.
func (l *Log) OnChange(fn func()) {
	l.onChange = fn
}

// Execute applies the actor and records it. Any undone tail is discarded.
// If Act fails nothing is recorded and the error is returned.
func (l *Log) Execute(a Actor) error {
	if err := a.Act(); err != nil {
		return fmt.Errorf("%s: %w", a.Description(), err)
	}

	l.actors = append(l.actors[:l.cursor], a)
	l.cursor++

	if over := len(l.actors) - l.limit; over > 0 {
		l.actors = append([]Actor(nil), l.actors[over:]...)
		l.cursor -= over
	}

	l.changed()
	return nil
}

// Undo reverts the most recently applied actor.
func (l *Log) Undo() error {
	if !l.CanUndo() {
		return ErrNothingToUndo
	}
	a := l.actors[l.cursor-1]
	if err := a.Undo(); err != nil {
		return fmt.Errorf("undo %s: %w", a.Description(), err)
	}
	l.cursor--
	l.changed()
	return nil
}

// Redo re-applies the most recently undone actor.
func (l *Log) Redo() error {
	if !l.CanRedo() {
		return ErrNothingToRedo
	}
	a := l.actors[l.cursor]
	if err := a.Act(); err != nil {
		return fmt.Errorf("redo %s: %w", a.Description(), err)
	}
	l.cursor++
	l.changed()
	return nil
}

// CanUndo reports whether an applied actor exists.
func (l *Log) CanUndo() bool {
	return l.cursor > 0
}

// CanRedo reports whether an undone actor exists.
func (l *Log) CanRedo() bool {
	return l.cursor < len(l.actors)
}

// UndoDescription describes the actor Undo would revert, or "".
func (l *Log) UndoDescription() string {
	if !l.CanUndo() {
		return ""
	}
	return l.actors[l.cursor-1].Description()
}

// RedoDescription describes the actor Redo would re-apply, or "".
func (l *Log) RedoDescription() string {
	if !l.CanRedo() {
		return ""
	}
	return l.actors[l.cursor].Description()
}

// Len returns the number of applied actors.
func (l *Log) Len() int {
	return l.cursor
}

// Clear drops all recorded actors.
func (l *Log) Clear() {
	l.actors = nil
	l.cursor = 0
	l.changed()
}

func (l *Log) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}
