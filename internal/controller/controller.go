// Package controller edits mind maps: every structural change is wrapped in
// a reversible actor and recorded in the map's undo log, observers are told
// about each change, and maps are loaded, locked, saved and closed here.
package controller

import (
	"log/slog"

	"github.com/npratt/mapedit/internal/app"
	"github.com/npratt/mapedit/internal/events"
	"github.com/npratt/mapedit/internal/lock"
	"github.com/npratt/mapedit/internal/mapio"
	"github.com/npratt/mapedit/internal/mapmodel"
	"github.com/npratt/mapedit/internal/prompt"
)

// MapController is the single entry point for changing maps.
// It is not safe for concurrent use; callers serialize access.
type MapController struct {
	app    *app.Context
	mode   Mode
	logger *slog.Logger
	loader *mapio.Loader
	writer *mapio.XMLWriter
}

// Option configures a MapController.
type Option func(*MapController)

// WithMode selects the editing mode. The default is MindMapMode.
func WithMode(mode Mode) Option {
	return func(c *MapController) {
		c.mode = mode
	}
}

// New creates a MapController on the shared application context.
func New(ctx *app.Context, opts ...Option) *MapController {
	c := &MapController{
		app:    ctx,
		mode:   MindMapMode,
		logger: ctx.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.loader = mapio.NewLoader(
		mapio.WithLogger(c.logger),
		mapio.WithConfirm(c.confirmConversion),
	)
	c.writer = mapio.NewXMLWriter(ctx.Config.Editing, ctx.Config.Save)
	return c
}

// Mode returns the controller's mode.
func (c *MapController) Mode() Mode { return c.mode }

// Writer returns the serializer used for saving and copying.
func (c *MapController) Writer() *mapio.XMLWriter { return c.writer }

// NewModel creates an empty map. In a locking mode with locking enabled the
// map gets its own lock manager.
func (c *MapController) NewModel() *mapmodel.Map {
	cfg := c.app.Config

	var locks *lock.Manager
	if c.mode.Locks() && cfg.Lock.Enabled {
		locks = lock.New(cfg.Lock.User,
			lock.WithSafetyPeriod(cfg.Lock.SafetyPeriod),
			lock.WithLogger(c.logger),
		)
	}

	m := mapmodel.NewMap(nil, locks, cfg.Editing.UndoLevels)
	m.UndoLog().OnChange(func() { c.undoStateChanged(m) })

	c.emit(&events.MapCreatedEvent{
		BaseEvent: events.NewEvent(events.EventMapCreated, events.SourceController),
		MapRef:    events.RefOf(m),
	})
	c.logger.Debug("map created", "mode", c.mode.Name())
	return m
}

// Undo reverts the last change recorded for m.
func (c *MapController) Undo(m *mapmodel.Map) error {
	return m.UndoLog().Undo()
}

// Redo re-applies the last change undone on m.
func (c *MapController) Redo(m *mapmodel.Map) error {
	return m.UndoLog().Redo()
}

// checkEditable refuses edits in browse mode and on read-only maps.
func (c *MapController) checkEditable(m *mapmodel.Map) error {
	if !c.mode.Editable() {
		return ErrNotEditable
	}
	if m == nil {
		return ErrNotAttached
	}
	if m.IsReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (c *MapController) emit(e events.Event) {
	if c.app.Bus != nil {
		c.app.Bus.Emit(e)
	}
}

func (c *MapController) ui() prompt.UI {
	return c.app.UI
}

func (c *MapController) undoStateChanged(m *mapmodel.Map) {
	log := m.UndoLog()
	c.emit(&events.UndoStateChangedEvent{
		BaseEvent: events.NewEvent(events.EventUndoStateChanged, events.SourceController),
		MapRef:    events.RefOf(m),
		CanUndo:   log.CanUndo(),
		CanRedo:   log.CanRedo(),
		Undo:      log.UndoDescription(),
		Redo:      log.RedoDescription(),
	})
}

// SetSaved updates the saved flag and notifies observers when it flips.
func (c *MapController) SetSaved(m *mapmodel.Map, saved bool) {
	old := m.IsSaved()
	if old == saved {
		return
	}
	m.SetSaved(saved)
	c.emit(&events.SavedChangedEvent{
		BaseEvent: events.NewEvent(events.EventSavedChanged, events.SourceController),
		MapRef:    events.RefOf(m),
		Old:       old,
		New:       saved,
	})
}

// SetReadOnly updates the read-only flag and notifies observers when it flips.
func (c *MapController) SetReadOnly(m *mapmodel.Map, readOnly bool) {
	old := m.IsReadOnly()
	if old == readOnly {
		return
	}
	m.SetReadOnly(readOnly)
	c.emit(&events.ReadOnlyChangedEvent{
		BaseEvent: events.NewEvent(events.EventReadOnlyChanged, events.SourceController),
		MapRef:    events.RefOf(m),
		Old:       old,
		New:       readOnly,
	})
}

func (c *MapController) setFile(m *mapmodel.Map, path string) {
	old := m.File()
	if old == path {
		return
	}
	m.SetFile(path)
	c.emit(&events.FileChangedEvent{
		BaseEvent: events.NewEvent(events.EventFileChanged, events.SourceController),
		MapRef:    events.RefOf(m),
		Old:       old,
		New:       path,
	})
}

func (c *MapController) replaceRoot(m *mapmodel.Map, root *mapmodel.Node) {
	old := m.Root()
	m.SetRoot(root)
	c.emit(&events.RootReplacedEvent{
		BaseEvent: events.NewEvent(events.EventRootReplaced, events.SourceLoader),
		MapRef:    events.RefOf(m),
		OldRoot:   events.RefNode(old),
		NewRoot:   events.RefNode(root),
	})
}
