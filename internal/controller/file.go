package controller

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/npratt/mapedit/internal/events"
	"github.com/npratt/mapedit/internal/mapio"
	"github.com/npratt/mapedit/internal/mapmodel"
	"github.com/npratt/mapedit/internal/prompt"
)

// Load reads the map stored at path into m. A file that cannot be written
// or is locked by another editor is opened read-only. The user is told when
// the lock is held elsewhere, when locking failed, and when a stale lock was
// removed.
func (c *MapController) Load(m *mapmodel.Map, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &NotFoundError{Path: path}
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("load %s: is a directory", path)
	}

	title := filepath.Base(path)
	switch {
	case !isWritable(path):
		c.logger.Info("map file not writable", "path", path)
		c.SetReadOnly(m, true)
	case m.LockManager() != nil:
		holder, err := c.TryToLock(m, path)
		switch {
		case err != nil:
			c.logger.Error("locking failed", "path", path, "error", err)
			c.emit(&events.LockFailedEvent{
				BaseEvent: events.NewEvent(events.EventLockFailed, events.SourceLock),
				MapRef:    events.RefOf(m),
				Path:      path,
				Error:     err.Error(),
			})
			c.ui().Inform(prompt.Text(prompt.MsgLockingFailedByOpen, title))
			c.releaseLock(m)
			c.SetReadOnly(m, true)
		case holder != "":
			c.logger.Info("map locked by another editor", "path", path, "holder", holder)
			c.emit(&events.LockDeniedEvent{
				BaseEvent: events.NewEvent(events.EventLockDenied, events.SourceLock),
				MapRef:    events.RefOf(m),
				Path:      path,
				Holder:    holder,
			})
			c.ui().Inform(prompt.Text(prompt.MsgMapLockedByOpen, title, holder))
			c.releaseLock(m)
			c.SetReadOnly(m, true)
		default:
			c.emit(&events.LockAcquiredEvent{
				BaseEvent: events.NewEvent(events.EventLockAcquired, events.SourceLock),
				MapRef:    events.RefOf(m),
				Path:      path,
			})
		}
	default:
		c.SetReadOnly(m, false)
	}

	root, err := c.LoadTree(m, path)
	if err != nil {
		c.releaseLock(m)
		return fmt.Errorf("load %s: %w", path, err)
	}
	if mapio.IsErrorNode(root) {
		c.logger.Warn("map unreadable, opened read-only", "path", path)
		c.ui().Inform(prompt.Text(prompt.MsgMapUnreadable, title))
		c.releaseLock(m)
		c.SetReadOnly(m, true)
	}

	c.replaceRoot(m, root)
	c.setFile(m, path)
	c.SetSaved(m, true)
	c.rememberRecent(path)

	c.logger.Info("map loaded",
		"path", path,
		"nodes", m.NodeCount(),
		"read_only", m.IsReadOnly(),
	)
	return nil
}

// LoadTree reads the tree stored at path without attaching it to m.
// Unparseable content yields a single node describing the error.
func (c *MapController) LoadTree(m *mapmodel.Map, path string) (*mapmodel.Node, error) {
	return c.loader.LoadFile(m, path)
}

// TryToLock locks file for m. It returns "" when m holds the lock, or the
// name of the editor holding it. A removed stale lock is reported to the
// user once. Holding the lock makes m writable.
func (c *MapController) TryToLock(m *mapmodel.Map, file string) (string, error) {
	locks := m.LockManager()
	if locks == nil {
		return "", nil
	}

	holder, err := locks.TryToLock(file)
	if old := locks.PopLockingUserOfOldLock(); old != "" {
		c.emit(&events.OldLockRemovedEvent{
			BaseEvent: events.NewEvent(events.EventOldLockRemoved, events.SourceLock),
			MapRef:    events.RefOf(m),
			Path:      file,
			Holder:    old,
		})
		c.ui().Inform(prompt.Text(prompt.MsgLockingOldLockRemove, filepath.Base(file), old))
	}
	if err != nil {
		return "", err
	}
	if holder == "" {
		c.SetReadOnly(m, false)
	}
	return holder, nil
}

// Save writes m to its file.
func (c *MapController) Save(m *mapmodel.Map) error {
	if !c.mode.Editable() {
		return ErrNotEditable
	}
	if m.File() == "" {
		return ErrNoFile
	}
	if m.IsReadOnly() {
		return ErrReadOnly
	}
	if locks := m.LockManager(); locks != nil && locks.Held() {
		if err := locks.Verify(); err != nil {
			c.logger.Warn("lock lost before save", "path", m.File(), "error", err)
			c.SetReadOnly(m, true)
			return fmt.Errorf("save %s: %w", m.File(), err)
		}
	}

	if err := c.writer.WriteFile(m, m.File()); err != nil {
		return fmt.Errorf("save %s: %w", m.File(), err)
	}
	c.SetSaved(m, true)
	if locks := m.LockManager(); locks != nil {
		if err := locks.Refresh(); err != nil {
			c.logger.Warn("lock refresh failed", "path", m.File(), "error", err)
		}
	}
	c.logger.Info("map saved", "path", m.File())
	return nil
}

// SaveAs writes m to path and makes path the map's file. The target is
// locked first, also when it is the map's own file, so a map opened
// read-only because another editor holds it cannot overwrite that editor's
// file. A read-only map becomes writable once its copy is locked. When the
// target cannot be locked or written, the map keeps its file and lock.
func (c *MapController) SaveAs(m *mapmodel.Map, path string) error {
	if !c.mode.Editable() {
		return ErrNotEditable
	}

	oldFile, wasReadOnly := m.File(), m.IsReadOnly()
	locks := m.LockManager()
	hadLock := locks != nil && locks.Held()
	if locks != nil {
		holder, err := c.TryToLock(m, path)
		if err != nil {
			return fmt.Errorf("save as %s: %w", path, err)
		}
		if holder != "" {
			return &LockedError{Path: path, Holder: holder}
		}
	}

	if err := c.writer.WriteFile(m, path); err != nil {
		if locks != nil && path != oldFile {
			c.restoreLock(m, oldFile, hadLock)
		}
		c.SetReadOnly(m, wasReadOnly)
		return fmt.Errorf("save as %s: %w", path, err)
	}
	c.setFile(m, path)
	c.SetReadOnly(m, false)
	c.SetSaved(m, true)
	c.rememberRecent(path)
	c.logger.Info("map saved", "path", path)
	return nil
}

// restoreLock moves m's lock back to oldFile after a failed SaveAs, or drops
// it when m held none before.
func (c *MapController) restoreLock(m *mapmodel.Map, oldFile string, hadLock bool) {
	if !hadLock || oldFile == "" {
		c.releaseLock(m)
		return
	}
	if _, err := m.LockManager().TryToLock(oldFile); err != nil {
		c.logger.Warn("relock failed", "path", oldFile, "error", err)
	}
}

func (c *MapController) releaseLock(m *mapmodel.Map) {
	if locks := m.LockManager(); locks != nil {
		if err := locks.Release(); err != nil {
			c.logger.Warn("lock release failed", "error", err)
		}
	}
}

// Close closes m. Unless forced, an unsaved map prompts yes/no/cancel:
// yes saves first, cancel keeps the map open. It returns false when the map
// stays open.
func (c *MapController) Close(m *mapmodel.Map, force bool) (bool, error) {
	if !force && !m.IsSaved() && c.mode.Editable() {
		switch c.ui().AskSave(m.Title()) {
		case prompt.SaveYes:
			if err := c.Save(m); err != nil {
				return false, err
			}
		case prompt.SaveCancel:
			c.logger.Debug("close cancelled", "map", m.Title())
			return false, nil
		}
	}

	c.releaseLock(m)
	c.emit(&events.MapClosedEvent{
		BaseEvent: events.NewEvent(events.EventMapClosed, events.SourceController),
		MapRef:    events.RefOf(m),
	})
	c.logger.Debug("map closed", "map", m.Title())
	return true, nil
}

// CopyNode serializes the subtree below node as a clipboard fragment.
func (c *MapController) CopyNode(node *mapmodel.Node) (string, error) {
	var buf bytes.Buffer
	if err := c.writer.WriteNode(node, &buf, mapio.ModeClipboard); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PasteNode parses a clipboard fragment and appends it below parent as one
// undoable step. IDs already used in the map are replaced.
func (c *MapController) PasteNode(parent *mapmodel.Node, fragment string) (*mapmodel.Node, error) {
	m, err := attachedMap(parent)
	if err != nil {
		return nil, err
	}
	if err := c.checkEditable(m); err != nil {
		return nil, err
	}

	node, err := mapio.NewXMLReader(c.logger).CreateNodeTreeFromXML(m, strings.NewReader(fragment), mapio.ModeClipboard)
	if err != nil {
		return nil, fmt.Errorf("paste: %w", err)
	}
	if err := c.AppendNode(node, parent); err != nil {
		return nil, err
	}
	return node, nil
}

func (c *MapController) confirmConversion() bool {
	ok, err := prompt.OptionalConfirm(c.ui(), c.app.Prefs, prompt.MsgReallyConvert)
	if err != nil {
		c.logger.Warn("could not remember answer", "error", err)
	}
	return ok
}

func (c *MapController) rememberRecent(path string) {
	if c.app.Prefs == nil {
		return
	}
	if err := c.app.Prefs.AddRecentFile(path); err != nil {
		c.logger.Warn("could not update recent files", "error", err)
	}
}

// isWritable reports whether path can be opened for writing.
func isWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
