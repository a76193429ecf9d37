// Package prompt handles the questions and notices the editor shows the user:
// information messages, confirmations that can be remembered, and the
// yes/no/cancel question asked before an unsaved map is closed.
package prompt

import (
	"fmt"

	"github.com/npratt/mapedit/internal/prefs"
)

// SaveAnswer is the reply to the question asked before closing an unsaved map.
type SaveAnswer int

const (
	SaveYes SaveAnswer = iota
	SaveNo
	SaveCancel
)

func (a SaveAnswer) String() string {
	switch a {
	case SaveYes:
		return "yes"
	case SaveNo:
		return "no"
	default:
		return "cancel"
	}
}

// UI is the user interaction surface.
type UI interface {
	// Inform shows a message that needs no answer.
	Inform(msg string)
	// Confirm asks an OK/cancel question. When allowRemember is set the
	// user may also ask not to be shown the question again.
	Confirm(question string, allowRemember bool) (ok bool, remember bool)
	// AskSave asks whether the named map should be saved before closing.
	AskSave(title string) SaveAnswer
}

// Message keys.
const (
	MsgMapLockedByOpen      = "map_locked_by_open"
	MsgLockingFailedByOpen  = "locking_failed_by_open"
	MsgLockingOldLockRemove = "locking_old_lock_removed"
	MsgReallyConvert        = "really_convert_to_current_version"
	MsgMapUnreadable        = "map_unreadable_by_open"
	MsgSaveUnsaved          = "save_unsaved"
)

var messages = map[string]string{
	MsgMapLockedByOpen:      "%s is being edited by %s. It was opened read-only.",
	MsgLockingFailedByOpen:  "%s could not be locked. It was opened read-only.",
	MsgLockingOldLockRemove: "%s was locked by %s, but that lock was no longer valid and has been removed.",
	MsgReallyConvert:        "This map was created with a different version of the editor. Convert it to the current format?",
	MsgSaveUnsaved:          "%s has unsaved changes. Save before closing?",
	MsgMapUnreadable:        "%s could not be read. It was opened read-only so the file is not overwritten.",
}

// Text renders the message registered under key. Unknown keys render as the
// key itself.
func Text(key string, args ...any) string {
	format, ok := messages[key]
	if !ok {
		return key
	}
	return fmt.Sprintf(format, args...)
}

// OptionalConfirm asks the question registered under key unless a previous
// answer was remembered. Only an OK answer given together with "don't show
// again" is stored. A nil store never remembers.
func OptionalConfirm(ui UI, store *prefs.Store, key string) (bool, error) {
	if store != nil {
		if answer, ok := store.RememberedAnswer(key); ok {
			return answer, nil
		}
	}

	ok, remember := ui.Confirm(Text(key), store != nil)
	if ok && remember && store != nil {
		if err := store.RememberAnswer(key, true); err != nil {
			return ok, fmt.Errorf("remember %s: %w", key, err)
		}
	}
	return ok, nil
}
