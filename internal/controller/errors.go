package controller

import (
	"errors"
	"fmt"

	"github.com/npratt/mapedit/internal/mapmodel"
)

// Errors returned by MapController operations. Preconditions are checked
// before anything is recorded in the undo log.
var (
	ErrReadOnly     = errors.New("map is read-only")
	ErrNotEditable  = errors.New("mode does not allow editing")
	ErrInvalidIndex = mapmodel.ErrInvalidIndex
	ErrCycle        = errors.New("cannot move a node into its own subtree")
	ErrRoot         = errors.New("operation not allowed on the root node")
	ErrNotAttached  = errors.New("node is not part of a map")
	ErrNoFile       = errors.New("map has no file")
)

// NotFoundError is returned when a map file does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("map file not found: %s", e.Path)
}

// LockedError is returned by SaveAs when another editor holds the target.
type LockedError struct {
	Path   string
	Holder string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s is locked by %s", e.Path, e.Holder)
}
