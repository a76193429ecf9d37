// Package lock implements advisory, semaphore-file based locking of map files.
//
// A lock is a small record written next to the document. Cooperating editors
// check it before opening a file for writing; nothing stops a non-cooperating
// writer. The holder keeps an flock on the semaphore so that a crashed editor
// is recognized on the same host, and refreshes a timestamp so that editors on
// other hosts can expire abandoned records.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// DefaultSafetyPeriod is how long a record stays valid without a refresh.
const DefaultSafetyPeriod = 5 * time.Minute

// UnknownUser is shown when a semaphore does not name its holder.
const UnknownUser = "unknown"

var errContended = errors.New("semaphore re-created by another editor")

// ErrLost reports that the semaphore of a held lock was removed or replaced.
var ErrLost = errors.New("semaphore removed or taken over by another editor")

// ErrNotHeld is returned by Keepalive when there is no lock to keep.
var ErrNotHeld = errors.New("no lock held")

// Error reports a lock failure that is not contention: the semaphore could not
// be created, read, written or removed.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("lock %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Record is the content of a semaphore file.
type Record struct {
	User      string    `json:"user"`
	Host      string    `json:"host"`
	PID       int       `json:"pid"`
	Token     string    `json:"token"`
	Refreshed time.Time `json:"refreshed"`
}

// DisplayName returns the holder's name for messages.
func (r *Record) DisplayName() string {
	if r.User == "" {
		return UnknownUser
	}
	return r.User
}

// Option configures a Manager.
type Option func(*Manager)

// WithSafetyPeriod sets how old a record may get before it counts as stale.
// Zero disables expiry by age.
func WithSafetyPeriod(d time.Duration) Option {
	return func(m *Manager) { m.safety = d }
}

// WithHost overrides the host name written into records.
func WithHost(host string) Option {
	return func(m *Manager) { m.host = host }
}

// WithLogger sets the logger used for stale-lock and keepalive messages.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager holds at most one lock, for the file of the map it belongs to.
type Manager struct {
	user   string
	host   string
	pid    int
	token  string
	safety time.Duration
	logger *slog.Logger

	mu          sync.Mutex
	path        string
	file        *os.File
	oldLockUser string
}

// New creates a Manager claiming locks on behalf of user.
func New(user string, opts ...Option) *Manager {
	host, _ := os.Hostname()
	m := &Manager{
		user:   user,
		host:   host,
		pid:    os.Getpid(),
		token:  uuid.NewString(),
		safety: DefaultSafetyPeriod,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// SemaphorePath returns the semaphore location for a document.
func SemaphorePath(file string) string {
	dir, base := filepath.Split(file)
	return filepath.Join(dir, "$~"+base+"~")
}

// TryToLock attempts to lock file. It returns "" when the lock is held by
// this manager afterwards, or the display name of the current holder when
// another live editor owns it. A stale record is removed, remembered for
// PopLockingUserOfOldLock, and the claim is retried once.
// A lock held on another file is released only once file is locked, so a
// failed claim leaves the previous lock in place.
// Failures other than contention are returned as *Error.
func (m *Manager) TryToLock(file string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := SemaphorePath(file)
	if m.file != nil && m.path == path {
		if m.ownsLocked() {
			return "", nil
		}
		m.logger.Warn("held lock was lost, claiming again", "path", path)
		m.dropLocked()
	}

	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := m.create(path)
		if err == nil {
			if err := m.releaseLocked(); err != nil {
				m.logger.Warn("previous lock was lost", "error", err)
			}
			m.file = claimed
			m.path = path
			return "", nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}

		rec, err := ReadRecord(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", &Error{Op: "read", Path: path, Err: err}
		}

		if !m.isStale(path, rec) {
			return rec.DisplayName(), nil
		}

		removed, err := removeStale(path, rec)
		if err != nil {
			return "", &Error{Op: "remove stale", Path: path, Err: err}
		}
		if !removed {
			continue
		}
		m.oldLockUser = rec.DisplayName()
		m.logger.Info("removed stale lock",
			"path", path,
			"user", rec.User,
			"host", rec.Host,
			"pid", rec.PID,
			"refreshed", rec.Refreshed,
		)
	}

	return "", &Error{Op: "acquire", Path: path, Err: errContended}
}

// PopLockingUserOfOldLock returns the holder of the last stale lock removed
// by TryToLock, then forgets it. It returns "" when there is nothing to report.
func (m *Manager) PopLockingUserOfOldLock() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.oldLockUser
	m.oldLockUser = ""
	return user
}

// Held reports whether the manager currently owns a lock.
func (m *Manager) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file != nil
}

// Path returns the semaphore path of the held lock, or "".
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// User returns the identity written into this manager's records.
func (m *Manager) User() string { return m.user }

// Verify checks that the semaphore on disk is still the one this manager
// created. A lost lock is dropped without touching the semaphore and
// reported as *Error wrapping ErrLost.
func (m *Manager) Verify() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyLocked()
}

func (m *Manager) verifyLocked() error {
	if m.file == nil || m.ownsLocked() {
		return nil
	}
	path := m.path
	m.dropLocked()
	return &Error{Op: "lost", Path: path, Err: ErrLost}
}

// Refresh rewrites the held record with the current time. It fails with
// ErrLost when the semaphore was removed or replaced meanwhile.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return nil
	}
	if err := m.verifyLocked(); err != nil {
		return err
	}
	return m.writeRecord(m.file, m.path)
}

// Keepalive refreshes the held record every interval until ctx is done.
// It also watches the semaphore's directory and verifies the lock as soon
// as the semaphore is removed, renamed or re-created. It returns nil when
// ctx ends, and a *Error wrapping ErrLost when the lock was taken away.
func (m *Manager) Keepalive(ctx context.Context, interval time.Duration) error {
	path := m.Path()
	if path == "" {
		return &Error{Op: "keepalive", Path: path, Err: ErrNotHeld}
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var (
		fsEvents <-chan fsnotify.Event
		fsErrors <-chan error
	)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.logger.Warn("cannot watch lock file", "path", path, "error", err)
	} else {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			m.logger.Warn("cannot watch lock directory", "path", path, "error", err)
		} else {
			fsEvents, fsErrors = watcher.Events, watcher.Errors
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tick:
			if err := m.Refresh(); err != nil {
				if errors.Is(err, ErrLost) {
					return err
				}
				m.logger.Warn("lock refresh failed", "error", err)
			}

		case event, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Remove | fsnotify.Rename | fsnotify.Create) {
				continue
			}
			m.logger.Debug("lock file changed", "path", path, "op", event.Op.String())
			if err := m.Verify(); err != nil {
				return err
			}

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			m.logger.Warn("lock watch error", "path", path, "error", err)
		}
	}
}

// Release drops the held lock and removes its semaphore. A semaphore that
// no longer belongs to this manager is left alone and ErrLost is returned.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked()
}

func (m *Manager) releaseLocked() error {
	if m.file == nil {
		return nil
	}
	owned := m.ownsLocked()
	path := m.path
	if owned {
		_ = os.Remove(path)
	}
	m.dropLocked()
	if !owned {
		return &Error{Op: "lost", Path: path, Err: ErrLost}
	}
	return nil
}

// dropLocked forgets the held semaphore without removing it.
func (m *Manager) dropLocked() {
	unlockAndClose(m.file)
	m.file = nil
	m.path = ""
}

// ownsLocked reports whether the semaphore at m.path is the file this
// manager created and still carries its token.
func (m *Manager) ownsLocked() bool {
	held, err := m.file.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(m.path)
	if err != nil || !os.SameFile(held, current) {
		return false
	}
	rec, err := ReadRecord(m.path)
	return err == nil && rec.Token == m.token
}

// create claims path exclusively and returns the flocked semaphore. An
// existing semaphore is reported as an error wrapping fs.ErrExist.
func (m *Manager) create(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		return nil, &Error{Op: "create", Path: path, Err: err}
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, fmt.Errorf("%s: %w", path, fs.ErrExist)
		}
		_ = os.Remove(path)
		return nil, &Error{Op: "flock", Path: path, Err: err}
	}

	if err := m.writeRecord(file, path); err != nil {
		unlockAndClose(file)
		_ = os.Remove(path)
		return nil, err
	}
	return file, nil
}

func (m *Manager) writeRecord(file *os.File, path string) error {
	data, err := json.Marshal(Record{
		User:      m.user,
		Host:      m.host,
		PID:       m.pid,
		Token:     m.token,
		Refreshed: time.Now(),
	})
	if err != nil {
		return &Error{Op: "encode", Path: path, Err: err}
	}

	if err := file.Truncate(0); err != nil {
		return &Error{Op: "truncate", Path: path, Err: err}
	}
	if _, err := file.Seek(0, 0); err != nil {
		return &Error{Op: "seek", Path: path, Err: err}
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err := file.Sync(); err != nil {
		return &Error{Op: "sync", Path: path, Err: err}
	}
	return nil
}

// isStale decides whether rec was left behind by an editor that is gone.
func (m *Manager) isStale(path string, rec *Record) bool {
	flockFree, checked := testFlock(path)
	if checked && !flockFree {
		return false
	}
	if flockFree && rec.Host == m.host && rec.PID > 0 && !IsProcessRunning(rec.PID) {
		return true
	}
	if m.safety > 0 && !rec.Refreshed.IsZero() && time.Since(rec.Refreshed) > m.safety {
		return true
	}
	return false
}

// removeStale deletes the semaphore at path while holding its flock, but only
// if it still carries rec. It reports false when another editor claimed or
// replaced the semaphore after rec was read.
func removeStale(path string, rec *Record) (bool, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() { _ = file.Close() }()

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN) }()

	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	current, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !os.SameFile(info, current) {
		return false, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return false, err
	}
	if !sameRecord(parseRecord(data, info.ModTime()), rec) {
		return false, nil
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return true, nil
}

func sameRecord(a, b *Record) bool {
	return a.User == b.User &&
		a.Host == b.Host &&
		a.PID == b.PID &&
		a.Token == b.Token &&
		a.Refreshed.Equal(b.Refreshed)
}

// Inspect reports the record guarding file, nil when unlocked, and whether
// this manager would treat it as stale.
func (m *Manager) Inspect(file string) (*Record, bool, error) {
	path := SemaphorePath(file)
	rec, err := ReadRecord(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &Error{Op: "read", Path: path, Err: err}
	}
	return rec, m.isStale(path, rec), nil
}

// Clear removes the semaphore of file regardless of its holder.
func Clear(file string) error {
	path := SemaphorePath(file)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// ReadRecord parses a semaphore file. A plain-text semaphore is read as the
// holder's user name with the file's modification time as refresh time.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return parseRecord(data, info.ModTime()), nil
}

func parseRecord(data []byte, modTime time.Time) *Record {
	var rec Record
	if err := json.Unmarshal(data, &rec); err == nil && rec.Token != "" {
		return &rec
	}
	user, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	return &Record{
		User:      strings.TrimSpace(user),
		Refreshed: modTime,
	}
}

// testFlock tries to take the holder's flock. checked is false when the
// semaphore could not be opened.
func testFlock(path string) (free bool, checked bool) {
	file, err := os.Open(path)
	if err != nil {
		return false, false
	}
	defer func() { _ = file.Close() }()

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return false, err == syscall.EWOULDBLOCK
	}
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	return true, true
}

// unlockAndClose releases the flock and closes the file.
func unlockAndClose(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}

// IsProcessRunning checks if the given PID represents a running process.
// On Unix, this sends signal 0 to check process existence.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
