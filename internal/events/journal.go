package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Journal writes every event it receives to a JSON lines file.
// It is a Listener; subscribe it to a Bus after Open.
type Journal struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJournal creates a Journal that writes to the specified path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// largeJournalThreshold is the size above which we warn about large journals.
const largeJournalThreshold = 100 * 1024 * 1024 // 100MB

// Open creates the directory, rotates a non-empty previous journal and opens
// a fresh file for appending.
func (j *Journal) Open() error {
	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	if err := j.rotateExisting(); err != nil {
		return err
	}

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	j.mu.Lock()
	j.file = file
	j.encoder = json.NewEncoder(file)
	j.mu.Unlock()

	return nil
}

// rotateExisting renames an existing journal with a timestamp suffix.
func (j *Journal) rotateExisting() error {
	info, err := os.Stat(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat journal: %w", err)
	}

	if info.Size() == 0 {
		return nil
	}

	if info.Size() > largeJournalThreshold {
		fmt.Fprintf(os.Stderr, "journal: warning: large journal (%d MB), consider cleaning up old .bak files in %s\n",
			info.Size()/(1024*1024), filepath.Dir(j.path))
	}

	timestamp := time.Now().Format("2006-01-02T15-04-05")
	bakPath := fmt.Sprintf("%s.%s.bak", j.path, timestamp)

	if err := os.Rename(j.path, bakPath); err != nil {
		return fmt.Errorf("rotate journal: %w", err)
	}

	return nil
}

// HandleEvent appends the event as one JSON line.
func (j *Journal) HandleEvent(event Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.encoder == nil {
		return
	}

	if err := j.encoder.Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "journal: failed to write event: %v\n", err)
	}
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		j.encoder = nil
		return err
	}
	return nil
}

// Path returns the journal path.
func (j *Journal) Path() string {
	return j.path
}
