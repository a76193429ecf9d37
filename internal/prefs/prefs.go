// Package prefs persists user preferences between runs: remembered answers
// to optional questions and the most recently opened maps.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

const (
	// SectionConfirm holds answers stored through "don't show again".
	SectionConfirm = "confirm"
	// SectionRecent holds the recently opened files, newest first.
	SectionRecent = "recent"
	// MaxRecentFiles bounds the recent files list.
	MaxRecentFiles = 10
)

// Store is an ini-file backed preference store. An empty path keeps the
// preferences in memory only.
type Store struct {
	path string
	mu   sync.Mutex
	file *ini.File
}

// Open loads the preferences at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		s.file = ini.Empty()
		return s, nil
	}

	file, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("load preferences %s: %w", path, err)
	}
	s.file = file
	return s, nil
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string { return s.path }

// splitKey splits "section.name"; a key without a dot lives in the default section.
func splitKey(key string) (string, string) {
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return ini.DefaultSection, key
	}
	return section, name
}

// Get returns the value for "section.name", or "".
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	section, name := splitKey(key)
	return s.lookupLocked(section, name)
}

// lookupLocked reads a value without creating the section or key.
func (s *Store) lookupLocked(section, name string) string {
	sec, err := s.file.GetSection(section)
	if err != nil {
		return ""
	}
	key, err := sec.GetKey(name)
	if err != nil {
		return ""
	}
	return key.String()
}

// Set stores value under "section.name" without saving.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	section, name := splitKey(key)
	s.file.Section(section).Key(name).SetValue(value)
}

// Keys returns every stored key as "section.name", sorted. Keys of the
// default section have no section prefix.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for _, section := range s.file.Sections() {
		for _, key := range section.Keys() {
			if section.Name() == ini.DefaultSection {
				keys = append(keys, key.Name())
				continue
			}
			keys = append(keys, section.Name()+"."+key.Name())
		}
	}
	sort.Strings(keys)
	return keys
}

// Save writes the preferences to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}
	if err := s.file.SaveTo(s.path); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// RememberedAnswer returns the stored answer to question and whether one exists.
func (s *Store) RememberedAnswer(question string) (answer bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.file.Section(SectionConfirm).GetKey(question)
	if err != nil {
		return false, false
	}
	answer, err = key.Bool()
	if err != nil {
		return false, false
	}
	return answer, true
}

// RememberAnswer stores the answer to question and saves.
func (s *Store) RememberAnswer(question string, answer bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.file.Section(SectionConfirm).Key(question).SetValue(strconv.FormatBool(answer))
	return s.saveLocked()
}

// ForgetAnswer removes a stored answer and saves.
func (s *Store) ForgetAnswer(question string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.file.Section(SectionConfirm).DeleteKey(question)
	return s.saveLocked()
}

// RecentFiles returns the recently opened files, newest first.
func (s *Store) RecentFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentLocked()
}

func (s *Store) recentLocked() []string {
	var files []string
	for i := 1; i <= MaxRecentFiles; i++ {
		value := s.lookupLocked(SectionRecent, strconv.Itoa(i))
		if value == "" {
			break
		}
		files = append(files, value)
	}
	return files
}

// AddRecentFile moves path to the front of the recent files list and saves.
// Relative paths are stored as absolute paths.
func (s *Store) AddRecentFile(path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files := []string{path}
	for _, f := range s.recentLocked() {
		if f != path {
			files = append(files, f)
		}
	}
	if len(files) > MaxRecentFiles {
		files = files[:MaxRecentFiles]
	}

	s.file.DeleteSection(SectionRecent)
	section := s.file.Section(SectionRecent)
	for i, f := range files {
		section.Key(strconv.Itoa(i + 1)).SetValue(f)
	}
	return s.saveLocked()
}
