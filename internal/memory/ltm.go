// Package memory keeps conversation state: a bounded window of recent turns
// and long-term summaries persisted between sessions.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/fsutil"
)

// Summaries are the long-term memory: what is known about the user and what
// has happened in the conversation so far.
type Summaries struct {
	User string `json:"user_summary"`
	Chat string `json:"chat_summary"`
}

// LongTerm stores Summaries in a JSON file.
type LongTerm struct {
	path string

	mu        sync.Mutex
	summaries Summaries
}

// NewLongTerm returns an empty long-term memory backed by path.
func NewLongTerm(path string) *LongTerm {
	return &LongTerm{path: path}
}

// Path returns the backing file.
func (l *LongTerm) Path() string { return l.path }

// Load reads the backing file. A missing file leaves both summaries empty.
func (l *LongTerm) Load() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.Set(Summaries{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load long-term memory: %w", err)
	}
	var s Summaries
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.NewError("load long-term memory", domain.ErrCorruptArtifact, l.path, "%v", err)
	}
	l.Set(s)
	return nil
}

// Save writes the summaries atomically.
func (l *LongTerm) Save() error {
	data, err := json.MarshalIndent(l.Get(), "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(l.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save long-term memory: %w", err)
	}
	return nil
}

// Get returns the current summaries.
func (l *LongTerm) Get() Summaries {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summaries
}

// Set replaces the summaries in memory.
func (l *LongTerm) Set(s Summaries) {
	l.mu.Lock()
	l.summaries = s
	l.mu.Unlock()
}
