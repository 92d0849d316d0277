package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// EntryType defines the type of audit entry
type EntryType string

const (
	EntryObserved EntryType = "observed" // probe result for a target
	EntryImported EntryType = "imported" // address brought under state management
	EntrySkipped  EntryType = "skipped"  // already tracked or not applicable
	EntryExcluded EntryType = "excluded" // import withheld by policy
	EntryFailed   EntryType = "failed"   // import failed after retries
	EntryVerified EntryType = "verified" // verification dimension result
)

// Entry represents a single audit entry
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	Type      EntryType       `json:"type"`
	Address   string          `json:"address,omitempty"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error,omitempty"`
}

// WAL is an append-only audit trail of sweep events, one JSON entry per
// line, a fresh timestamped file per run.
type WAL struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates a new audit file in the specified directory
func Open(dir string) (*WAL, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	filename := fmt.Sprintf("guardsync-%s.wal", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G304 -- path built from fixed format
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &WAL{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}, nil
}

// Close flushes and closes the audit file
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

// Append adds an entry to the audit trail
func (w *WAL) Append(entryType EntryType, address string, data interface{}) error {
	return w.append(entryType, address, data, nil)
}

// AppendError adds an entry carrying an error
func (w *WAL) AppendError(entryType EntryType, address string, data interface{}, cause error) error {
	return w.append(entryType, address, data, cause)
}

func (w *WAL) append(entryType EntryType, address string, data interface{}, cause error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sequence++

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  w.sequence,
		Type:      entryType,
		Address:   address,
		Data:      jsonData,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	return w.writeEntry(entry)
}

// writeEntry writes a single entry and flushes for durability
func (w *WAL) writeEntry(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := w.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return w.file.Sync()
}

// ReadAll reads every entry from the most recent audit file in dir.
func ReadAll(dir string) ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "guardsync-*.wal"))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit files: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)
	return readFile(matches[len(matches)-1])
}

func readFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from our own glob
	if err != nil {
		return nil, fmt.Errorf("failed to read audit file: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("corrupt audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
