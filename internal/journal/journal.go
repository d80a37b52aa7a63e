// Package journal provides the append-only JSONL files the monitor writes
// opportunity records and raw stream captures to.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends JSON lines to a file. It is safe for concurrent use and
// never rewrites earlier lines.
type Writer struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens path for appending, creating parent directories and the file as
// needed. Existing content is preserved.
func Open(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Append marshals v and writes it as one line.
func (w *Writer) Append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	return w.AppendRaw(data)
}

// AppendRaw writes one pre-encoded line. A trailing newline is added.
func (w *Writer) AppendRaw(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
