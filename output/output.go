// Package output writes result sets to JSON files.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Writer saves results under one directory. Concurrent writes never share a
// file name, so no locking is needed.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// WriteJSON encodes v as indented UTF-8 JSON into a new file named
// <prefix>_<UTC timestamp>_<id>.json and returns its path. The file appears
// complete or not at all.
func (w *Writer) WriteJSON(prefix string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("output: encode: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.json",
		prefix,
		w.now().UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8],
	)
	path := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("output: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("output: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("output: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("output: rename: %w", err)
	}
	return path, nil
}
