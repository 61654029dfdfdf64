package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/baxromumarov/recipe-hunter/internal/recipe"
)

// FileStore persists the whole recipe collection as one pretty-printed JSON
// array.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

// Load returns the persisted collection. A missing or malformed file yields an
// empty collection.
func (f *FileStore) Load() []recipe.Record {
	records, err := f.read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("no persisted recipes yet", "path", f.path)
		} else {
			slog.Warn("ignoring unreadable recipe file", "path", f.path, "error", err)
		}
		return []recipe.Record{}
	}
	return records
}

// Raw returns the file bytes verbatim.
func (f *FileStore) Raw() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f *FileStore) read() ([]recipe.Record, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	records := make([]recipe.Record, 0, len(items))
	dropped := 0
	for i, item := range items {
		var r recipe.Record
		if err := json.Unmarshal(item, &r); err != nil {
			dropped++
			slog.Warn("dropping unreadable recipe entry", "path", f.path, "index", i, "error", err)
			continue
		}
		records = append(records, r)
	}
	if dropped > 0 {
		slog.Warn("some persisted recipes could not be read", "path", f.path, "dropped", dropped, "kept", len(records))
	}
	return records, nil
}

// Save replaces the file contents with records. The write goes to a temp file
// in the same directory and is renamed into place.
func (f *FileStore) Save(records []recipe.Record) error {
	if records == nil {
		records = []recipe.Record{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recipes: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".recipes-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
