package tool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists the full descriptor set as a single JSON document. There is
// no partial-update path: every mutation loads the current state, modifies it
// in memory, and saves the whole document back. Save is atomic (temp file in
// the same directory, then rename) so a crash mid-write never leaves a
// half-written store behind.
type Store struct {
	path string
}

type storeDocument struct {
	Tools       []Descriptor `json:"tools"`
	LastUpdated time.Time    `json:"last_updated"`
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the persisted document.
func (s *Store) Path() string { return s.path }

// Load reads the full descriptor set. A missing file is an empty catalog,
// not an error.
func (s *Store) Load() ([]Descriptor, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Err: err}
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &CorruptStoreError{Path: s.path, Err: err}
	}
	return doc.Tools, nil
}

// Save writes the full descriptor set atomically.
func (s *Store) Save(tools []Descriptor) error {
	doc := storeDocument{
		Tools:       tools,
		LastUpdated: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".tool_metadata-*")
	if err != nil {
		return &PersistenceError{Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "rename", Err: fmt.Errorf("replace %s: %w", s.path, err)}
	}
	return nil
}
