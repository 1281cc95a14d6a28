package persistence

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Store keeps a Document in a YAML file. Writes replace the file
// atomically.
type Store struct {
	mu   sync.Mutex
	path string
	last [sha256.Size]byte
}

// NewStore creates a store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes doc to disk.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	doc.Version = DocumentVersion
	if doc.SavedAt.IsZero() {
		doc.SavedAt = time.Now().UTC()
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return err
	}
	s.last = sha256.Sum256(buf.Bytes())
	return nil
}

// Load reads the document from disk.
// Returns nil, nil if the file doesn't exist.
func (s *Store) Load() (*Document, error) {
	doc, _, err := s.load()
	return doc, err
}

// load also reports whether the file differs from what Save last wrote.
func (s *Store) load() (*Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	changed := sha256.Sum256(data) != s.last

	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, changed, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]Entry)
	}
	return doc, changed, nil
}

// Clear removes the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
