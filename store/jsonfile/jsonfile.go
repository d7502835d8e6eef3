/*
Package jsonfile stores leave records in a single JSON document.

PURPOSE:
  Default backend. The whole collection lives in one file (entries.json),
  an array of records in insertion order.

ATOMIC REPLACE:
  SaveAll writes to a temp file in the same directory, syncs it, then
  renames it over the target. A crash leaves either the old or the new
  document, never a torn one. Readers do not take the write lock.

TOLERANT LOAD:
  - Missing file      -> empty collection
  - Empty file        -> empty collection
  - Malformed JSON    -> empty collection, logged at error level
  - Duplicate ids     -> collapsed by leave.Dedupe

USAGE:
  store, err := jsonfile.New("./data/entries.json")
  svc := leave.NewService(store)

SEE ALSO:
  - leave/store.go: Interface definition
  - store/sqlite: Alternate backend
*/
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/warp/leave-tracker/leave"
	"go.uber.org/zap"
)

// Store implements leave.Store over a JSON file.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// New creates a store for path. The parent directory is created if needed.
func New(path string, logger ...*zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	l := zap.L().Named("store.jsonfile")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("store.jsonfile")
	}
	return &Store{path: path, logger: l}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// LoadAll reads the whole collection.
func (s *Store) LoadAll(_ context.Context) ([]leave.Request, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []leave.Request{}, nil
	}
	if err != nil {
		return nil, &leave.StoreError{Op: "load", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []leave.Request{}, nil
	}

	var records []leave.Request
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Error("malformed record file, treating as empty",
			zap.String("path", s.path), zap.Error(err))
		return []leave.Request{}, nil
	}
	return leave.Dedupe(records), nil
}

// SaveAll atomically replaces the collection.
func (s *Store) SaveAll(_ context.Context, records []leave.Request) error {
	records = leave.Dedupe(records)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &leave.StoreError{Op: "encode", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := WriteFileAtomic(s.path, data, 0o644); err != nil {
		return &leave.StoreError{Op: "save", Err: err}
	}
	return nil
}

// WriteFileAtomic writes data to a sibling temp file and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
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
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
