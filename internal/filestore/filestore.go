// Package filestore persists small JSON documents with an atomic
// replace discipline: write a temp file in the same directory, sync it,
// then rename over the target. A reader never observes a torn file.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrCorrupt is returned by Load when the file exists but cannot be decoded.
var ErrCorrupt = errors.New("filestore: corrupt file")

// File is a JSON document on disk.
type File struct {
	path string
}

// New returns a File for path. Nothing is touched on disk.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Load decodes the file into v. A missing file returns an error matching
// fs.ErrNotExist; an undecodable one returns an error matching ErrCorrupt.
func (f *File) Load(v any) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	return nil
}

// Save atomically replaces the file with the JSON encoding of v.
func (f *File) Save(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", f.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename to %s: %w", f.path, err)
	}
	return nil
}

// Remove deletes the file. Removing a missing file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}
