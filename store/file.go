// Package store provides the durable backends of a cryptofolio.Ledger.
package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// File stores the ledger document in a single file.
//
// Save writes a temp file in the same directory, syncs it and renames it over
// the previous file, so a crash never leaves a partially written ledger.
type File struct {
	path   string
	mu     sync.Mutex
	rename func(oldpath, newpath string) error
}

// NewFile returns a store writing to path. The directory is created on the
// first Save.
func NewFile(path string) *File {
	return &File{path: path, rename: os.Rename}
}

// Path returns the ledger file path.
func (s *File) Path() string { return s.path }

// Load reads the ledger file. It returns false if the file does not exist.
func (s *File) Load() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, errors.Wrap(err, "read ledger file")
	}

	return payload, true, nil
}

// Save atomically replaces the ledger file with data.
func (s *File) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create ledger dir")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create ledger temp file")
	}
	// removing after a successful rename fails silently.
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write ledger temp file")
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync ledger temp file")
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close ledger temp file")
	}

	if err := s.rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "persist ledger")
	}

	// the rename is durable once the directory entry is synced.
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "open ledger dir")
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return errors.Wrap(err, "sync ledger dir")
	}

	return nil
}
