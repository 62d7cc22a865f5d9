package store

import (
	"fmt"
	"io"

	"github.com/etnz/cryptofolio"
)

// Backend names.
const (
	BackendFile = "file"
	BackendWAL  = "wal"
)

// Backend is a ledger store that must be closed after use.
type Backend interface {
	cryptofolio.Store
	io.Closer
}

// Open returns the backend named kind at path: a json file for "file", a
// log directory for "wal".
func Open(kind, path string) (Backend, error) {
	switch kind {
	case "", BackendFile:
		return NewFile(path), nil
	case BackendWAL:
		wal, err := NewWAL(path)
		if err != nil {
			return nil, err
		}
		return wal, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q, want %q or %q", kind, BackendFile, BackendWAL)
	}
}

// Close is a no-op, every Save is complete on return.
func (s *File) Close() error { return nil }
