package store

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	walPrefix       = "ledger_"
	walSegmentLimit = 1000
	walMaxSegments  = 10
	walRecordKey    = "ledger"
)

// WAL stores every saved ledger document as a record of a write-ahead log.
// Load returns the latest record.
//
// Records are written in sync disk mode: Save returns once the record is on
// disk.
type WAL struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWAL opens the log in dir, creating it if needed.
func NewWAL(dir string) (*WAL, error) {
	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           walPrefix,
		SegmentThreshold: walSegmentLimit,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &WAL{wal: wal}, nil
}

// Load returns the latest ledger document, false if none was ever saved.
func (s *WAL) Load() ([]byte, bool, error) {
	if s == nil || s.wal == nil {
		return nil, false, errors.New("ledger WAL is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current == 0 {
		return nil, false, nil
	}

	key, payload, err := s.wal.Get(current)
	if err != nil {
		return nil, false, errors.Wrapf(err, "read ledger WAL record %d", current)
	}

	if payload == nil {
		return nil, false, errors.Errorf("ledger WAL record %d is missing", current)
	}

	if key != walRecordKey {
		return nil, false, errors.Errorf("ledger WAL record %d has unexpected key %q", current, key)
	}

	return payload, true, nil
}

// Save appends data as the new latest ledger document.
func (s *WAL) Save(data []byte) error {
	if s == nil || s.wal == nil {
		return errors.New("ledger WAL is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(s.wal.CurrentIndex()+1, walRecordKey, data); err != nil {
		return errors.Wrap(err, "append ledger to WAL")
	}

	return nil
}

// Close closes the underlying WAL.
func (s *WAL) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger WAL is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
