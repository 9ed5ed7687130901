package logstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mindtastic/discovery"
	"github.com/mindtastic/discovery/log"
)

// Ensure that Store implements the discovery.Cache interface
var _ discovery.Cache = (*Store)(nil)

const (
	logFileName          = "logstore.db"
	defaultMaxRecordSize = 1 << 20 // 1 Megabyte
)

// Store is a persistent, append only, log based discovery.Cache.
// Every Set and Remove appends a record; Get returns the latest record of a key.
type Store struct {
	// Path of the underlying logfile
	storagePath string
	// Maximum allowed size of a single serialized record
	maxRecordSize int
	// Set the sync flag to actually write to disk (using sync systemcall) after each database write access.
	// Synchronous mode might cause dramatic performance decrease.
	sync bool

	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithSync makes every write wait for the log file to be synced to disk.
func WithSync() Option {
	return func(s *Store) {
		s.sync = true
	}
}

// WithMaxRecordSize limits the serialized size of a single record.
func WithMaxRecordSize(n int) Option {
	return func(s *Store) {
		s.maxRecordSize = n
	}
}

// NewStore opens the log in storeDir, creating the directory and the log file if necessary.
func NewStore(storeDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(storeDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store dir %v: %w", storeDir, err)
	}
	p := filepath.Join(storeDir, logFileName)

	f, err := os.OpenFile(p, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create db file %v: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	s := &Store{
		storagePath:   p,
		maxRecordSize: defaultMaxRecordSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the latest value stored for key. It returns a *NotFoundError, which matches
// discovery.ErrNotFound, if key was never set or has been removed.
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.storagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open db file %v: %w", s.storagePath, err)
	}
	defer f.Close()

	sc := newScanner(f, s.maxRecordSize)

	var r *record
	for sc.Scan() {
		read := sc.record()
		if read.key == key {
			r = read
		}
	}

	if err := sc.Err(); err != nil {
		log.Errorf("error encountered on reading db %v: %v", s.storagePath, err)
		return "", fmt.Errorf("failed to read db file %v: %w", s.storagePath, err)
	}

	if r == nil || r.isTombstone() {
		return "", NewNotFoundError(key)
	}

	return string(r.value), nil
}

// Set appends a value record for key.
func (s *Store) Set(key, value string) error {
	return s.append(newValue(key, value))
}

// Remove appends a tombstone for key.
func (s *Store) Remove(key string) error {
	return s.append(newTombstone(key))
}

// append writes a record to the end of the log. It is used internally to store new and
// delete records.
func (s *Store) append(r *record) error {
	if r.size() > s.maxRecordSize {
		return NewBadRequestError(fmt.Sprintf("value too big. max. allowed size is: %v (got: %v)", s.maxRecordSize, r.size()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.storagePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open db file %v for writing: %w", s.storagePath, err)
	}
	defer f.Close()

	bytesWritten, err := r.write(f)
	if err != nil {
		return fmt.Errorf("failed to write record to file %v: %w", s.storagePath, err)
	}
	log.Debugf("wrote record of %d bytes to %v", bytesWritten, s.storagePath)

	if s.sync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("failed to sync db file %v: %w", s.storagePath, err)
		}
	}

	return f.Close()
}
