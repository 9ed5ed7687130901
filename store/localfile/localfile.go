package localfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/mindtastic/discovery"
	"github.com/mindtastic/discovery/log"
)

// Ensure that LocalFileStore implements the discovery.Cache interface
var _ discovery.Cache = (*LocalFileStore)(nil)

const defaultFlushInterval = 10 * time.Second

var ErrStoreClosed = errors.New("store is closed")

// LocalFileStore is an in memory discovery.Cache that persists its entries on disk at regular intervals.
// It is safe for concurrent access. Entries survive process restarts when persistence is initialized.
type LocalFileStore struct {
	mu            sync.RWMutex
	store         map[string]string
	flushInterval time.Duration
	stopped       bool
	shutdown      sync.Once
	stop          chan struct{}
	dbPath        string // Only set if persistence is enabled
}

// New creates a new LocalFileStore.
// After creating a new LocalFileStore lfs, InitializePersistence should be called to load any existing data or create a new
// store on disk. Not doing so will cause lfs to keep data only in memory and not persist it to disk.
func New() *LocalFileStore {
	return &LocalFileStore{
		store:         make(map[string]string),
		flushInterval: defaultFlushInterval,
		stop:          make(chan struct{}),
	}
}

// InitializePersistence initializes the persistence layer of LocalFileStore.
// dbpath denotes the path to a data file which will be loaded.
// If it does not exist, it will be created.
// If dbpath is empty, LocalFileStore will not be initialized with persistence and all data is stored in memory only.
func (l *LocalFileStore) InitializePersistence(dbpath string) error {
	if dbpath == "" {
		return nil
	}
	dbFile, err := os.Open(dbpath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("error opening file: %v", err)
		}
		p := path.Dir(dbpath)
		if err := os.MkdirAll(p, 0700); err != nil {
			return fmt.Errorf("error creating path %s: %v", p, err)
		}
		f, err := os.Create(dbpath)
		if err != nil {
			return fmt.Errorf("error creating file %s: %v", dbpath, err)
		}
		dbFile = f
	}
	defer dbFile.Close()

	d := json.NewDecoder(dbFile)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := d.Decode(&l.store); err != nil && err != io.EOF {
		return fmt.Errorf("error decoding existing database file %s: %v", dbpath, err)
	}
	if l.store == nil {
		// A file containing "null" decodes into a nil map.
		l.store = make(map[string]string)
	}
	l.dbPath = dbpath
	go l.flushAtInterval(l.flushInterval)
	return nil
}

func (l *LocalFileStore) flushAtInterval(i time.Duration) {
	t := time.NewTicker(i)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			if err := l.Flush(); err != nil {
				log.Errorf("error flushing local cache: %v", err)
			}
		}
	}
}

// Flush writes the current state to disk. The store blocks writes while flushing.
func (l *LocalFileStore) Flush() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.dbPath == "" { // Persistence not enabled.
		return nil
	}
	dd, err := json.Marshal(l.store)
	if err != nil {
		return fmt.Errorf("error encoding data in store: %v", err)
	}
	if err := os.WriteFile(l.dbPath, dd, 0600); err != nil {
		return fmt.Errorf("error writing data file %s: %v", l.dbPath, err)
	}
	return nil
}

// Shutdown gracefully stops the LocalFileStore, ensuring that data is persisted to disk one last time.
// After Shutdown is called, Get, Set and Remove immediately return ErrStoreClosed.
// A closed store cannot be reused.
func (l *LocalFileStore) Shutdown() error {
	var err error
	l.shutdown.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.stop)
		err = l.Flush()
	})
	return err
}

// Set stores value under key in memory. It will not automatically be flushed to disk.
func (l *LocalFileStore) Set(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStoreClosed
	}
	l.store[key] = value
	return nil
}

// Get retrieves an existing entry. It returns discovery.ErrNotFound if key does not exist.
func (l *LocalFileStore) Get(key string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return "", ErrStoreClosed
	}
	v, ok := l.store[key]
	if !ok {
		return "", fmt.Errorf("could not get key %s: %w", key, discovery.ErrNotFound)
	}
	return v, nil
}

// Remove deletes the entry stored under key. Removing a missing key is not an error.
func (l *LocalFileStore) Remove(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStoreClosed
	}
	delete(l.store, key)
	return nil
}
