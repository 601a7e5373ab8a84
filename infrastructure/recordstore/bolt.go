package recordstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/ports"
	bolt "go.etcd.io/bbolt"
)

// ErrClosed is returned when operating on a closed BoltStore.
var ErrClosed = errors.New("record store closed")

// bucketRecords holds one JSON-encoded StoreRecord per id.
var bucketRecords = []byte("records")

// BoltStore persists records in a bbolt database.
type BoltStore struct {
	db     *bolt.DB
	mu     sync.RWMutex
	closed bool
}

var _ ports.RecordStore = (*BoltStore)(nil)

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Get implements ports.RecordStore.
func (s *BoltStore) Get(id string) (entities.StoreRecord, bool, error) {
	if err := s.checkOpen(); err != nil {
		return entities.StoreRecord{}, false, err
	}

	var (
		rec   entities.StoreRecord
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return entities.StoreRecord{}, false, fmt.Errorf("get record: %w", err)
	}
	return rec, found, nil
}

// Put implements ports.RecordStore.
func (s *BoltStore) Put(id string, rec entities.StoreRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Put([]byte(id), data)
	})
}

// Delete implements ports.RecordStore.
func (s *BoltStore) Delete(id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Delete([]byte(id))
	})
}

// Close releases the database.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
