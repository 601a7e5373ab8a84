// Package artifactstore accumulates uploaded hex chunks into the single
// persisted artifact record.
package artifactstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/errors"
	"github.com/ast-ral/divine/domain/ports"
)

// storeConfig holds configuration for a Store.
type storeConfig struct {
	logger   *slog.Logger
	recordID string
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		logger:   slog.Default(),
		recordID: entities.DefaultRecordID,
	}
}

// Option configures a Store.
type Option func(*storeConfig)

// WithRecordID sets the record identifier. Default is entities.DefaultRecordID.
func WithRecordID(id string) Option {
	return func(c *storeConfig) {
		c.recordID = id
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *storeConfig) {
		c.logger = l
	}
}

// Store implements ports.ArtifactStore on top of a RecordStore.
//
// Appends are serialized within a process so that two concurrent appends
// cannot lose each other's fragment. Chunks are neither reordered nor
// checked for completeness.
type Store struct {
	records ports.RecordStore
	config  storeConfig
	mu      sync.Mutex
}

var _ ports.ArtifactStore = (*Store)(nil)

// New creates a Store backed by records.
func New(records ports.RecordStore, opts ...Option) *Store {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{records: records, config: cfg}
}

// RecordID returns the identifier of the persisted record.
func (s *Store) RecordID() string {
	return s.config.recordID
}

// Clear deletes the persisted record. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.records.Delete(s.config.recordID); err != nil {
		return &errors.StoreError{Err: err, Op: "clear", ID: s.config.recordID}
	}
	s.config.logger.DebugContext(ctx, "artifact cleared", "record", s.config.recordID)
	return nil
}

// Append concatenates hexFragment onto the persisted record, creating it if
// absent.
func (s *Store) Append(ctx context.Context, hexFragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, _, err := s.records.Get(s.config.recordID)
	if err != nil {
		return &errors.StoreError{Err: err, Op: "append", ID: s.config.recordID}
	}

	rec.Hex += hexFragment
	if err := s.records.Put(s.config.recordID, rec); err != nil {
		return &errors.StoreError{Err: err, Op: "append", ID: s.config.recordID}
	}

	s.config.logger.DebugContext(ctx, "artifact chunk appended",
		"record", s.config.recordID,
		"fragment_len", len(hexFragment),
		"total_len", len(rec.Hex))
	return nil
}

// Read returns the accumulated hex text. It fails with
// ports.ErrArtifactNotFound when nothing has been uploaded.
func (s *Store) Read(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.records.Get(s.config.recordID)
	if err != nil {
		return "", &errors.StoreError{Err: err, Op: "read", ID: s.config.recordID}
	}
	if !ok {
		return "", &errors.StoreError{Err: ports.ErrArtifactNotFound, Op: "read", ID: s.config.recordID}
	}
	return rec.Hex, nil
}
