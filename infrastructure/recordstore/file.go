package recordstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/ports"
	"gopkg.in/yaml.v3"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	path     string      // Path to the records file
	dirPerm  os.FileMode // Permission for created directories
	filePerm os.FileMode // Permission for the records file
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     filepath.Join(".divine", "records.yaml"),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path to the records file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the file permissions for the records file.
// Default is 0o600 (user-only).
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the directory permissions for the records
// directory. Default is 0o755.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// FileStore persists records as a YAML mapping from id to record.
// Every Put or Delete rewrites the whole file.
type FileStore struct {
	config fileStoreConfig
	mu     sync.Mutex
}

var _ ports.RecordStore = (*FileStore)(nil)

// NewFileStore creates a new FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Get implements ports.RecordStore.
func (s *FileStore) Get(id string) (entities.StoreRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return entities.StoreRecord{}, false, err
	}
	rec, ok := records[id]
	return rec, ok, nil
}

// Put implements ports.RecordStore.
func (s *FileStore) Put(id string, rec entities.StoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records[id] = rec
	return s.save(records)
}

// Delete implements ports.RecordStore.
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records[id]; !ok {
		return nil
	}
	delete(records, id)
	return s.save(records)
}

// Path returns the path to the backing file.
func (s *FileStore) Path() string {
	return s.config.path
}

func (s *FileStore) load() (map[string]entities.StoreRecord, error) {
	records := make(map[string]entities.StoreRecord)

	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record store: %w", err)
	}

	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse record store: %w", err)
	}
	if records == nil {
		records = make(map[string]entities.StoreRecord)
	}
	return records, nil
}

func (s *FileStore) save(records map[string]entities.StoreRecord) error {
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create record store directory: %w", err)
	}

	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return fmt.Errorf("failed to write record store: %w", err)
	}
	return nil
}
