// Package chunkdir stores artifact hex chunks as numbered text files in a
// directory. Chunk i lives in data_<i>.txt.
package chunkdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/ports"
)

const (
	filePrefix = "data_"
	fileSuffix = ".txt"
)

// dirConfig holds configuration for a Dir.
type dirConfig struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultDirConfig() dirConfig {
	return dirConfig{
		dirPerm:  0o755,
		filePerm: 0o644,
	}
}

// Option configures a Dir.
type Option func(*dirConfig)

// WithFilePermissions sets the permissions of chunk files. Default is 0o644.
func WithFilePermissions(perm os.FileMode) Option {
	return func(c *dirConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions used when creating the directory.
// Default is 0o755.
func WithDirPermissions(perm os.FileMode) Option {
	return func(c *dirConfig) {
		c.dirPerm = perm
	}
}

// Dir is a directory of chunk files.
type Dir struct {
	path   string
	config dirConfig
}

var (
	_ ports.ChunkSink   = (*Dir)(nil)
	_ ports.ChunkSource = (*Dir)(nil)
	_ ports.ChunkLister = (*Dir)(nil)
)

// New returns a Dir rooted at path. The directory is created on first write.
func New(path string, opts ...Option) *Dir {
	cfg := defaultDirConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dir{path: path, config: cfg}
}

// Path returns the directory holding the chunk files.
func (d *Dir) Path() string {
	return d.path
}

// FileName returns the file name used for slot index.
func FileName(index int) string {
	return filePrefix + strconv.Itoa(index) + fileSuffix
}

func (d *Dir) file(index int) string {
	return filepath.Join(d.path, FileName(index))
}

// Exists reports whether slot index holds a chunk file.
func (d *Dir) Exists(index int) (bool, error) {
	_, err := os.Stat(d.file(index))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat chunk %d: %w", index, err)
	}
	return true, nil
}

// Remove deletes the chunk file in slot index. Empty slots are ignored.
func (d *Dir) Remove(index int) error {
	err := os.Remove(d.file(index))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove chunk %d: %w", index, err)
	}
	return nil
}

// Write stores chunk in its slot.
func (d *Dir) Write(chunk entities.HexChunk) error {
	if chunk.Index < 0 {
		return fmt.Errorf("invalid chunk index %d", chunk.Index)
	}
	if err := os.MkdirAll(d.path, d.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create chunk directory: %w", err)
	}
	if err := os.WriteFile(d.file(chunk.Index), []byte(chunk.Text), d.config.filePerm); err != nil {
		return fmt.Errorf("failed to write chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// Read returns the chunk in slot index.
func (d *Dir) Read(index int) (entities.HexChunk, bool, error) {
	data, err := os.ReadFile(d.file(index))
	if os.IsNotExist(err) {
		return entities.HexChunk{}, false, nil
	}
	if err != nil {
		return entities.HexChunk{}, false, fmt.Errorf("failed to read chunk %d: %w", index, err)
	}
	return entities.HexChunk{Index: index, Text: string(data)}, true, nil
}

// Indices lists every occupied slot in ascending order. A missing directory
// has no slots.
func (d *Dir) Indices() ([]int, error) {
	entries, err := os.ReadDir(d.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk directory: %w", err)
	}

	var indices []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil || n < 0 || FileName(n) != name {
			continue
		}
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices, nil
}

// ReadAll reads the contiguous run of chunks starting at slot 0.
func (d *Dir) ReadAll() ([]entities.HexChunk, error) {
	var chunks []entities.HexChunk
	for i := 0; ; i++ {
		chunk, ok, err := d.Read(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			return chunks, nil
		}
		chunks = append(chunks, chunk)
	}
}
