package artifact

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/ports"
)

// writerConfig holds configuration for the Writer.
type writerConfig struct {
	logger      *slog.Logger
	chunkHexLen int
	sweep       bool
}

func defaultWriterConfig() writerConfig {
	return writerConfig{
		logger:      slog.Default(),
		chunkHexLen: entities.MaxChunkHexLen,
	}
}

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

// WithChunkHexLen sets the maximum hex characters per chunk. The value must
// be positive, even, and no larger than entities.MaxChunkHexLen.
func WithChunkHexLen(n int) WriterOption {
	return func(c *writerConfig) {
		c.chunkHexLen = n
	}
}

// WithSweep makes the stale-slot cleanup remove every occupied slot reported
// by the sink, not just the contiguous run starting at index 0. It only takes
// effect when the sink implements ports.ChunkLister.
func WithSweep(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.sweep = enabled
	}
}

// WithLogger sets the logger used for packaging progress.
func WithLogger(l *slog.Logger) WriterOption {
	return func(c *writerConfig) {
		c.logger = l
	}
}

// Writer packages artifacts into ordered hex chunks.
type Writer struct {
	sink   ports.ChunkSink
	config writerConfig
}

// NewWriter creates a Writer that stores chunks in sink.
func NewWriter(sink ports.ChunkSink, opts ...WriterOption) *Writer {
	cfg := defaultWriterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Writer{sink: sink, config: cfg}
}

// Package replaces the chunk set held by the sink with the chunks of data.
//
// Existing slots are removed first, scanning upward from index 0 until the
// first empty slot. Slots beyond a pre-existing gap survive unless sweeping
// is enabled.
func (w *Writer) Package(data []byte) ([]entities.HexChunk, error) {
	size := w.config.chunkHexLen
	if size <= 0 || size%2 != 0 || size > entities.MaxChunkHexLen {
		return nil, fmt.Errorf("invalid chunk size %d", size)
	}

	removed, err := w.clearSlots()
	if err != nil {
		return nil, err
	}

	chunks := Split(EncodeHex(data), size)
	for _, chunk := range chunks {
		if err := w.sink.Write(chunk); err != nil {
			return nil, fmt.Errorf("write chunk %d: %w", chunk.Index, err)
		}
	}

	w.config.logger.Debug("artifact packaged",
		"bytes", len(data),
		"chunks", len(chunks),
		"removed", removed,
		"digest", Sum(data).Short())
	return chunks, nil
}

func (w *Writer) clearSlots() (int, error) {
	removed := 0
	for i := 0; ; i++ {
		exists, err := w.sink.Exists(i)
		if err != nil {
			return removed, fmt.Errorf("probe chunk %d: %w", i, err)
		}
		if !exists {
			break
		}
		if err := w.sink.Remove(i); err != nil {
			return removed, fmt.Errorf("remove chunk %d: %w", i, err)
		}
		removed++
	}

	if !w.config.sweep {
		return removed, nil
	}
	lister, ok := w.sink.(ports.ChunkLister)
	if !ok {
		return removed, nil
	}
	indices, err := lister.Indices()
	if err != nil {
		return removed, fmt.Errorf("list chunks: %w", err)
	}
	for _, i := range indices {
		if err := w.sink.Remove(i); err != nil {
			return removed, fmt.Errorf("remove chunk %d: %w", i, err)
		}
		removed++
	}
	return removed, nil
}

// Split cuts hex text into 0-indexed chunks of at most size characters.
// Empty text yields no chunks.
func Split(hexText string, size int) []entities.HexChunk {
	count := (len(hexText) + size - 1) / size
	chunks := make([]entities.HexChunk, 0, count)
	for i := 0; i < count; i++ {
		end := min((i+1)*size, len(hexText))
		chunks = append(chunks, entities.HexChunk{Index: i, Text: hexText[i*size : end]})
	}
	return chunks
}

// Join concatenates chunks in index order. Indices must form the sequence
// 0..len(chunks)-1.
func Join(chunks []entities.HexChunk) (string, error) {
	sorted := make([]entities.HexChunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var b strings.Builder
	for i, chunk := range sorted {
		if chunk.Index != i {
			return "", fmt.Errorf("missing chunk %d", i)
		}
		b.WriteString(chunk.Text)
	}
	return b.String(), nil
}
