package ports

import "github.com/ast-ral/divine/domain/entities"

// ChunkSink receives the chunks of a packaging run.
type ChunkSink interface {
	// Exists reports whether a chunk slot is occupied.
	Exists(index int) (bool, error)

	// Remove empties a chunk slot.
	Remove(index int) error

	// Write stores a chunk in its slot, replacing any previous content.
	Write(chunk entities.HexChunk) error
}

// ChunkSource reads back chunks written by a ChunkSink.
type ChunkSource interface {
	// Read returns the chunk in the given slot. The boolean is false when the
	// slot is empty.
	Read(index int) (entities.HexChunk, bool, error)
}

// ChunkLister enumerates every occupied chunk slot, including slots beyond
// a gap in the index sequence.
type ChunkLister interface {
	Indices() ([]int, error)
}
