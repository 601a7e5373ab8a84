package ports

import (
	"context"
	"errors"
)

// ErrArtifactNotFound is returned by ArtifactStore.Read when nothing has been
// uploaded since the last clear.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore accumulates uploaded hex chunks into a single blob.
// Callers append chunks in index order; the store neither reorders them nor
// checks completeness.
type ArtifactStore interface {
	// Clear removes the persisted blob.
	Clear(ctx context.Context) error

	// Append concatenates a hex fragment onto the persisted blob.
	Append(ctx context.Context, hexFragment string) error

	// Read returns the full hex blob.
	Read(ctx context.Context) (string, error)
}
