package chunkdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ast-ral/divine/artifact"
	"github.com/ast-ral/divine/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_WriteReadRemove(t *testing.T) {
	dir := New(filepath.Join(t.TempDir(), "as_hex"))

	ok, err := dir.Exists(0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, dir.Write(entities.HexChunk{Index: 0, Text: "abcd"}))

	ok, err = dir.Exists(0)
	require.NoError(t, err)
	assert.True(t, ok)

	chunk, ok, err := dir.Read(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abcd", chunk.Text)

	data, err := os.ReadFile(filepath.Join(dir.Path(), "data_0.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	require.NoError(t, dir.Remove(0))
	require.NoError(t, dir.Remove(0))

	_, ok, err = dir.Read(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDir_Indices(t *testing.T) {
	root := t.TempDir()
	dir := New(root)

	indices, err := New(filepath.Join(root, "missing")).Indices()
	require.NoError(t, err)
	assert.Empty(t, indices)

	for _, i := range []int{10, 0, 2} {
		require.NoError(t, dir.Write(entities.HexChunk{Index: i, Text: "00"}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data_x.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data_01.txt"), nil, 0o644))

	indices, err = dir.Indices()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 10}, indices)
}

func TestDir_WriteNegativeIndex(t *testing.T) {
	err := New(t.TempDir()).Write(entities.HexChunk{Index: -1})
	assert.ErrorContains(t, err, "invalid chunk index")
}

func TestDir_PackageRoundTrip(t *testing.T) {
	dir := New(t.TempDir())
	data := make([]byte, entities.MaxChunkBytes*2+3)
	for i := range data {
		data[i] = byte(i)
	}

	_, err := artifact.NewWriter(dir).Package(data)
	require.NoError(t, err)

	chunks, err := dir.ReadAll()
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	joined, err := artifact.Join(chunks)
	require.NoError(t, err)
	got, err := artifact.DecodeHex(joined)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Repackaging a one-chunk artifact leaves a single file behind.
	_, err = artifact.NewWriter(dir).Package([]byte{0xaa})
	require.NoError(t, err)
	indices, err := dir.Indices()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, indices)
}
