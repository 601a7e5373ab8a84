package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ast-ral/divine/infrastructure/chunkdir"
	"github.com/ast-ral/divine/internal/testutil"
	"github.com/ast-ral/divine/internal/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) (string, error) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// workspace writes a config using the given store backend and returns its
// path together with the chunk directory.
func workspace(t *testing.T, backend string) (cfgPath, chunks string) {
	t.Helper()
	dir := t.TempDir()
	chunks = filepath.Join(dir, "chunks")
	cfgPath = filepath.Join(dir, "divine.yaml")

	cfg := fmt.Sprintf(`owner: ast
store:
  backend: %s
  path: %s
chunks:
  dir: %s
log:
  level: error
`, backend, filepath.Join(dir, "store", "records"), chunks)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath, chunks
}

func writeModule(t *testing.T, wasm []byte) string {
	t.Helper()
	return testutil.WriteFile(t, "guest.wasm", wasm)
}

func TestCLIHelp(t *testing.T) {
	out, err := execute("--help")
	require.NoError(t, err)

	for _, phrase := range []string{"divine", "pack", "upload", "clear", "run", "schema", "--config", "--log-level"} {
		assert.Contains(t, out, phrase)
	}
}

func TestCLIRunHelp(t *testing.T) {
	out, err := execute("run", "--help")
	require.NoError(t, err)

	for _, phrase := range []string{"--text", "--simulate", "--seed", "--timeout"} {
		assert.Contains(t, out, phrase)
	}
}

func TestCLIPackUploadRun(t *testing.T) {
	for _, backend := range []string{"file", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			cfg, chunks := workspace(t, backend)
			module := writeModule(t, wasmtest.EchoGuest(2))

			out, err := execute("--config", cfg, "pack", module)
			require.NoError(t, err)
			assert.Contains(t, out, "into 1 chunks")
			assert.Contains(t, out, "digest ")

			exists, err := chunkdir.New(chunks).Exists(0)
			require.NoError(t, err)
			assert.True(t, exists)

			out, err = execute("--config", cfg, "upload")
			require.NoError(t, err)
			assert.Contains(t, out, "chunk 0: data uploaded")
			assert.Contains(t, out, "uploaded 1 chunks")

			out, err = execute("--config", cfg, "run", "--text", "hello")
			require.NoError(t, err)

			var resp struct {
				OK        bool     `json:"ok"`
				Fragments []string `json:"fragments"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.True(t, resp.OK)
			assert.Equal(t, []string{"hello", "hello"}, resp.Fragments)
		})
	}
}

func TestCLIRunWithoutTarget(t *testing.T) {
	cfg, _ := workspace(t, "file")

	out, err := execute("--config", cfg, "run")
	require.NoError(t, err)
	assert.Equal(t, "\"pass a fragment script to `target`\"", strings.TrimSpace(out))
}

func TestCLIRunSimulate(t *testing.T) {
	cfg, _ := workspace(t, "file")
	module := writeModule(t, wasmtest.RandomGuest())

	_, err := execute("--config", cfg, "pack", module)
	require.NoError(t, err)
	_, err = execute("--config", cfg, "upload")
	require.NoError(t, err)

	first, err := execute("--config", cfg, "run", "--simulate", "--seed", "5")
	require.NoError(t, err)
	second, err := execute("--config", cfg, "run", "--simulate", "--seed", "5")
	require.NoError(t, err)

	var a, b struct {
		Fragments []string `json:"fragments"`
	}
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))
	require.Len(t, a.Fragments, 1)
	assert.Equal(t, a.Fragments, b.Fragments, "a seed fixes the guest's random draws")
}

func TestCLIClear(t *testing.T) {
	cfg, _ := workspace(t, "file")
	module := writeModule(t, wasmtest.FixedGuest([]string{"x"}))

	_, err := execute("--config", cfg, "pack", module)
	require.NoError(t, err)
	_, err = execute("--config", cfg, "upload")
	require.NoError(t, err)

	out, err := execute("--config", cfg, "clear")
	require.NoError(t, err)
	assert.Equal(t, "data cleared", strings.TrimSpace(out))

	out, err = execute("--config", cfg, "run", "--text", "x")
	require.Error(t, err)
	assert.Contains(t, out, `"type": "store"`)
}

func TestCLIUnprivileged(t *testing.T) {
	cfg, _ := workspace(t, "file")
	module := writeModule(t, wasmtest.FixedGuest([]string{"x"}))

	_, err := execute("--config", cfg, "pack", module)
	require.NoError(t, err)

	_, err = execute("--config", cfg, "--as", "mallory", "upload")
	assert.ErrorContains(t, err, `caller "mallory" may not`)

	_, err = execute("--config", cfg, "--as", "mallory", "clear")
	assert.ErrorContains(t, err, `caller "mallory" may not clear`)
}

func TestCLIUploadWithoutChunks(t *testing.T) {
	cfg, _ := workspace(t, "file")

	_, err := execute("--config", cfg, "upload")
	assert.ErrorContains(t, err, "no chunks")
}

func TestCLISchema(t *testing.T) {
	out, err := execute("schema", "store_record")
	require.NoError(t, err)
	assert.Contains(t, out, "# store_record")
	assert.Contains(t, out, `"hex"`)

	_, err = execute("schema", "bogus")
	assert.Error(t, err)
}

func TestCLIInvalidLogLevel(t *testing.T) {
	_, err := execute("--log-level", "loud", "schema")
	assert.NoError(t, err, "schema does not load config")

	cfg, _ := workspace(t, "file")
	_, err = execute("--config", cfg, "--log-level", "loud", "clear")
	assert.ErrorContains(t, err, "invalid flags")
}
