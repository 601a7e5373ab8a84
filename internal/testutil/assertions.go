// Package testutil provides common test helpers for divine's packages.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ast-ral/divine/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...any) {
	t.Helper()

	var expectedJSON, actualJSON any
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// AssertErrorType asserts that err is reported to callers with the given
// ErrorDetail type, such as "link" or "callback".
func AssertErrorType(t *testing.T, err error, wantType string, msgAndArgs ...any) {
	t.Helper()

	require.Error(t, err, msgAndArgs...)
	detail := errors.ToErrorDetail(err)
	assert.Equal(t, wantType, detail.Type, msgAndArgs...)
}

// WriteFile writes data to name inside a fresh temporary directory and
// returns the file's path.
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
