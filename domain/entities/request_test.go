package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerContext_Privileged(t *testing.T) {
	tests := []struct {
		name   string
		caller CallerContext
		want   bool
	}{
		{"owner direct", CallerContext{CallerID: "ast", OwnerID: "ast", IsDirectCall: true}, true},
		{"owner via script", CallerContext{CallerID: "ast", OwnerID: "ast", IsDirectCall: false}, false},
		{"stranger direct", CallerContext{CallerID: "bob", OwnerID: "ast", IsDirectCall: true}, false},
		{"no owner", CallerContext{CallerID: "", OwnerID: "", IsDirectCall: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caller.Privileged())
		})
	}
}

func TestScriptOwner(t *testing.T) {
	assert.Equal(t, "ast", ScriptOwner("ast.divine"))
	assert.Equal(t, "solo", ScriptOwner("solo"))
	assert.Equal(t, "", ScriptOwner(""))
}

func TestResponse_MarshalJSON(t *testing.T) {
	t.Run("fragments", func(t *testing.T) {
		data, err := json.Marshal(Response{OK: true, Fragments: []string{"hi", ""}, Time: 12})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true,"fragments":["hi",""],"time":12}`, string(data))
	})

	t.Run("empty run", func(t *testing.T) {
		data, err := json.Marshal(Response{OK: true})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true,"fragments":[],"time":0}`, string(data))
	})

	t.Run("message", func(t *testing.T) {
		data, err := json.Marshal(Response{OK: true, Msg: "data cleared"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true,"msg":"data cleared"}`, string(data))
	})

	t.Run("instructional text", func(t *testing.T) {
		data, err := json.Marshal(Response{Text: "pass a fragment script"})
		require.NoError(t, err)
		assert.Equal(t, `"pass a fragment script"`, string(data))
	})

	t.Run("error", func(t *testing.T) {
		data, err := json.Marshal(Response{Error: NewErrorDetail("callback", "boom")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":false,"error":{"message":"boom","type":"callback"}}`, string(data))
	})
}

func TestErrorDetail_Error(t *testing.T) {
	assert.Equal(t, "", (*ErrorDetail)(nil).Error())
	assert.Equal(t, "decode: out of bounds [rawbox]", NewErrorDetail("decode", "out of bounds").WithCode("rawbox").Error())
	assert.Equal(t, "plain", NewErrorDetail("internal", "plain").Error())
}
