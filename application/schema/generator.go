// Package schema emits JSON schemas for the documents divine reads and
// writes.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ast-ral/divine/config"
	"github.com/ast-ral/divine/domain/entities"
	"github.com/invopop/jsonschema"
)

// Documents maps a document name to a zero value of its Go type.
var Documents = map[string]any{
	"response":     entities.Response{},
	"store_record": entities.StoreRecord{},
	"invocation":   entities.Invocation{},
	"config":       config.Config{},
}

// Names returns the document names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Documents))
	for name := range Documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go struct.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}

// ForDocument generates the schema of the named document.
func ForDocument(name string) ([]byte, error) {
	v, ok := Documents[name]
	if !ok {
		return nil, fmt.Errorf("unknown document %q", name)
	}
	return GenerateSchema(v)
}
