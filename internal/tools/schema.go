package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	schemacheck "github.com/santhosh-tekuri/jsonschema/v5"
)

// reflectSchema builds the vendor-facing JSON Schema for a params struct.
// The schema is inlined (no $defs indirection) because both vendor APIs want
// a plain object schema at the top level.
func reflectSchema(v any) json.RawMessage {
	// Additional properties stay allowed: models sometimes volunteer extra
	// arguments and the searcher just ignores them.
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

var compiledSchemas sync.Map

func compileSchema(schema json.RawMessage) (*schemacheck.Schema, error) {
	key := string(schema)
	if cached, ok := compiledSchemas.Load(key); ok {
		if compiled, ok := cached.(*schemacheck.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := schemacheck.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	compiledSchemas.Store(key, compiled)
	return compiled, nil
}

// ValidateArgs checks raw tool arguments against a tool's input schema.
// Models occasionally emit arguments that drift from the declared schema;
// rejecting them here turns a would-be panic into a recoverable tool error.
func ValidateArgs(schema, args json.RawMessage) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile tool schema: %w", err)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("decode tool arguments: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("tool arguments invalid: %w", err)
	}
	return nil
}
