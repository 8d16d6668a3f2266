package builtin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateArgs compiles schemaText (a JSON Schema document) and validates
// args against it, returning an ArgumentMissing-class error naming the
// failing field on violation.
func validateArgs(schemaText string, args json.RawMessage) error {
	compiler := jsonschema.NewCompiler()
	const resourceName = "builtin-tool-schema.json"
	if err := compiler.AddResource(resourceName, strings.NewReader(schemaText)); err != nil {
		return fmt.Errorf("builtin: load schema: %w", err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("builtin: compile schema: %w", err)
	}

	var doc any
	if len(args) == 0 {
		doc = map[string]any{}
	} else if err := json.Unmarshal(args, &doc); err != nil {
		return fmt.Errorf("builtin: decode arguments: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("argument validation failed: %w", err)
	}
	return nil
}
