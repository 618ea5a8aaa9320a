package agent

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/saorsa-labs/fae/pkg/types"
)

// ValidateToolArgs checks a tool call's JSON arguments against the tool's
// declared parameter schema. A nil/empty schema accepts any object. The
// returned error describes the mismatch in a form suitable for a synthesised
// tool error message fed back to the model.
func ValidateToolArgs(def types.ToolDefinition, args string) error {
	if args == "" {
		args = "{}"
	}

	var payload any
	if err := json.Unmarshal([]byte(args), &payload); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}

	if len(def.Parameters) == 0 {
		return nil
	}

	// Round-trip the schema through JSON so number types match what the
	// compiler expects regardless of how the definition was constructed.
	schemaBytes, err := json.Marshal(def.Parameters)
	if err != nil {
		return fmt.Errorf("tool %q has an unencodable schema: %w", def.Name, err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("tool %q has a malformed schema: %w", def.Name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("tool.json", schemaDoc); err != nil {
		return fmt.Errorf("tool %q schema rejected: %w", def.Name, err)
	}
	schema, err := c.Compile("tool.json")
	if err != nil {
		return fmt.Errorf("tool %q schema does not compile: %w", def.Name, err)
	}

	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("arguments do not match the %q schema: %w", def.Name, err)
	}
	return nil
}
