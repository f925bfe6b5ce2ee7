package registry

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ojamals/mcpregd/internal/errors"
)

// compileToolSchema parses a declared tool input schema, returning nil when
// the tool declares no schema at all.
func compileToolSchema(tool mcp.Tool) (*gojsonschema.Schema, error) {
	if tool.InputSchema.Type == "" && len(tool.InputSchema.Properties) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: tool %q: cannot encode input schema: %w", errors.ErrValidation, tool.Name, err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: tool %q: invalid input schema: %w", errors.ErrValidation, tool.Name, err)
	}

	return schema, nil
}

// ValidateArgs checks tool call arguments against the owner's declared input
// schema. Tools without a declared schema accept any arguments.
func ValidateArgs(tool mcp.Tool, args map[string]any) error {
	schema, err := compileToolSchema(tool)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("%w: tool %q: cannot validate arguments: %w", errors.ErrValidation, tool.Name, err)
	}

	if !result.Valid() {
		return fmt.Errorf("%w: tool %q: arguments do not match declared schema: %v",
			errors.ErrValidation, tool.Name, result.Errors())
	}

	return nil
}
