package tools

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
)

// ToolDefinition is one named, independently invocable capability: what the
// reasoning loop sees. The set is fixed at startup and never mutated during
// a conversation.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema anthropic.ToolInputSchemaParam
	Function    func(input json.RawMessage) (string, error)
}

// GenerateSchema derives the JSON Schema for a tool input struct.
func GenerateSchema[T any]() anthropic.ToolInputSchemaParam {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return anthropic.ToolInputSchemaParam{
		Properties: schema.Properties,
	}
}

// trimCommand strips surrounding whitespace and matching quote characters
// from a model-supplied command line. Models wrap commands in quotes or
// backticks often enough that this is worth doing before every execution.
func trimCommand(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first != last {
			break
		}
		if first != '"' && first != '\'' && first != '`' {
			break
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
