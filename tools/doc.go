// Package tools defines the capability contracts and implementations.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Capabilities: run-command, run-command-with-approval, ask-human,
//     web-search, fetch-url.
//   - Command inputs are trimmed of surrounding whitespace and matching
//     quotes before execution.
package tools
