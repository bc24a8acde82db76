package tools

import (
	"encoding/json"
	"fmt"
)

// AskHumanInput carries the question shown to the operator.
type AskHumanInput struct {
	Prompt string `json:"prompt" jsonschema_description:"The question to ask the human operator."`
}

var askHumanInputSchema = GenerateSchema[AskHumanInput]()

// NewAskHuman returns the human-prompt capability. The supplied ask function
// blocks until the operator answers with a line of text.
func NewAskHuman(ask func(prompt string) (string, error)) ToolDefinition {
	return ToolDefinition{
		Name:        "ask-human",
		Description: "Ask the human operator for guidance or missing information. Use sparingly, only when you cannot proceed without their input.",
		InputSchema: askHumanInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			var in AskHumanInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			if in.Prompt == "" {
				return "", fmt.Errorf("prompt must not be empty")
			}
			return ask(in.Prompt)
		},
	}
}
