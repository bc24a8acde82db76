package tools

import (
	"encoding/json"
	"fmt"
)

// CommandRunner executes one shell-like command line against the resolved
// cluster tooling and returns raw standard output.
type CommandRunner interface {
	Run(commands string) (string, error)
}

// CommandInput is the shared input contract of both command capabilities.
type CommandInput struct {
	Commands string `json:"commands" jsonschema_description:"The kubectl/helm command line to execute, e.g. kubectl get pods -A."`
}

var commandInputSchema = GenerateSchema[CommandInput]()

// NewRunCommand returns the ungated command-execution capability. Reserved
// for read-only inspection; anything that mutates the cluster belongs to the
// approval-gated variant.
func NewRunCommand(runner CommandRunner) ToolDefinition {
	return ToolDefinition{
		Name:        "run-command",
		Description: "Execute a kubernetes-related command line (kubectl, helm) against the cluster and return its output. Use only for read-only inspection such as get, describe, logs, top.",
		InputSchema: commandInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			commands, err := decodeCommand(input)
			if err != nil {
				return "", err
			}
			return runner.Run(commands)
		},
	}
}

func decodeCommand(input json.RawMessage) (string, error) {
	var in CommandInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	commands := trimCommand(in.Commands)
	if commands == "" {
		return "", fmt.Errorf("commands must not be empty")
	}
	return commands, nil
}
