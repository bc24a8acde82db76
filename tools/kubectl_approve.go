package tools

import (
	"encoding/json"

	"github.com/kubewizard/kubewizard/internal/approval"
)

// NewRunCommandWithApproval returns the approval-gated command-execution
// capability. The gate classifies the literal command text before the runner
// does any work; a refused command is never executed.
func NewRunCommandWithApproval(runner CommandRunner, gate *approval.Gate) ToolDefinition {
	return ToolDefinition{
		Name:        "run-command-with-approval",
		Description: "Execute a kubernetes-related command line that modifies resources (create, update, delete, patch, apply, replace, scale) or reads credentials (secret). The command is shown to a human for approval before it runs.",
		InputSchema: commandInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			commands, err := decodeCommand(input)
			if err != nil {
				return "", err
			}
			return gate.Execute(commands, runner.Run)
		},
	}
}
