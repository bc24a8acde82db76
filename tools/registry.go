package tools

import (
	"net/http"
	"time"

	"github.com/kubewizard/kubewizard/internal/approval"
)

// Deps carries the collaborators the capability set is wired with at startup.
type Deps struct {
	Runner     CommandRunner
	Gate       *approval.Gate
	AskHuman   func(prompt string) (string, error)
	HTTPClient *http.Client
}

// Registry returns all capability definitions wired for the agent. Built once
// at startup; the set is immutable during a conversation.
func Registry(deps Deps) []ToolDefinition {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return []ToolDefinition{
		NewRunCommand(deps.Runner),
		NewRunCommandWithApproval(deps.Runner, deps.Gate),
		NewAskHuman(deps.AskHuman),
		NewWebSearch(client),
		NewFetchURL(client),
	}
}
