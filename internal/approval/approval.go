// Package approval classifies requested cluster actions by risk and blocks
// the risky ones pending a synchronous human decision.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// RiskClass is the outcome of classifying one requested action.
type RiskClass int

const (
	Safe RiskClass = iota
	RequiresApproval
)

func (r RiskClass) String() string {
	if r == RequiresApproval {
		return "requires_approval"
	}
	return "safe"
}

// RefusalSentinel is returned verbatim when the human declines an action.
// The agent treats it as an observation, not an error.
const RefusalSentinel = "execution aborted, not approved"

// riskMarkers are matched case-insensitively as substrings of the raw action
// text. Mutation verbs plus credential-bearing reads. The matcher is
// deliberately coarse: over-triggering on a resource name that happens to
// contain a marker is acceptable, missing a destructive command is not.
var riskMarkers = []string{
	"create",
	"update",
	"delete",
	"patch",
	"apply",
	"replace",
	"scale",
	"edit",
	"rollout",
	"secret",
}

// Classify derives the risk class of an action from its literal text.
func Classify(action string) RiskClass {
	lower := strings.ToLower(action)
	for _, marker := range riskMarkers {
		if strings.Contains(lower, marker) {
			return RequiresApproval
		}
	}
	return Safe
}

// Approver obtains a boolean decision for one action from a human. Approve
// blocks until the decision is made.
type Approver interface {
	Approve(action string) (bool, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(action string) (bool, error)

func (f ApproverFunc) Approve(action string) (bool, error) { return f(action) }

// Gate wraps a capability invocation with risk classification and the
// human-in-the-loop check.
type Gate struct {
	approver Approver
}

func NewGate(a Approver) *Gate {
	return &Gate{approver: a}
}

// Execute classifies action and either delegates to underlying directly
// (safe), or first blocks for a human decision. Classification runs before
// underlying does any work: a refused action has zero side effects and yields
// exactly RefusalSentinel.
func (g *Gate) Execute(action string, underlying func(string) (string, error)) (string, error) {
	if Classify(action) == RequiresApproval {
		ok, err := g.approver.Approve(action)
		if err != nil {
			return "", fmt.Errorf("approval check failed: %w", err)
		}
		if !ok {
			return RefusalSentinel, nil
		}
	}
	return underlying(action)
}

// TerminalApprover prompts for a y/N decision on a terminal. Anything other
// than an explicit yes is a refusal.
type TerminalApprover struct {
	In  io.Reader
	Out io.Writer
}

func (t TerminalApprover) Approve(action string) (bool, error) {
	fmt.Fprintf(t.Out, "Approve execution of the following command? [y/N]\n  %s\n> ", action)
	reader := bufio.NewReader(t.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
