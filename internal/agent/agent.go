// Package agent runs the reasoning loop: ask the completion service what to
// do next, execute the chosen capability, feed the observation back, repeat
// until a final answer or a bounded failure.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kubewizard/kubewizard/internal/memory"
	"github.com/kubewizard/kubewizard/internal/trace"
	"github.com/kubewizard/kubewizard/internal/windowing"
	"github.com/kubewizard/kubewizard/tools"
)

// Step is one reasoning iteration: transient, scratchpad-only state. Only the
// final answer and the raw user/assistant text outlive the run.
type Step struct {
	Thought     string `json:"thought,omitempty"`
	Capability  string `json:"capability,omitempty"`
	Input       string `json:"input,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// Result is what one run produces. Trace is populated only when the agent is
// verbose.
type Result struct {
	Output string
	Trace  []Step
}

// DegradedAnswer is the fixed reply when the loop cannot converge: the
// iteration ceiling was hit, or reasoning output was unparseable twice in a
// row.
const DegradedAnswer = "unable to complete the request"

// ErrReasoningUnreachable marks a transport-level failure to reach the
// completion service. Fatal to the run; there is no local fallback for
// reasoning.
var ErrReasoningUnreachable = errors.New("completion service unreachable")

// reparsePrompt is the one corrective re-prompt after unparseable output.
const reparsePrompt = "Your last output was unparseable. Reply with either a final text answer or a single tool call."

const (
	defaultMaxIterations = 10
	defaultTokenBudget   = 8000
	defaultMaxTokens     = 1024
)

// Options wires an Agent. Client, Model and Tools are required.
type Options struct {
	Client        *anthropic.Client
	Model         anthropic.Model
	Tools         []tools.ToolDefinition
	MaxIterations int
	TokenBudget   int
	Verbose       bool
	Logger        zerolog.Logger
}

// Agent is safe for concurrent runs; all per-run state lives on the stack.
type Agent struct {
	client        *anthropic.Client
	model         anthropic.Model
	defs          []tools.ToolDefinition
	toolParams    []anthropic.ToolUnionParam
	maxIterations int
	tokenBudget   int
	verbose       bool
	log           zerolog.Logger
}

func New(opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = defaultTokenBudget
	}
	a := &Agent{
		client:        opts.Client,
		model:         opts.Model,
		defs:          opts.Tools,
		maxIterations: opts.MaxIterations,
		tokenBudget:   opts.TokenBudget,
		verbose:       opts.Verbose,
		log:           opts.Logger,
	}
	for _, def := range opts.Tools {
		a.toolParams = append(a.toolParams, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: def.InputSchema,
		}})
	}
	return a
}

// Run drives one user message to a final answer. Capability failures become
// observations and reasoning continues; only an unreachable completion
// service is returned as an error.
func (a *Agent) Run(ctx context.Context, userMessage string, history []memory.Message) (Result, error) {
	runID, ok := trace.RunIDFromContext(ctx)
	if !ok {
		runID = shortuuid.New()
		ctx = trace.WithRunID(ctx, runID)
	}
	trace.Emit("run_started", map[string]any{"run_id": runID})

	conv := historyToParams(history)
	conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)))

	var steps []Step
	record := func(s Step) {
		if a.verbose {
			steps = append(steps, s)
		}
	}
	finish := func(output string) (Result, error) {
		trace.Emit("run_finished", map[string]any{"run_id": runID, "steps": len(steps)})
		return Result{Output: output, Trace: steps}, nil
	}

	parseFailures := 0
	for iter := 0; iter < a.maxIterations; iter++ {
		window, stats := windowing.PrepareSendWindow(conv, a.tokenBudget, windowing.HeuristicCounter{})
		trace.Emit("window_prepared", map[string]any{
			"run_id":          runID,
			"budget":          stats.Budget,
			"total_estimated": stats.Total,
			"included_groups": stats.IncludedGroups,
			"skipped_groups":  stats.SkippedGroups,
		})
		if stats.OverBudgetNewest {
			return Result{}, errors.New("newest conversation turn exceeds the prompt token budget; raise the budget or tighten capability output caps")
		}

		msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     a.model,
			MaxTokens: int64(defaultMaxTokens),
			System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages:  window,
			Tools:     a.toolParams,
		})
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrReasoningUnreachable, err)
		}
		conv = append(conv, msg.ToParam())

		thought, toolUses := splitContent(msg)

		if len(toolUses) == 0 {
			if thought == "" {
				parseFailures++
				a.log.Warn().Str("run_id", runID).Int("failures", parseFailures).Msg("unparseable reasoning output")
				if parseFailures >= 2 {
					record(Step{Observation: "reasoning output unparseable twice, degrading"})
					return finish(DegradedAnswer)
				}
				conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(reparsePrompt)))
				continue
			}
			record(Step{Thought: thought})
			return finish(thought)
		}
		parseFailures = 0

		// Capability invocations are strictly sequential: later inputs are
		// derived from earlier observations.
		var results []anthropic.ContentBlockParamUnion
		for _, tu := range toolUses {
			observation, isErr := a.invoke(runID, tu)
			record(Step{
				Thought:     thought,
				Capability:  tu.Name,
				Input:       string(tu.Input),
				Observation: observation,
			})
			results = append(results, anthropic.NewToolResultBlock(tu.ID, observation, isErr))
		}
		conv = append(conv, anthropic.NewUserMessage(results...))
	}

	a.log.Warn().Str("run_id", runID).Int("ceiling", a.maxIterations).Msg("iteration ceiling exceeded")
	record(Step{Observation: "iteration ceiling exceeded, degrading"})
	return finish(DegradedAnswer)
}

type toolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// splitContent separates an assistant message into its visible text and its
// requested capability invocations.
func splitContent(msg *anthropic.Message) (string, []toolUse) {
	var thought string
	var uses []toolUse
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			if v.Text == "" {
				continue
			}
			if thought == "" {
				thought = v.Text
			} else {
				thought += "\n" + v.Text
			}
		case anthropic.ToolUseBlock:
			uses = append(uses, toolUse{
				ID:    v.ID,
				Name:  v.Name,
				Input: json.RawMessage(v.JSON.Input.Raw()),
			})
		}
	}
	return thought, uses
}

// invoke executes one capability and converts every failure into observation
// text. An unknown name synthesizes an observation instead of failing the
// run.
func (a *Agent) invoke(runID string, tu toolUse) (observation string, isErr bool) {
	var def *tools.ToolDefinition
	for i := range a.defs {
		if a.defs[i].Name == tu.Name {
			def = &a.defs[i]
			break
		}
	}
	if def == nil {
		trace.Emit("capability_exec", map[string]any{"run_id": runID, "name": tu.Name, "error": "not found"})
		return fmt.Sprintf("capability %q does not exist; available capabilities: %s", tu.Name, a.capabilityNames()), true
	}

	out, err := def.Function(tu.Input)
	if err != nil {
		trace.Emit("capability_exec", map[string]any{"run_id": runID, "name": tu.Name, "error": "execution failed"})
		return err.Error(), true
	}
	trace.Emit("capability_exec", map[string]any{"run_id": runID, "name": tu.Name, "output_size": len(out)})
	return out, false
}

func (a *Agent) capabilityNames() string {
	names := ""
	for i, def := range a.defs {
		if i > 0 {
			names += ", "
		}
		names += def.Name
	}
	return names
}

func historyToParams(history []memory.Message) []anthropic.MessageParam {
	conv := make([]anthropic.MessageParam, 0, len(history)+2)
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		if m.Role == memory.RoleUser {
			conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			conv = append(conv, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return conv
}
