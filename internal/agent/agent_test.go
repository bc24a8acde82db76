package agent_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/kubewizard/kubewizard/internal/agent"
	"github.com/kubewizard/kubewizard/internal/memory"
	"github.com/kubewizard/kubewizard/tools"
)

// scriptedTransport returns one canned response per request, in order, and
// captures every request body for later probing.
type scriptedTransport struct {
	responses []string
	bodies    [][]byte
	err       error
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	s.bodies = append(s.bodies, b)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.bodies) > len(s.responses) {
		return nil, fmt.Errorf("no scripted response for request %d", len(s.bodies))
	}
	resp := &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewReader([]byte(s.responses[len(s.bodies)-1]))),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newClientWithTransport(rt http.RoundTripper) *anthropic.Client {
	c := anthropic.NewClient(
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithAPIKey("test-key"),
	)
	return &c
}

func textResponse(text string) string {
	return fmt.Sprintf(`{"id":"msg_1","type":"message","role":"assistant","model":"m","stop_reason":"end_turn","content":[{"type":"text","text":%q}]}`, text)
}

func toolUseResponse(id, name, inputJSON string) string {
	return fmt.Sprintf(`{"id":"msg_1","type":"message","role":"assistant","model":"m","stop_reason":"tool_use","content":[{"type":"tool_use","id":%q,"name":%q,"input":%s}]}`, id, name, inputJSON)
}

const emptyResponse = `{"id":"msg_1","type":"message","role":"assistant","model":"m","stop_reason":"end_turn","content":[]}`

type recordingRunner struct {
	commands []string
	output   string
	err      error
}

func (r *recordingRunner) Run(commands string) (string, error) {
	r.commands = append(r.commands, commands)
	return r.output, r.err
}

func newAgent(tr http.RoundTripper, defs []tools.ToolDefinition) *agent.Agent {
	return agent.New(agent.Options{
		Client:  newClientWithTransport(tr),
		Model:   "m",
		Tools:   defs,
		Verbose: true,
		Logger:  zerolog.Nop(),
	})
}

func TestRun_DirectAnswer_SingleIteration(t *testing.T) {
	tr := &scriptedTransport{responses: []string{textResponse("three nodes are Ready")}}
	a := newAgent(tr, nil)

	res, err := a.Run(context.Background(), "how many nodes are ready?", nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Output != "three nodes are Ready" {
		t.Fatalf("unexpected output: %q", res.Output)
	}
	if len(res.Trace) != 1 {
		t.Fatalf("expected a single trace step, got %d", len(res.Trace))
	}
	if len(tr.bodies) != 1 {
		t.Fatalf("expected one request, got %d", len(tr.bodies))
	}
}

func TestRun_CapabilityRoundTrip(t *testing.T) {
	runner := &recordingRunner{output: "NAME   STATUS\ndefault   Active"}
	defs := []tools.ToolDefinition{tools.NewRunCommand(runner)}
	tr := &scriptedTransport{responses: []string{
		toolUseResponse("tu_1", "run-command", `{"commands":"kubectl get ns"}`),
		textResponse("the cluster has one namespace: default"),
	}}
	a := newAgent(tr, defs)

	res, err := a.Run(context.Background(), "list namespaces", nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Output != "the cluster has one namespace: default" {
		t.Fatalf("unexpected output: %q", res.Output)
	}
	if len(runner.commands) != 1 || runner.commands[0] != "kubectl get ns" {
		t.Fatalf("unexpected commands run: %v", runner.commands)
	}

	// Second request must feed the observation back as a tool_result with
	// the matching id.
	if len(tr.bodies) != 2 {
		t.Fatalf("expected two requests, got %d", len(tr.bodies))
	}
	second := string(tr.bodies[1])
	last := gjson.Get(second, "messages.@reverse.0.content.0")
	if last.Get("type").String() != "tool_result" || last.Get("tool_use_id").String() != "tu_1" {
		t.Fatalf("expected trailing tool_result for tu_1, got %s", last.Raw)
	}
	if !strings.Contains(last.Get("content").String(), "default") {
		t.Fatalf("observation not fed back: %s", last.Raw)
	}

	if len(res.Trace) != 2 {
		t.Fatalf("expected 2 trace steps, got %d", len(res.Trace))
	}
	if res.Trace[0].Capability != "run-command" || !strings.Contains(res.Trace[0].Observation, "default") {
		t.Fatalf("unexpected first step: %+v", res.Trace[0])
	}
}

func TestRun_UnknownCapability_BecomesObservation(t *testing.T) {
	tr := &scriptedTransport{responses: []string{
		toolUseResponse("tu_1", "reboot-cluster", `{}`),
		textResponse("I cannot do that"),
	}}
	runner := &recordingRunner{output: "ok"}
	a := newAgent(tr, []tools.ToolDefinition{tools.NewRunCommand(runner)})

	res, err := a.Run(context.Background(), "reboot everything", nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Output != "I cannot do that" {
		t.Fatalf("unexpected output: %q", res.Output)
	}
	if len(runner.commands) != 0 {
		t.Fatalf("no capability should have run, got %v", runner.commands)
	}
	second := string(tr.bodies[1])
	result := gjson.Get(second, "messages.@reverse.0.content.0")
	if result.Get("is_error").Bool() != true {
		t.Fatalf("expected error tool_result, got %s", result.Raw)
	}
	if !strings.Contains(result.Get("content").String(), "does not exist") {
		t.Fatalf("expected unknown-capability observation, got %s", result.Raw)
	}
}

func TestRun_CapabilityFailure_ContinuesRun(t *testing.T) {
	runner := &recordingRunner{err: errors.New(`command failed: error: the server doesn't have a resource type "podz"`)}
	tr := &scriptedTransport{responses: []string{
		toolUseResponse("tu_1", "run-command", `{"commands":"kubectl get podz"}`),
		textResponse("there is no resource named podz; did you mean pods?"),
	}}
	a := newAgent(tr, []tools.ToolDefinition{tools.NewRunCommand(runner)})

	res, err := a.Run(context.Background(), "get podz", nil)
	if err != nil {
		t.Fatalf("capability failure must not fail the run: %v", err)
	}
	if !strings.Contains(res.Output, "did you mean pods") {
		t.Fatalf("unexpected output: %q", res.Output)
	}
	result := gjson.Get(string(tr.bodies[1]), "messages.@reverse.0.content.0")
	if !result.Get("is_error").Bool() || !strings.Contains(result.Get("content").String(), "podz") {
		t.Fatalf("expected failure observation, got %s", result.Raw)
	}
}

func TestRun_UnparseableTwice_DegradesAnswer(t *testing.T) {
	tr := &scriptedTransport{responses: []string{emptyResponse, emptyResponse}}
	a := newAgent(tr, nil)

	res, err := a.Run(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Output != agent.DegradedAnswer {
		t.Fatalf("expected degraded answer, got %q", res.Output)
	}
	if len(tr.bodies) != 2 {
		t.Fatalf("expected exactly one corrective retry, got %d requests", len(tr.bodies))
	}
	// The retry carries the corrective re-prompt.
	second := string(tr.bodies[1])
	lastText := gjson.Get(second, "messages.@reverse.0.content.0.text").String()
	if !strings.Contains(lastText, "unparseable") {
		t.Fatalf("expected corrective re-prompt, got %q", lastText)
	}
}

func TestRun_UnparseableOnce_RecoversOnRetry(t *testing.T) {
	tr := &scriptedTransport{responses: []string{emptyResponse, textResponse("recovered")}}
	a := newAgent(tr, nil)

	res, err := a.Run(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Output != "recovered" {
		t.Fatalf("expected recovery after one retry, got %q", res.Output)
	}
}

func TestRun_IterationCeiling_DegradesAnswer(t *testing.T) {
	runner := &recordingRunner{output: "ok"}
	tr := &scriptedTransport{}
	for i := 0; i < 3; i++ {
		tr.responses = append(tr.responses, toolUseResponse(fmt.Sprintf("tu_%d", i), "run-command", `{"commands":"kubectl get pods"}`))
	}
	a := agent.New(agent.Options{
		Client:        newClientWithTransport(tr),
		Model:         "m",
		Tools:         []tools.ToolDefinition{tools.NewRunCommand(runner)},
		MaxIterations: 3,
		Logger:        zerolog.Nop(),
	})

	res, err := a.Run(context.Background(), "loop forever", nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Output != agent.DegradedAnswer {
		t.Fatalf("expected degraded answer at the ceiling, got %q", res.Output)
	}
	if len(tr.bodies) != 3 {
		t.Fatalf("expected exactly 3 reasoning requests, got %d", len(tr.bodies))
	}
}

func TestRun_TransportFailure_IsFatal(t *testing.T) {
	tr := &scriptedTransport{err: errors.New("connection refused")}
	a := newAgent(tr, nil)

	_, err := a.Run(context.Background(), "hello", nil)
	if !errors.Is(err, agent.ErrReasoningUnreachable) {
		t.Fatalf("expected ErrReasoningUnreachable, got %v", err)
	}
}

func TestRun_HistoryPrecedesUserMessage(t *testing.T) {
	tr := &scriptedTransport{responses: []string{textResponse("your cluster is named prod")}}
	a := newAgent(tr, nil)

	history := []memory.Message{
		{Role: memory.RoleUser, Content: "my cluster is named prod"},
		{Role: memory.RoleAssistant, Content: "noted"},
	}
	if _, err := a.Run(context.Background(), "what is my cluster named?", history); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	body := string(tr.bodies[0])
	roles := gjson.Get(body, "messages.#.role").Array()
	if len(roles) != 3 || roles[0].String() != "user" || roles[1].String() != "assistant" || roles[2].String() != "user" {
		t.Fatalf("unexpected message ordering: %s", gjson.Get(body, "messages.#.role").Raw)
	}
	if got := gjson.Get(body, "messages.0.content.0.text").String(); got != "my cluster is named prod" {
		t.Fatalf("history not sent first, got %q", got)
	}
}
