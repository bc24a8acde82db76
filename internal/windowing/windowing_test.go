package windowing_test

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/kubewizard/kubewizard/internal/windowing"
)

// Block and message constructors shared by the tests below.

func T(text string) anthropic.ContentBlockParamUnion {
	return anthropic.ContentBlockParamUnion{OfText: &anthropic.TextBlockParam{Text: text}}
}

func TU(id string) anthropic.ContentBlockParamUnion {
	return anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{ID: id}}
}

func TR(id, payload string) anthropic.ContentBlockParamUnion {
	return anthropic.NewToolResultBlock(id, payload, false)
}

func Asst(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{Role: anthropic.MessageParamRoleAssistant, Content: blocks}
}

func User(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{Role: anthropic.MessageParamRoleUser, Content: blocks}
}

func groupsEqual(got, want []windowing.Group) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestGroupBlocks_PairsAdjacentToolUseAndResult(t *testing.T) {
	msgs := []anthropic.MessageParam{
		User(T("list the pods")),
		Asst(TU("a")),
		User(TR("a", "pod-1 pod-2")),
		Asst(T("two pods are running")),
	}
	got := windowing.GroupBlocks(msgs)
	want := []windowing.Group{
		{Kind: windowing.GroupSingleton, Start: 0, End: 1},
		{Kind: windowing.GroupPair, Start: 1, End: 3},
		{Kind: windowing.GroupSingleton, Start: 3, End: 4},
	}
	if !groupsEqual(got, want) {
		t.Fatalf("groups mismatch: got=%+v want=%+v", got, want)
	}
}

func TestGroupBlocks_BrokenAdjacencyFallsBackToSingletons(t *testing.T) {
	msgs := []anthropic.MessageParam{
		Asst(TU("a")),
		Asst(T("interleaved")),
		User(TR("a", "late result")),
	}
	got := windowing.GroupBlocks(msgs)
	for _, g := range got {
		if g.Kind != windowing.GroupSingleton {
			t.Fatalf("expected singletons only, got %+v", got)
		}
	}
}

func TestGroupBlocks_MismatchedResultIDsInvalidatePair(t *testing.T) {
	msgs := []anthropic.MessageParam{
		Asst(TU("a")),
		User(TR("b", "wrong id")),
	}
	got := windowing.GroupBlocks(msgs)
	if len(got) != 2 || got[0].Kind != windowing.GroupSingleton {
		t.Fatalf("expected two singletons, got %+v", got)
	}
}

func TestGroupBlocks_TextBeforeResultInvalidatesPair(t *testing.T) {
	msgs := []anthropic.MessageParam{
		Asst(TU("a")),
		User(T("chatter first"), TR("a", "result")),
	}
	got := windowing.GroupBlocks(msgs)
	if len(got) != 2 || got[0].Kind != windowing.GroupSingleton {
		t.Fatalf("expected two singletons, got %+v", got)
	}
}

func TestPrepareSendWindow_BudgetRespected_OrderPreserved(t *testing.T) {
	// Costs with HeuristicCounter (EstimateTokens + 4 overhead per block):
	// G0: user("old")            = 1+4 = 5
	// G1: pair tool_use + result = 4 + (1+4) = 9
	// G2: user("tail")           = 1+4 = 5
	msgs := []anthropic.MessageParam{
		User(T("old")),
		Asst(TU("a")),
		User(TR("a", "r")),
		User(T("tail")),
	}
	budget := 14 // fits G2+G1 exactly, excludes G0

	window, stats := windowing.PrepareSendWindow(msgs, budget, windowing.HeuristicCounter{})

	if stats.Budget != budget || stats.Total != 14 || stats.IncludedGroups != 2 || stats.OverBudgetNewest {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(window) != 3 {
		t.Fatalf("unexpected window length: got %d want 3", len(window))
	}
	if window[0].Role != anthropic.MessageParamRoleAssistant {
		t.Fatalf("window must start at the pair, got role %v", window[0].Role)
	}
}

func TestPrepareSendWindow_NewestGroupOverBudget(t *testing.T) {
	// Newest pair costs 4 + (3+4) = 11.
	msgs := []anthropic.MessageParam{
		User(T("old")),
		Asst(TU("a")),
		User(TR("a", "xxxxxxxxxxxx")),
	}
	window, stats := windowing.PrepareSendWindow(msgs, 10, windowing.HeuristicCounter{})

	if len(window) != 0 {
		t.Fatalf("expected empty window, got %d", len(window))
	}
	if !stats.OverBudgetNewest || stats.IncludedGroups != 0 || stats.SkippedGroups != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPrepareSendWindow_NoCapacityBudget(t *testing.T) {
	msgs := []anthropic.MessageParam{User(T("x"))}
	window, stats := windowing.PrepareSendWindow(msgs, 0, windowing.HeuristicCounter{})
	if len(window) != 0 || !stats.OverBudgetNewest || stats.SkippedGroups != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPrepareSendWindow_EmptyMsgs(t *testing.T) {
	window, stats := windowing.PrepareSendWindow(nil, 123, windowing.HeuristicCounter{})
	if window != nil || stats.Budget != 123 || stats.Total != 0 || stats.OverBudgetNewest {
		t.Fatalf("unexpected result: window=%v stats=%+v", window, stats)
	}
}

func TestPrepareSendWindow_AllFit(t *testing.T) {
	msgs := []anthropic.MessageParam{
		User(T("oldest")),
		User(T("mid")),
		User(T("new")),
	}
	// Each costs 1+4=5; total 15.
	window, stats := windowing.PrepareSendWindow(msgs, 15, windowing.HeuristicCounter{})
	if stats.IncludedGroups != 3 || stats.SkippedGroups != 0 || stats.Total != 15 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(window) != 3 {
		t.Fatalf("expected full window, got %d", len(window))
	}
}

func TestHeuristicCounter_CountMessage(t *testing.T) {
	// Two blocks: text "abcdefgh" (2 tokens) + tool_use (overhead only).
	m := Asst(T("abcdefgh"), TU("a"))
	got := windowing.HeuristicCounter{}.CountMessage(m)
	want := (2 + 4) + 4
	if got != want {
		t.Fatalf("CountMessage = %d, want %d", got, want)
	}
}
