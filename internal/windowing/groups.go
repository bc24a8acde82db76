// Package windowing bounds the history included in one completion-service
// prompt by an estimated token budget, trimming oldest-first without ever
// splitting a tool_use/tool_result pair. This is the per-prompt truncation
// layer; durable-store compaction is a separate policy in memory.
package windowing

import (
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	GroupPair
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
type Group struct {
	Kind  GroupKind
	Start int // inclusive index into msgs
	End   int // exclusive index into msgs
}

// GroupBlocks groups messages into atomic units that preserve tool-use pairs.
// Invariants:
//   - A pair is exactly two adjacent messages: assistant(tool_use+...) then
//     user(tool_result...).
//   - In the user message, all tool_result blocks come first; text (if any)
//     comes after.
//   - Every tool_use id in the assistant must appear as a tool_result id in
//     the following user message's leading segment, with no extras.
//   - tool_result blocks with is_error=true are treated the same for grouping.
func GroupBlocks(msgs []anthropic.MessageParam) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		m := msgs[i]
		if m.Role == anthropic.MessageParamRoleAssistant {
			useIDs := toolUseIDs(m)
			if len(useIDs) > 0 && i+1 < len(msgs) && msgs[i+1].Role == anthropic.MessageParamRoleUser {
				valid, resultIDs := leadingToolResultIDs(msgs[i+1])
				if valid && sameIDSet(resultIDs, useIDs) {
					groups = append(groups, Group{Kind: GroupPair, Start: i, End: i + 2})
					i += 2
					continue
				}
				vlogf("exclude pair: idx=%d valid=%t", i, valid)
			}
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// toolUseIDs returns the set of tool_use ids present in an assistant message.
func toolUseIDs(m anthropic.MessageParam) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, blk := range m.Content {
		if tu := blk.OfToolUse; tu != nil && tu.ID != "" {
			ids[tu.ID] = struct{}{}
		}
	}
	return ids
}

// leadingToolResultIDs inspects a user message and returns valid=false when a
// tool_result appears after a non-result block, plus the ids of the leading
// tool_result segment.
func leadingToolResultIDs(m anthropic.MessageParam) (valid bool, resultIDs map[string]struct{}) {
	resultIDs = make(map[string]struct{})
	seenNonResult := false
	for _, blk := range m.Content {
		if tr := blk.OfToolResult; tr != nil {
			if seenNonResult {
				return false, resultIDs
			}
			if tr.ToolUseID != "" {
				resultIDs[tr.ToolUseID] = struct{}{}
			}
			continue
		}
		seenNonResult = true
	}
	return true, resultIDs
}

// sameIDSet reports whether the two id sets are identical. Missing or extra
// results both invalidate the pair; strictness keeps downstream logic simple.
func sameIDSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

// minimal verbose logging when KW_VERBOSE_WINDOW_LOGS=1
var verbose = os.Getenv("KW_VERBOSE_WINDOW_LOGS") == "1"

func vlogf(format string, args ...any) {
	if verbose {
		fmt.Printf("[windowing] "+format+"\n", args...)
	}
}
