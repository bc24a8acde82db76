package windowing

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/kubewizard/kubewizard/internal/metrics"
)

// TokenCounter estimates input-token cost for messages or groups.
type TokenCounter interface {
	CountMessage(m anthropic.MessageParam) int
	CountGroup(g Group, all []anthropic.MessageParam) int
}

// HeuristicCounter is the default deterministic estimator: per-block token
// estimates from metrics.EstimateTokens plus a small fixed per-block overhead
// for formatting.
type HeuristicCounter struct{}

// blockOverhead is a fixed per-block cost; changing it requires updating the guard tests.
const blockOverhead = 4

func (HeuristicCounter) CountMessage(m anthropic.MessageParam) int {
	total := 0
	for _, blk := range m.Content {
		total += countBlock(blk)
	}
	return total
}

func (h HeuristicCounter) CountGroup(g Group, all []anthropic.MessageParam) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}

func countBlock(blk anthropic.ContentBlockParamUnion) int {
	if tb := blk.OfText; tb != nil {
		return metrics.EstimateTokens(tb.Text) + blockOverhead
	}

	if tr := blk.OfToolResult; tr != nil {
		// Nested content: sum the nested text estimates.
		if nested, ok := any(tr.Content).([]anthropic.ToolResultBlockParamContentUnion); ok {
			subtotal := 0
			for _, nb := range nested {
				if nt := nb.OfText; nt != nil {
					subtotal += metrics.EstimateTokens(nt.Text)
				}
			}
			return subtotal + blockOverhead
		}
		if s, ok := any(tr.Content).(string); ok {
			return metrics.EstimateTokens(s) + blockOverhead
		}
		vlogf("counter: unsupported tool_result payload type=%T", tr.Content)
		return blockOverhead
	}

	// tool_use, thinking, images and anything else count overhead only in
	// this minimal heuristic.
	return blockOverhead
}
