package windowing

import "github.com/anthropics/anthropic-sdk-go"

// Stats summarizes the result of window preparation.
type Stats struct {
	Total            int // estimated tokens for included groups only
	Budget           int
	IncludedGroups   int
	SkippedGroups    int
	OverBudgetNewest bool // the newest single group alone exceeds Budget
}

// PrepareSendWindow returns a subslice of msgs (oldest→newest) that fits
// within budget using the TokenCounter, without splitting groups.
//
// Rules:
//   - Include whole groups scanning newest→oldest while total ≤ budget.
//   - If the newest group alone exceeds budget, return an empty window and
//     set OverBudgetNewest.
//   - If budget ≤ 0, return an empty window (OverBudgetNewest set when any
//     groups exist).
func PrepareSendWindow(msgs []anthropic.MessageParam, budget int, c TokenCounter) ([]anthropic.MessageParam, Stats) {
	if len(msgs) == 0 {
		return nil, Stats{Budget: budget}
	}

	groups := GroupBlocks(msgs)

	if budget <= 0 {
		return nil, Stats{
			Budget:           budget,
			SkippedGroups:    len(groups),
			OverBudgetNewest: len(groups) > 0,
		}
	}

	total := 0
	included := 0
	startIdx := len(groups) // exclusive sentinel; lowered when a group is included

	for gi := len(groups) - 1; gi >= 0; gi-- {
		cost := c.CountGroup(groups[gi], msgs)
		if included == 0 && cost > budget {
			vlogf("newest group over budget: budget=%d cost=%d", budget, cost)
			return nil, Stats{
				Budget:           budget,
				SkippedGroups:    len(groups),
				OverBudgetNewest: true,
			}
		}
		if total+cost > budget {
			break
		}
		total += cost
		included++
		startIdx = gi
	}

	if included == 0 {
		return nil, Stats{Budget: budget, SkippedGroups: len(groups)}
	}

	window := msgs[groups[startIdx].Start:]
	return window, Stats{
		Total:          total,
		Budget:         budget,
		IncludedGroups: included,
		SkippedGroups:  len(groups) - included,
	}
}
