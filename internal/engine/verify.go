package engine

import (
	"fmt"

	"github.com/rendis/ffts/pkg/schema"
)

// Verify checks a finished table against the structural guarantees of the
// builder and returns every violation found. capacity is the inline fan-out
// the table was built with.
func Verify(g *schema.TaskGraph, capacity int) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if g == nil {
		result.AddError("/", schema.ErrCodeValidation, "task graph is nil")
		return result
	}

	total := uint32(len(g.Contexts))
	if g.TotalContextCount != total {
		result.AddError("total_context_count", schema.ErrCodeShapeMismatch,
			fmt.Sprintf("header total %d but table holds %d contexts", g.TotalContextCount, total))
	}
	if g.ReadyContextCount > total {
		result.AddError("ready_context_count", schema.ErrCodeShapeMismatch,
			fmt.Sprintf("ready %d exceeds total %d", g.ReadyContextCount, total))
	}

	labelRefs := make([]int, total)
	firstLabel := -1
	for i, c := range g.Contexts {
		path := fmt.Sprintf("contexts[%d]", i)
		if c.ID != uint32(i) {
			result.AddError(path+".id", schema.ErrCodeShapeMismatch, fmt.Sprintf("id %d at index %d", c.ID, i))
		}
		if !c.Type.Valid() {
			result.AddError(path+".type", schema.ErrCodeValidation, fmt.Sprintf("unknown type %q", c.Type))
		}
		if len(c.SuccessorIDs) > capacity {
			result.AddError(path+".successor_ids", schema.ErrCodeShapeMismatch,
				fmt.Sprintf("%d inline successors exceed capacity %d", len(c.SuccessorIDs), capacity))
		}
		if c.PredCount != c.PredCountInit {
			result.AddError(path+".pred_count", schema.ErrCodeShapeMismatch,
				fmt.Sprintf("pred_count %d differs from pred_count_init %d", c.PredCount, c.PredCountInit))
		}
		if uint32(i) < g.ReadyContextCount && c.PredCount != 0 {
			result.AddError(path+".pred_count", schema.ErrCodeShapeMismatch,
				fmt.Sprintf("context in ready prefix has pred_count %d", c.PredCount))
		}

		if c.IsLabel() {
			if firstLabel < 0 {
				firstLabel = i
			}
			if c.PredCountInit != 1 || c.Payload != nil || len(c.SuccessorIDs) == 0 {
				result.AddError(path, schema.ErrCodeShapeMismatch, "label must have pred 1/1, no payload and successors")
			}
		} else if firstLabel >= 0 {
			result.AddError(path, schema.ErrCodeShapeMismatch,
				fmt.Sprintf("structural context after label %d", firstLabel))
		}

		for slot, s := range c.SuccessorIDs {
			if s >= total {
				result.AddError(fmt.Sprintf("%s.successor_ids[%d]", path, slot), schema.ErrCodeDanglingSuccessor,
					fmt.Sprintf("successor %d outside table of %d", s, total))
				continue
			}
			if g.Contexts[s].IsLabel() {
				labelRefs[s]++
				if slot != len(c.SuccessorIDs)-1 || len(c.SuccessorIDs) != capacity {
					result.AddError(fmt.Sprintf("%s.successor_ids[%d]", path, slot), schema.ErrCodeShapeMismatch,
						"label referenced outside the last slot of a full list")
				}
			}
		}
	}
	if !result.Valid() {
		return result
	}

	// Each label continues exactly one chain; structural counters match the
	// edges pointing at them unless gated by at-start predecessors.
	in := make([]uint32, total)
	for i, c := range g.Contexts {
		if c.IsLabel() {
			if labelRefs[i] != 1 {
				result.AddError(fmt.Sprintf("contexts[%d]", i), schema.ErrCodeShapeMismatch,
					fmt.Sprintf("label referenced %d times", labelRefs[i]))
			}
			continue
		}
		succ, err := g.ExpandSuccessors(c.ID)
		if err != nil {
			result.AddError(fmt.Sprintf("contexts[%d].successor_ids", i), schema.ErrCodeOverflowChainExhausted, err.Error())
			continue
		}
		for _, s := range succ {
			in[s]++
		}
	}
	for i, c := range g.Contexts {
		if c.IsLabel() || c.StartGated {
			continue
		}
		if in[i] != c.PredCountInit {
			result.AddError(fmt.Sprintf("contexts[%d].pred_count_init", i), schema.ErrCodeShapeMismatch,
				fmt.Sprintf("pred_count_init %d but %d inbound edges", c.PredCountInit, in[i]))
		}
	}

	if w := ComputeWavefronts(g); len(w.Unfired) > 0 {
		result.AddError("contexts", schema.ErrCodeCycleDetected,
			fmt.Sprintf("%d contexts never become ready: %v", len(w.Unfired), w.Unfired))
	}
	return result
}
