package engine

import (
	"github.com/rendis/ffts/pkg/schema"
)

// Wavefronts is the firing schedule the hardware dataflow scheduler would
// follow for a table: Levels[k] holds the contexts that become ready once
// every context of the earlier levels has completed.
type Wavefronts struct {
	Levels  [][]uint32 `json:"levels"`
	Unfired []uint32   `json:"unfired,omitempty"`
}

// Depth returns the level of each context, or -1 for contexts that never fire.
func (w *Wavefronts) Depth(total int) []int {
	depth := make([]int, total)
	for i := range depth {
		depth[i] = -1
	}
	for lvl, ids := range w.Levels {
		for _, id := range ids {
			depth[id] = lvl
		}
	}
	return depth
}

// inboundCounts counts how many successor slots reference each context.
func inboundCounts(g *schema.TaskGraph) []uint32 {
	in := make([]uint32, len(g.Contexts))
	for _, c := range g.Contexts {
		for _, s := range c.SuccessorIDs {
			if int(s) < len(in) {
				in[s]++
			}
		}
	}
	return in
}

// ComputeWavefronts simulates the counter semantics over the table without
// executing anything. A context whose pred_count exceeds its in-table
// references is waiting on contexts outside the table (at-start gating);
// those external completions are assumed delivered up front.
func ComputeWavefronts(g *schema.TaskGraph) *Wavefronts {
	in := inboundCounts(g)
	counters := make([]int64, len(g.Contexts))
	fired := make([]bool, len(g.Contexts))

	var level []uint32
	for i, c := range g.Contexts {
		counters[i] = int64(min(c.PredCountInit, in[i]))
		if counters[i] == 0 {
			level = append(level, uint32(i))
		}
	}

	w := &Wavefronts{}
	for len(level) > 0 {
		w.Levels = append(w.Levels, level)
		var next []uint32
		for _, id := range level {
			fired[id] = true
			for _, s := range g.Contexts[id].SuccessorIDs {
				if int(s) >= len(counters) {
					continue
				}
				counters[s]--
				if counters[s] == 0 {
					next = append(next, s)
				}
			}
		}
		level = next
	}

	for i, f := range fired {
		if !f {
			w.Unfired = append(w.Unfired, uint32(i))
		}
	}
	return w
}
