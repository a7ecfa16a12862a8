package expressions

import (
	"encoding/json"
	"fmt"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/pkg/schema"
)

// TableData flattens a built table into the generic document queries run
// against. Numbers come out as float64, the way jq sees them.
//
//	partition, ready, total, labels   header and label count
//	contexts                          the table, JSON field names
//	successors                        context id -> chain-expanded successors
//	levels                            wavefront levels
//	additional_args                   MixL2 first-argument records
func TableData(g *schema.TaskGraph) (map[string]any, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal task graph: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal task graph: %w", err)
	}
	if doc["contexts"] == nil {
		doc["contexts"] = []any{}
	}

	successors := make(map[string]any, len(g.Contexts))
	for _, c := range g.Contexts {
		if c.IsLabel() {
			continue
		}
		ids, err := g.ExpandSuccessors(c.ID)
		if err != nil {
			return nil, err
		}
		list := make([]any, len(ids))
		for i, id := range ids {
			list[i] = float64(id)
		}
		successors[fmt.Sprint(c.ID)] = list
	}

	w := engine.ComputeWavefronts(g)
	levels := make([]any, len(w.Levels))
	for i, lvl := range w.Levels {
		ids := make([]any, len(lvl))
		for j, id := range lvl {
			ids[j] = float64(id)
		}
		levels[i] = ids
	}

	doc["ready"] = float64(g.ReadyContextCount)
	doc["total"] = float64(g.TotalContextCount)
	doc["labels"] = float64(g.LabelCount())
	doc["successors"] = successors
	doc["levels"] = levels
	return doc, nil
}
