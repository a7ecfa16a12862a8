package validation

import (
	"fmt"
	"strings"

	"github.com/rendis/ffts/pkg/schema"
)

// validateDAG runs Kahn's algorithm over the in-unit input edges and warns
// about pass-through nodes nothing consumes. Inputs naming nodes outside the
// unit are graph inputs and carry no edge.
func validateDAG(p *schema.Partition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		ids[n.ID] = true
	}

	inDegree := make(map[string]int, len(p.Nodes))
	consumers := make(map[string][]string, len(p.Nodes))
	for _, n := range p.Nodes {
		seen := make(map[string]bool, len(n.Inputs))
		for _, in := range n.Inputs {
			if !ids[in] || seen[in] || in == n.ID {
				continue // self inputs are reported by the semantic stage
			}
			seen[in] = true
			inDegree[n.ID]++
			consumers[in] = append(consumers[in], n.ID)
		}
	}

	queue := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, c := range consumers[id] {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if visited != len(ids) {
		var stuck []string
		for _, n := range p.Nodes {
			if inDegree[n.ID] > 0 {
				stuck = append(stuck, n.ID)
			}
		}
		result.AddError("nodes", schema.ErrCodeCycleDetected,
			fmt.Sprintf("partition contains a dependency cycle through %s", strings.Join(stuck, ", ")))
		return result
	}

	for i, n := range p.Nodes {
		if n.PassThrough && len(consumers[n.ID]) == 0 {
			result.AddWarning(fmt.Sprintf("nodes[%d]", i), schema.ErrCodeValidation,
				fmt.Sprintf("pass-through node %q has no consumers", n.ID))
		}
	}
	return result
}
