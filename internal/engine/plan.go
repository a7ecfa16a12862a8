package engine

import (
	"fmt"
	"slices"

	"github.com/rendis/ffts/pkg/schema"
)

// Plan is the indexed, read-only view of one partition used by a build.
// Edges only connect nodes inside the unit; inputs naming anything else are
// graph-input placeholders and are dropped here.
type Plan struct {
	Name         string
	Nodes        map[string]*schema.NodeDef // node ID → definition
	Order        []string                   // partition order
	Preds        map[string][]string        // node ID → in-unit inputs, deduplicated
	Succs        map[string][]string        // node ID → in-unit consumers, partition order
	Sorted       []string                   // topological order
	UnknownShape bool                       // some node has an unresolved shape
}

// NewPlan indexes a partition, rejecting duplicate IDs and cycles.
func NewPlan(p *schema.Partition) (*Plan, error) {
	if p == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "partition is nil")
	}
	if len(p.Nodes) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "partition has no nodes")
	}

	plan := &Plan{
		Name:  p.Name,
		Nodes: make(map[string]*schema.NodeDef, len(p.Nodes)),
		Order: make([]string, 0, len(p.Nodes)),
		Preds: make(map[string][]string, len(p.Nodes)),
		Succs: make(map[string][]string, len(p.Nodes)),
	}

	for i := range p.Nodes {
		n := &p.Nodes[i]
		if n.ID == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, fmt.Sprintf("node at index %d has empty ID", i))
		}
		if _, exists := plan.Nodes[n.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate node ID: %s", n.ID)
		}
		plan.Nodes[n.ID] = n
		plan.Order = append(plan.Order, n.ID)
		if n.UnknownShape {
			plan.UnknownShape = true
		}
	}

	for _, id := range plan.Order {
		n := plan.Nodes[id]
		for _, in := range n.Inputs {
			if in == id {
				return nil, schema.NewErrorf(schema.ErrCodeCycleDetected, "node %s consumes itself", id)
			}
			if _, ok := plan.Nodes[in]; !ok || slices.Contains(plan.Preds[id], in) {
				continue
			}
			plan.Preds[id] = append(plan.Preds[id], in)
			plan.Succs[in] = append(plan.Succs[in], id)
		}
	}

	sorted, err := topoSort(plan)
	if err != nil {
		return nil, err
	}
	plan.Sorted = sorted
	return plan, nil
}

// Contains reports whether id names a node of the unit.
func (p *Plan) Contains(id string) bool {
	_, ok := p.Nodes[id]
	return ok
}

// topoSort runs Kahn's algorithm seeded in partition order.
func topoSort(p *Plan) ([]string, error) {
	inDegree := make(map[string]int, len(p.Nodes))
	queue := make([]string, 0, len(p.Nodes))
	for _, id := range p.Order {
		inDegree[id] = len(p.Preds[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(p.Nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)
		for _, s := range p.Succs[node] {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}

	if len(sorted) != len(p.Nodes) {
		var stuck []string
		for _, id := range p.Order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, schema.NewError(schema.ErrCodeCycleDetected, "partition contains a dependency cycle").
			WithDetails(map[string]any{"nodes": stuck})
	}
	return sorted, nil
}
