package diagram

import (
	"fmt"

	"github.com/rendis/ffts/internal/engine"
	"github.com/rendis/ffts/pkg/schema"
)

// Firing states shown on nodes.
const (
	StateReady   = "ready"
	StateGated   = "gated"
	StateWaiting = "waiting"
	StateUnfired = "unfired"
)

// Build constructs a DiagramModel from a finished task graph. Levels come from
// engine.ComputeWavefronts; every occupied successor slot becomes one edge so
// overflow Labels appear as real nodes on the path.
func Build(g *schema.TaskGraph) (*DiagramModel, error) {
	if g == nil {
		return nil, fmt.Errorf("diagram: nil task graph")
	}
	total := len(g.Contexts)
	for _, c := range g.Contexts {
		for _, s := range c.SuccessorIDs {
			if int(s) >= total {
				return nil, schema.NewErrorf(schema.ErrCodeDanglingSuccessor,
					"diagram: successor %d of context %d out of range", s, c.ID).WithContext(c.ID)
			}
		}
	}

	wf := engine.ComputeWavefronts(g)
	depth := wf.Depth(total)

	model := &DiagramModel{Title: titleFromGraph(g)}
	groupIndex := make(map[string]*Group)

	for i, c := range g.Contexts {
		node := contextToNode(c)
		node.Level = depth[i]
		node.State = &StateOverlay{
			State:     contextState(g, c, depth[i]),
			PredCount: c.PredCountInit,
		}
		model.Nodes = append(model.Nodes, node)

		if c.OwnerNode == "" || c.IsLabel() {
			continue
		}
		grp, ok := groupIndex[c.OwnerNode]
		if !ok {
			grp = &Group{Label: c.OwnerNode}
			groupIndex[c.OwnerNode] = grp
			model.Groups = append(model.Groups, grp)
		}
		grp.NodeIDs = append(grp.NodeIDs, node.ID)
	}

	// Single-context owners need no cluster.
	groups := model.Groups[:0]
	for _, grp := range model.Groups {
		if len(grp.NodeIDs) > 1 {
			groups = append(groups, grp)
		}
	}
	model.Groups = groups

	model.Edges = buildEdges(g)

	for _, lvl := range wf.Levels {
		ids := make([]string, len(lvl))
		for i, id := range lvl {
			ids[i] = NodeID(id)
		}
		model.Levels = append(model.Levels, ids)
	}
	for _, id := range wf.Unfired {
		model.Unfired = append(model.Unfired, NodeID(id))
	}

	return model, nil
}

// NodeID is the diagram identifier of a context id.
func NodeID(id uint32) string {
	return fmt.Sprintf("c%d", id)
}

// contextToNode maps a Context to a diagram Node.
func contextToNode(c *schema.Context) *Node {
	return &Node{
		ID:    NodeID(c.ID),
		Label: nodeLabel(c),
		Kind:  contextTypeToKind(c.Type),
		Owner: c.OwnerNode,
	}
}

// contextTypeToKind converts a schema.ContextType to a NodeKind.
func contextTypeToKind(t schema.ContextType) NodeKind {
	switch t {
	case schema.ContextAICore, schema.ContextAIV, schema.ContextMixAIC, schema.ContextMixAIV, schema.ContextAICPU:
		return NodeKindCompute
	case schema.ContextSDMA:
		return NodeKindDMA
	case schema.ContextNotifyWait, schema.ContextNotifyRecord, schema.ContextWriteValue:
		return NodeKindSync
	case schema.ContextLabel:
		return NodeKindLabel
	default:
		return NodeKindControl
	}
}

// nodeLabel creates a human-readable label for a context.
func nodeLabel(c *schema.Context) string {
	head := fmt.Sprintf("%s %s", NodeID(c.ID), c.Type)
	switch {
	case c.IsLabel():
		return head
	case c.ThreadDim > 1:
		return fmt.Sprintf("%s\n%s [%d/%d]", head, c.OwnerNode, c.ThreadID, c.ThreadDim)
	case c.OwnerNode != "":
		return fmt.Sprintf("%s\n%s", head, c.OwnerNode)
	default:
		return head
	}
}

// contextState classifies how a context gets released.
func contextState(g *schema.TaskGraph, c *schema.Context, level int) string {
	switch {
	case level < 0:
		return StateUnfired
	case c.ID < g.ReadyContextCount:
		return StateReady
	case c.StartGated:
		return StateGated
	default:
		return StateWaiting
	}
}

// buildEdges emits one edge per occupied successor slot in table order.
func buildEdges(g *schema.TaskGraph) []Edge {
	var edges []Edge
	for _, c := range g.Contexts {
		for i, s := range c.SuccessorIDs {
			e := Edge{From: NodeID(c.ID), To: NodeID(s)}
			if i == len(c.SuccessorIDs)-1 && g.Contexts[s].IsLabel() {
				e.Overflow = true
				e.Label = "overflow"
			}
			edges = append(edges, e)
		}
	}
	return edges
}

// titleFromGraph generates a diagram title from the table header.
func titleFromGraph(g *schema.TaskGraph) string {
	name := g.Partition
	if name == "" {
		name = "TaskGraph"
	}
	return fmt.Sprintf("%s (ready %d / total %d)", name, g.ReadyContextCount, g.TotalContextCount)
}
